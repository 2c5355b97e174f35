package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	totpInterval = 90 * time.Second
	totpDrift    = 1 // accepted steps either side of now
)

// TotpTokenProvider derives short numeric codes from the user's security
// stamp, the purpose tag, and a rotating time counter. Nothing is persisted
// server-side, so a code replayed inside its window validates again; treat
// the codes as second-factor challenges, not one-shot nonces.
//
// A code is valid for the current time step plus one step of clock drift in
// either direction, roughly 90 to 270 seconds. Rotating the security stamp
// invalidates outstanding codes immediately.
type TotpTokenProvider[U any] struct {
	now func() time.Time
}

// NewTotpTokenProvider returns a provider on the system clock.
func NewTotpTokenProvider[U any]() *TotpTokenProvider[U] {
	return &TotpTokenProvider[U]{now: time.Now}
}

// WithClock overrides the clock, tests step time without sleeping.
func (p *TotpTokenProvider[U]) WithClock(now func() time.Time) *TotpTokenProvider[U] {
	if now != nil {
		p.now = now
	}
	return p
}

// Generate produces the 6-digit code for the current time step.
func (p *TotpTokenProvider[U]) Generate(ctx context.Context, purpose string, m *Manager[U], user *U) (string, error) {
	stamp, err := m.GetSecurityStamp(ctx, user)
	if err != nil {
		return "", err
	}
	step := p.step(0)
	return totpCode([]byte(stamp), step, totpModifier(purpose, m.GetUserID(user))), nil
}

// Validate accepts the code for the current step and totpDrift steps on
// either side.
func (p *TotpTokenProvider[U]) Validate(ctx context.Context, purpose, token string, m *Manager[U], user *U) (bool, error) {
	stamp, err := m.GetSecurityStamp(ctx, user)
	if err != nil {
		return false, err
	}

	modifier := totpModifier(purpose, m.GetUserID(user))
	for delta := -totpDrift; delta <= totpDrift; delta++ {
		candidate := totpCode([]byte(stamp), p.step(delta), modifier)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

func (p *TotpTokenProvider[U]) step(delta int) uint64 {
	step := p.now().Unix()/int64(totpInterval.Seconds()) + int64(delta)
	if step < 0 {
		step = 0
	}
	return uint64(step)
}

func totpModifier(purpose, userID string) string {
	return "totp:" + purpose + ":" + userID
}

func totpCode(key []byte, step uint64, modifier string) string {
	mac := hmac.New(sha1.New, key)

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], step)
	mac.Write(counter[:])
	mac.Write([]byte(modifier))

	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0xf
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1_000_000)
}

var _ TokenProvider[struct{}] = (*TotpTokenProvider[struct{}])(nil)
