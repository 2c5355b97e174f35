package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the default Hasher. Algorithm selection beyond this is
// the caller's concern, swap in any Hasher at construction time.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a BcryptHasher with the given cost, or the bcrypt
// default cost when cost is zero.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", badInput("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	return string(hash), err
}

// VerifyPassword will validate the given cleartext password against the
// stored hash.
func (h BcryptHasher) VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}

var _ Hasher = BcryptHasher{}
