// Package identity provides a storage-agnostic identity-management core:
// account lifecycle, credential validation, claims synthesis, and
// purpose-bound token issuance.
//
// Storage capabilities:
//   - Backends implement UserStore plus any subset of the optional
//     capability interfaces (PasswordStore, SecurityStampStore,
//     UserRoleStore, ClaimStore, LoginStore, LockoutStore, TwoFactorStore,
//     EmailStore, PhoneStore). The Manager detects capabilities at runtime
//     and reports an operation failure, never a nil fault, when a requested
//     operation needs one the store does not implement.
//
// Security stamps:
//   - Every credential-affecting change (password set/change/reset, login
//     add/remove, two-factor toggle, email/phone change) regenerates the
//     user's security stamp. Identities and purpose tokens embed the stamp,
//     so a stamp change invalidates everything issued before it.
//
// Concurrency:
//   - The Manager holds no cross-call state. Concurrent writers to the same
//     user are serialized only through the concurrency stamp: the store
//     compares the stamp read at load time against the persisted one and
//     rejects stale writes with ErrConcurrencyFailure. Callers re-read and
//     retry; nothing is merged silently.
//
// Purpose tokens:
//   - TokenProvider implementations are registered by name and resolved per
//     purpose through TokenOptions. TotpTokenProvider derives short numeric
//     codes from the security stamp; JWTTokenProvider issues signed tokens
//     with a per-purpose lifetime. Both bind a token to the exact
//     (user, purpose) pair it was generated for.
package identity
