// Package authcore is the authentication core for user-facing applications:
// registration, credential verification, TOTP-based multi-factor checks, and
// adaptive rate limiting against brute-force attacks.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Each Register/Authenticate call is an independent,
// request-scoped execution; all shared state lives behind the injected
// [Cache] and [UserStore].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// collaborator interfaces ([UserStore], [Cache], [Notifier], [Monitor],
// [TokenIssuer]), sentinel errors, and value types. Rate limiting, the MFA
// challenge store, and notification dispatch live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Implement durable user storage; [UserStore] is a contract the host
//     application fulfills.
//   - Perform HTTP routing or session management. The host maps error kinds
//     to status codes (see examples/http-minimal).
//   - Retry rate-limited or failed credential checks internally.
//
// # Failure model
//
// Rate-limit, credential, and MFA failures propagate verbatim with
// structured context. Unexpected faults during registration are reported to
// the [Monitor] and replaced with [ErrRegistrationFailed]; internal detail
// never reaches the caller.
package authcore
