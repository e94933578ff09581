// Package stores holds the cache-backed ephemeral state used by the
// authentication flows: per-user MFA challenges and the consumed-code
// ledger that makes a verified one-time code single-use.
package stores
