// Package rate enforces adaptive fixed-window rate limits over an injected
// counter cache.
//
// The window is fixed (60s by default) so a single burst is always bounded;
// the threshold is the adaptive part. A separate long-horizon history
// counter per IP shrinks the allowance of repeat offenders across many
// windows, down to a hard floor of one attempt.
package rate
