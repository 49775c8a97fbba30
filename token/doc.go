// Package token mints and verifies purpose-scoped signed tokens using per-purpose
// signing secrets and strict validation semantics suitable for low-latency
// authentication paths.
package token
