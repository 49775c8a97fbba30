// Package goTokens provides the session/credential lifecycle engine for an
// HTTP API: short-lived signed session tokens, rotating long-lived refresh
// tokens, Redis-backed revocation and per-subject quota enforcement, and an
// expiry reconciler that keeps the refresh index consistent with passive TTL
// expiry.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine holds no mutable in-process token state: all
// shared state lives in the revocation store, and every check-then-mutate
// operation executes as a single atomic store script.
//
// # Architecture boundaries
//
// goTokens is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPayload, TokenPair, MetricsSnapshot, AuditEvent).
// The token codec lives in token/, the revocation store contract and Redis
// adapter in store/, and the HTTP guard in middleware/.
//
// # What this package must NOT do
//
//   - Interpret the payload it transports (roles are carried, never compared).
//   - Expose Redis clients or key layout details in its public API.
//   - Hold per-token state in process memory (restarts must be invisible).
//
// # Performance contract
//
// VerifySessionToken is the hot path: one signature check plus one blacklist
// lookup. Issue, rotate, and revoke operations are allowed one store
// round-trip (a single script) per call.
package goTokens
