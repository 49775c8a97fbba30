// Package store holds revocation and quota state for the token lifecycle
// engine: refresh-token records with TTLs, the per-subject refresh index,
// and the session blacklist. The [Store] contract is the only surface the
// engine sees; [RedisStore] is the production adapter.
//
// Every check-then-mutate operation (quota-checked registration, rotation
// swap, subject purge) runs as a single Redis Lua script so concurrent
// callers observe the store atomically.
package store
