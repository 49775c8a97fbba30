package store

import (
	"context"
	"errors"
	"time"
)

// ErrRedisUnavailable is an exported constant or variable used by the token lifecycle engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrQuotaExceeded is returned by RegisterRefresh when the subject already
// holds the maximum number of live refresh records. Nothing is mutated.
var ErrQuotaExceeded = errors.New("refresh quota exceeded")

// ErrRecordMissing is returned by SwapRefresh when the presented record no
// longer exists: it was rotated, revoked, or expired. Nothing is mutated.
var ErrRecordMissing = errors.New("refresh record missing")

// Store is the revocation-state contract the engine depends on. All methods
// are safe for concurrent use. Implementations report infrastructure
// failures by wrapping [ErrRedisUnavailable] so callers can distinguish an
// outage from a business outcome.
type Store interface {
	// RegisterRefresh atomically counts the subject's live records, rejects
	// with ErrQuotaExceeded when maxActive is reached, and otherwise creates
	// the record with the given TTL and adds tokenID to the subject index.
	RegisterRefresh(ctx context.Context, subjectID, tokenID string, ttl time.Duration, maxActive int) error

	// SwapRefresh atomically verifies the old record exists, deletes it,
	// deindexes oldID, and creates the new record with the given TTL.
	// A missing old record yields ErrRecordMissing.
	SwapRefresh(ctx context.Context, subjectID, oldID, newID string, ttl time.Duration) error

	// RevokeRefresh deletes a record and its index entry. Idempotent.
	RevokeRefresh(ctx context.Context, subjectID, tokenID string) error

	// DeindexRefresh removes a token ID from the subject index without
	// touching the record. The expiry reconciler uses it after the record
	// has already expired.
	DeindexRefresh(ctx context.Context, subjectID, tokenID string) error

	// PurgeSubject atomically deletes every record in the subject's index
	// and the index itself. Returns the number of records deleted.
	PurgeSubject(ctx context.Context, subjectID string) (int, error)

	// ActiveTokenIDs returns the subject's live token IDs, pruning index
	// entries whose record has expired.
	ActiveTokenIDs(ctx context.Context, subjectID string) ([]string, error)

	// ActiveTokenCount returns the tracked index size for a subject.
	ActiveTokenCount(ctx context.Context, subjectID string) (int, error)

	// BlacklistSession marks a session token ID revoked for ttl.
	BlacklistSession(ctx context.Context, tokenID string, ttl time.Duration) error

	// SessionBlacklisted reports whether a session token ID is revoked.
	SessionBlacklisted(ctx context.Context, tokenID string) (bool, error)

	// ConsumeExpiryEvents blocks, delivering one callback per expired
	// refresh record until ctx is canceled or the subscription is lost.
	// Keys that look like refresh records but do not parse go to
	// onMalformed. Always returns a non-nil error.
	ConsumeExpiryEvents(ctx context.Context, onExpired func(subjectID, tokenID string), onMalformed func(rawKey string)) error

	// EnableExpiryNotifications turns on keyspace expired-event
	// notifications on the backing server. Best effort.
	EnableExpiryNotifications(ctx context.Context) error

	// Ping probes store availability.
	Ping(ctx context.Context) error
}
