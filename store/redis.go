package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	registerStatusQuotaExceeded int64 = 0
	registerStatusRegistered    int64 = 1
)

const (
	swapStatusMissing int64 = 0
	swapStatusSwapped int64 = 1
)

const expiredEventPattern = "__keyevent@*__:expired"

// registerRefreshScript counts live records before enforcing the cap so a
// stale index entry (record expired, reconciler not yet caught up) never
// consumes quota. Dead entries are pruned as a side effect.
const registerRefreshScript = `
local index_key = KEYS[1]
local record_key = KEYS[2]
local record_prefix = ARGV[1]
local token_id = ARGV[2]
local max_active = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local members = redis.call("SMEMBERS", index_key)
local live = 0
for _, id in ipairs(members) do
  if redis.call("EXISTS", record_prefix .. id) == 1 then
    live = live + 1
  else
    redis.call("SREM", index_key, id)
  end
end

if live >= max_active then
  return {0, live}
end

redis.call("SET", record_key, ARGV[5], "PX", ttl_ms)
redis.call("SADD", index_key, token_id)
return {1, live + 1}
`

var registerRefreshLua = redis.NewScript(registerRefreshScript)

const swapRefreshScript = `
local old_key = KEYS[1]
local new_key = KEYS[2]
local index_key = KEYS[3]
local old_id = ARGV[1]
local new_id = ARGV[2]
local ttl_ms = tonumber(ARGV[3])

if redis.call("EXISTS", old_key) == 0 then
  return {0}
end

redis.call("DEL", old_key)
redis.call("SREM", index_key, old_id)
redis.call("SET", new_key, ARGV[4], "PX", ttl_ms)
redis.call("SADD", index_key, new_id)
return {1}
`

var swapRefreshLua = redis.NewScript(swapRefreshScript)

const purgeSubjectScript = `
local index_key = KEYS[1]
local record_prefix = ARGV[1]

local members = redis.call("SMEMBERS", index_key)
local removed = 0
for _, id in ipairs(members) do
  removed = removed + redis.call("DEL", record_prefix .. id)
end
redis.call("DEL", index_key)
return removed
`

var purgeSubjectLua = redis.NewScript(purgeSubjectScript)

// RedisStore is the Redis-backed [Store]. Key layout under the configured
// prefix:
//
//	<prefix>:rt:<subject>:<tokenID>   refresh record, PX = remaining lifetime
//	<prefix>:rti:<subject>            refresh index (SET of token IDs)
//	<prefix>:sbl:<tokenID>            session blacklist entry
//
// Token IDs are UUIDs and contain no ":", so the subject is always
// recoverable from an expired record key even when subject IDs contain ":".
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] on the given client. prefix sets the
// Redis key namespace.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) recordPrefix() string {
	return s.prefix + ":rt:"
}

func (s *RedisStore) recordKey(subjectID, tokenID string) string {
	return s.recordPrefix() + subjectID + ":" + tokenID
}

func (s *RedisStore) recordKeyPrefixFor(subjectID string) string {
	return s.recordPrefix() + subjectID + ":"
}

func (s *RedisStore) indexKey(subjectID string) string {
	return s.prefix + ":rti:" + subjectID
}

func (s *RedisStore) blacklistKey(tokenID string) string {
	return s.prefix + ":sbl:" + tokenID
}

// RegisterRefresh describes the registerrefresh operation and its observable behavior.
//
//	Performance: 1 Redis script (EVALSHA).
func (s *RedisStore) RegisterRefresh(ctx context.Context, subjectID, tokenID string, ttl time.Duration, maxActive int) error {
	status, err := s.runStatusScript(ctx, registerRefreshLua,
		[]string{s.indexKey(subjectID), s.recordKey(subjectID, tokenID)},
		s.recordKeyPrefixFor(subjectID),
		tokenID,
		maxActive,
		ttl.Milliseconds(),
		time.Now().Unix(),
	)
	if err != nil {
		return err
	}

	switch status {
	case registerStatusRegistered:
		return nil
	case registerStatusQuotaExceeded:
		return ErrQuotaExceeded
	default:
		return fmt.Errorf("%w: unexpected register status %d", ErrRedisUnavailable, status)
	}
}

// SwapRefresh describes the swaprefresh operation and its observable behavior.
//
//	Performance: 1 Redis script (EVALSHA).
func (s *RedisStore) SwapRefresh(ctx context.Context, subjectID, oldID, newID string, ttl time.Duration) error {
	status, err := s.runStatusScript(ctx, swapRefreshLua,
		[]string{
			s.recordKey(subjectID, oldID),
			s.recordKey(subjectID, newID),
			s.indexKey(subjectID),
		},
		oldID,
		newID,
		ttl.Milliseconds(),
		time.Now().Unix(),
	)
	if err != nil {
		return err
	}

	switch status {
	case swapStatusSwapped:
		return nil
	case swapStatusMissing:
		return ErrRecordMissing
	default:
		return fmt.Errorf("%w: unexpected swap status %d", ErrRedisUnavailable, status)
	}
}

// RevokeRefresh describes the revokerefresh operation and its observable behavior.
//
//	Performance: 2 Redis commands (TxPipelined SREM + DEL).
func (s *RedisStore) RevokeRefresh(ctx context.Context, subjectID, tokenID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.indexKey(subjectID), tokenID)
		pipe.Del(ctx, s.recordKey(subjectID, tokenID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeindexRefresh describes the deindexrefresh operation and its observable behavior.
//
//	Performance: 1 Redis SREM.
func (s *RedisStore) DeindexRefresh(ctx context.Context, subjectID, tokenID string) error {
	if err := s.redis.SRem(ctx, s.indexKey(subjectID), tokenID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// PurgeSubject describes the purgesubject operation and its observable behavior.
//
//	Performance: 1 Redis script (EVALSHA), O(index size).
func (s *RedisStore) PurgeSubject(ctx context.Context, subjectID string) (int, error) {
	res, err := purgeSubjectLua.Run(ctx, s.redis,
		[]string{s.indexKey(subjectID)},
		s.recordKeyPrefixFor(subjectID),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected purge reply type %T", ErrRedisUnavailable, res)
	}
	return int(removed), nil
}

// ActiveTokenIDs describes the activetokenids operation and its observable behavior.
//
//	Performance: SMEMBERS + pipelined EXISTS, plus SREM for pruned entries.
func (s *RedisStore) ActiveTokenIDs(ctx context.Context, subjectID string) ([]string, error) {
	indexKey := s.indexKey(subjectID)

	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		existsCmds[i] = pipe.Exists(ctx, s.recordKey(subjectID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	var dead []string
	for i, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if v == 1 {
			live = append(live, ids[i])
		} else {
			dead = append(dead, ids[i])
		}
	}

	if len(dead) > 0 {
		members := make([]interface{}, len(dead))
		for i, id := range dead {
			members[i] = id
		}
		// Prune is best-effort; the register script re-prunes on the next issue.
		_ = s.redis.SRem(ctx, indexKey, members...).Err()
	}

	return live, nil
}

// ActiveTokenCount describes the activetokencount operation and its observable behavior.
//
//	Performance: 1 Redis SCARD.
func (s *RedisStore) ActiveTokenCount(ctx context.Context, subjectID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.indexKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// BlacklistSession describes the blacklistsession operation and its observable behavior.
//
//	Performance: 1 Redis SET PX.
func (s *RedisStore) BlacklistSession(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.blacklistKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionBlacklisted describes the sessionblacklisted operation and its observable behavior.
//
//	Performance: 1 Redis EXISTS.
func (s *RedisStore) SessionBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	v, err := s.redis.Exists(ctx, s.blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v == 1, nil
}

// ConsumeExpiryEvents subscribes to keyspace expired-event notifications and
// delivers one callback per expired refresh record. It blocks until ctx is
// canceled (returns ctx.Err()) or the subscription is lost (returns a
// wrapped [ErrRedisUnavailable]). Keys outside this store's record
// namespace are ignored.
func (s *RedisStore) ConsumeExpiryEvents(ctx context.Context, onExpired func(subjectID, tokenID string), onMalformed func(rawKey string)) error {
	pubsub := s.redis.PSubscribe(ctx, expiredEventPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ch := pubsub.Channel()
	recordPrefix := s.recordPrefix()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("%w: expiry event channel closed", ErrRedisUnavailable)
			}

			key := msg.Payload
			if !strings.HasPrefix(key, recordPrefix) {
				continue
			}

			subjectID, tokenID, parsed := splitRecordKey(key, recordPrefix)
			if !parsed {
				if onMalformed != nil {
					onMalformed(key)
				}
				continue
			}
			if onExpired != nil {
				onExpired(subjectID, tokenID)
			}
		}
	}
}

// EnableExpiryNotifications adds the "Ex" flags to the server's
// notify-keyspace-events setting, preserving flags already present.
func (s *RedisStore) EnableExpiryNotifications(ctx context.Context) error {
	current := ""
	res, err := s.redis.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err == nil {
		current = res["notify-keyspace-events"]
	}

	updated := current
	for _, flag := range []rune{'E', 'x'} {
		if !strings.ContainsRune(updated, flag) {
			updated += string(flag)
		}
	}
	if updated == current {
		return nil
	}

	if err := s.redis.ConfigSet(ctx, "notify-keyspace-events", updated).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping describes the ping operation and its observable behavior.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) runStatusScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (int64, error) {
	res, err := script.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) == 0 {
		return 0, fmt.Errorf("%w: unexpected script reply type %T", ErrRedisUnavailable, res)
	}
	status, ok := vals[0].(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected script status type %T", ErrRedisUnavailable, vals[0])
	}
	return status, nil
}

// splitRecordKey recovers subject and token ID from an expired record key.
// Token IDs are UUIDs (no ":"), so the last separator always delimits them.
func splitRecordKey(key, recordPrefix string) (string, string, bool) {
	rest := key[len(recordPrefix):]
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
