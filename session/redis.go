package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusReplay   int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
	rotateStatusRevoked  int64 = 5
	rotateStatusStale    int64 = 6

	revokeStatusMissing int64 = 0
	revokeStatusAlready int64 = 1
	revokeStatusRevoked int64 = 2
)

// Shared by both scripts. Offsets are 1-based versions of the encoder layout.
const luaRecordHelpers = `
local function read_be64(s, i)
  local n = 0
  for k = i, i + 7 do
    n = n * 256 + string.byte(s, k)
  end
  return n
end

local function be64(n)
  local b = {}
  for k = 8, 1, -1 do
    b[k] = n % 256
    n = math.floor(n / 256)
  end
  return string.char(unpack(b))
end

local function valid(data)
  return data and #data >= 107 and string.byte(data, 1) == 1
end

local function is_revoked(data)
  return string.byte(data, 2) % 2 == 1
end

local function with_revocation(data, now, reason)
  local rlen = string.byte(data, 107)
  local tail = string.sub(data, 108 + rlen)
  return string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, 34) .. be64(now) ..
    string.sub(data, 43, 106) .. string.char(#reason) .. reason .. tail
end

local function persist(key, value)
  local ttl = redis.call("PTTL", key)
  if ttl > 0 then
    redis.call("SET", key, value, "PX", ttl)
  else
    redis.call("SET", key, value)
  end
end
`

// KEYS[1] session key
// ARGV presented hash, next hash, now ms, grace ms, replay reason, expired reason
const rotateScript = luaRecordHelpers + `
local key = KEYS[1]
local data = redis.call("GET", key)
if not data then
  return {0}
end
if not valid(data) then
  return {4}
end
if is_revoked(data) then
  return {5, data}
end

local now = tonumber(ARGV[3])
if now > read_be64(data, 27) then
  local updated = with_revocation(data, now, ARGV[6])
  persist(key, updated)
  return {1, updated}
end

local current = string.sub(data, 43, 74)
if current == ARGV[1] then
  local counter = read_be64(data, 3) + 1
  local updated = string.sub(data, 1, 2) .. be64(counter) .. string.sub(data, 11, 18) .. be64(now) ..
    string.sub(data, 27, 42) .. ARGV[2] .. current .. string.sub(data, 107)
  persist(key, updated)
  return {3, updated}
end

local grace = tonumber(ARGV[4])
if grace > 0 and read_be64(data, 3) > 0 and string.sub(data, 75, 106) == ARGV[1]
    and now - read_be64(data, 19) <= grace then
  return {6, data}
end

local updated = with_revocation(data, now, ARGV[5])
persist(key, updated)
return {2, updated}
`

// KEYS[1] session key
// ARGV now ms, reason
const revokeScript = luaRecordHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if not valid(data) or is_revoked(data) then
  return 1
end
persist(KEYS[1], with_revocation(data, tonumber(ARGV[1]), ARGV[2]))
return 2
`

var (
	rotateLua = redis.NewScript(rotateScript)
	revokeLua = redis.NewScript(revokeScript)
)

// expiredRetention keeps a record readable past ExpiresAt so a late refresh
// is answered with ErrExpired rather than ErrNotFound.
const expiredRetention = 24 * time.Hour

// RedisStore keeps each record as one binary value whose TTL ends
// expiredRetention after the record's ExpiresAt, plus a per-subject set of
// session ids. Rotation and revocation run as Lua scripts so each is a single
// atomic step.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	opts   Options
}

// NewRedisStore creates a store using prefix as the key namespace. An empty
// prefix defaults to "gs".
func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisStore{redis: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) subjectKey(subjectID string) string {
	return s.prefix + ":u:" + subjectID
}

func (s *RedisStore) Create(ctx context.Context, subjectID, clientLabel string, now time.Time) (*Record, string, error) {
	rec, token, err := newRecord(subjectID, clientLabel, now, s.opts.Lifetime)
	if err != nil {
		return nil, "", err
	}
	data, err := Encode(rec)
	if err != nil {
		return nil, "", err
	}

	ttl := rec.ExpiresAt.Sub(now) + expiredRetention
	subjectKey := s.subjectKey(subjectID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.SessionID), data, ttl)
		pipe.SAdd(ctx, subjectKey, rec.SessionID)
		pipe.PExpire(ctx, subjectKey, ttl)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, token, nil
}

func (s *RedisStore) Rotate(ctx context.Context, sessionID, token string, now time.Time) (*Record, string, error) {
	sid, hash, err := presented(sessionID, token)
	if err != nil {
		return nil, "", err
	}
	nextToken, nextHash, err := internal.NewRefreshToken(sid)
	if err != nil {
		return nil, "", err
	}

	result, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		hash[:],
		nextHash[:],
		now.UnixMilli(),
		s.opts.ReuseGrace.Milliseconds(),
		string(ReasonReplay),
		string(ReasonExpired),
	).Slice()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(result) == 0 {
		return nil, "", fmt.Errorf("%w: empty rotate script response", ErrUnavailable)
	}
	code, ok := result[0].(int64)
	if !ok {
		return nil, "", fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	var rec *Record
	if len(result) > 1 {
		rec, err = decodeReply(sessionID, result[1])
		if err != nil {
			return nil, "", err
		}
	}

	switch code {
	case rotateStatusRotated:
		if rec == nil {
			return nil, "", fmt.Errorf("%w: rotated without record", ErrUnavailable)
		}
		return rec, nextToken, nil
	case rotateStatusNotFound:
		return nil, "", errors.Join(redis.Nil, ErrNotFound)
	case rotateStatusExpired:
		return rec, "", ErrExpired
	case rotateStatusReplay:
		return rec, "", ErrReplayDetected
	case rotateStatusRevoked:
		return rec, "", ErrRevoked
	case rotateStatusStale:
		return rec, "", ErrStaleToken
	case rotateStatusCorrupt:
		return nil, "", ErrCorrupt
	default:
		return nil, "", fmt.Errorf("%w: unknown rotate script status %d", ErrUnavailable, code)
	}
}

func decodeReply(sessionID string, v any) (*Record, error) {
	switch b := v.(type) {
	case string:
		return Decode(sessionID, []byte(b))
	case []byte:
		return Decode(sessionID, b)
	default:
		return nil, fmt.Errorf("%w: unexpected script payload %T", ErrUnavailable, v)
	}
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID string, reason RevokeReason, now time.Time) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(sessionID)}, now.UnixMilli(), string(reason)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject revokes every indexed session in one pipeline. A
// session created concurrently with this call may be missed; callers that
// need a hard cut (password change) revoke before issuing new sessions.
func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subjectID string, reason RevokeReason, now time.Time) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.Cmd, len(ids))
	for i, id := range ids {
		cmds[i] = revokeLua.Eval(ctx, pipe, []string{s.key(id)}, now.UnixMilli(), string(reason))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	revoked := 0
	var missing []any
	for i, cmd := range cmds {
		code, err := cmd.Int64()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		switch code {
		case revokeStatusRevoked:
			revoked++
		case revokeStatusMissing:
			missing = append(missing, ids[i])
		}
	}
	s.pruneIndex(ctx, subjectID, missing)
	return revoked, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Decode(sessionID, data)
}

func (s *RedisStore) ListForSubject(ctx context.Context, subjectID string, now time.Time) ([]*Record, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := []*Record{}
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var missing []any
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			missing = append(missing, ids[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		rec, err := Decode(ids[i], data)
		if err != nil {
			return nil, err
		}
		if rec.Active(now) {
			out = append(out, rec)
		}
	}
	s.pruneIndex(ctx, subjectID, missing)
	return out, nil
}

// pruneIndex drops ids whose records already expired out of Redis. Failures
// are ignored; the next call retries.
func (s *RedisStore) pruneIndex(ctx context.Context, subjectID string, ids []any) {
	if len(ids) == 0 {
		return
	}
	_ = s.redis.SRem(ctx, s.subjectKey(subjectID), ids...).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
