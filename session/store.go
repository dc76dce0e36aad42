package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure returned by [Store].
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrInvalidTTL is returned when a write is attempted with a non-positive TTL.
var ErrInvalidTTL = errors.New("session ttl must be > 0")

// refreshSessionScript rewrites the record and, when the account index still
// points at this session (or is gone), the index, both with the new TTL.
// Nothing is written when the session key no longer exists.
const refreshSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
local current = redis.call("GET", KEYS[2])
if (not current) or current == ARGV[2] then
  redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
end
return 1
`

var refreshSessionLua = redis.NewScript(refreshSessionScript)

// deleteSessionScript removes the record and drops the account index only if
// it still names this session, so deleting a displaced session never logs
// out its successor.
const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
if ARGV[1] ~= "" and redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store keeps session records in Redis under two keyspaces:
//
//	<prefix>session:<sid>          encoded Record
//	<prefix>user:session:<account> sid of the account's active session
//
// plus the administrative marker <prefix>disabled:account:<account>.
// Expiry is enforced natively by Redis; the record's ExpireTime is checked
// again on read by the caller.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	codec  *Codec
}

// NewStore creates a [Store]. prefix is prepended verbatim to every key.
func NewStore(client redis.UniversalClient, prefix string, codec *Codec) *Store {
	if codec == nil {
		codec = NewCodec(DefaultAliasTable(), nil)
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		codec:  codec,
	}
}

// Codec returns the codec protecting this store's payloads.
func (s *Store) Codec() *Codec {
	return s.codec
}

// SessionKey returns the record key for sessionID.
func (s *Store) SessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

// AccountKey returns the index key for account.
func (s *Store) AccountKey(account string) string {
	return s.prefix + "user:session:" + account
}

func (s *Store) disabledKey(account string) string {
	return s.prefix + "disabled:account:" + account
}

// Put writes rec and its account index in one MULTI/EXEC.
func (s *Store) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.SessionKey(rec.SessionID), data, ttl)
		pipe.Set(ctx, s.AccountKey(rec.Account), rec.SessionID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load reads and decodes the payload for sessionID. It returns nil, nil
// when the key does not exist. A payload naming a different session id is
// never returned as a usable record.
func (s *Store) Load(ctx context.Context, sessionID string) (*DecodeResult, error) {
	data, err := s.redis.Get(ctx, s.SessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	res := s.codec.Decode(data)
	if res.Record != nil && res.Record.SessionID != sessionID {
		res = detachRecord(res)
	}
	return &res, nil
}

// detachRecord demotes a record that names a session other than the key it
// was stored under. Its identity fields are kept so the key can still be
// removed together with the owner's index.
func detachRecord(res DecodeResult) DecodeResult {
	generic := res.Generic
	if generic == nil {
		generic = map[string]any{
			"sessionId": res.Record.SessionID,
			"account":   res.Record.Account,
		}
	}
	return DecodeResult{Kind: KindGeneric, Generic: generic, Category: res.Category}
}

// Get returns the usable record for sessionID, or nil when the key is
// missing or its payload could not be turned back into a record.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	res, err := s.Load(ctx, sessionID)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Record, nil
}

// Exists reports whether a record key exists for sessionID, readable or not.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.SessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// SessionIDForAccount returns the sid indexed for account, or "" if none.
func (s *Store) SessionIDForAccount(ctx context.Context, account string) (string, error) {
	sid, err := s.redis.Get(ctx, s.AccountKey(account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sid, nil
}

// GetByAccount follows the account index to the active record.
func (s *Store) GetByAccount(ctx context.Context, account string) (*Record, error) {
	sid, err := s.SessionIDForAccount(ctx, account)
	if err != nil || sid == "" {
		return nil, err
	}
	return s.Get(ctx, sid)
}

// Refresh re-encodes rec with the given TTL on both keys. It returns false
// without writing anything when the session key has already gone.
func (s *Store) Refresh(ctx context.Context, rec *Record, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	data, err := s.codec.Encode(rec)
	if err != nil {
		return false, err
	}

	keys := []string{s.SessionKey(rec.SessionID), s.AccountKey(rec.Account)}
	n, err := refreshSessionLua.Run(ctx, s.redis, keys, data, rec.SessionID, strconv.FormatInt(ttl.Milliseconds(), 10)).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Delete removes sessionID and, when known, the index of account. account
// may be empty if the payload was unreadable; only the record key is
// removed then.
func (s *Store) Delete(ctx context.Context, sessionID, account string) error {
	keys := []string{s.SessionKey(sessionID), s.AccountKey(account)}
	if err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteSession resolves the owning account from the payload, then deletes
// as [Store.Delete] does. Missing sessions are not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	var account string
	switch {
	case res.Record != nil:
		account = res.Record.Account
	case res.Generic != nil:
		account, _ = res.Generic["account"].(string)
	}
	return s.Delete(ctx, sessionID, account)
}

// MarkDisabled sets the disabled marker for account. ttl <= 0 keeps the
// marker until it is cleared.
func (s *Store) MarkDisabled(ctx context.Context, account string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.disabledKey(account), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ClearDisabled removes the disabled marker for account.
func (s *Store) ClearDisabled(ctx context.Context, account string) error {
	if err := s.redis.Del(ctx, s.disabledKey(account)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsDisabled reports whether account carries the disabled marker.
func (s *Store) IsDisabled(ctx context.Context, account string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.disabledKey(account)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
