package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the session id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// AppSessionStore keeps login sessions as redis hashes with a sliding expiry.
type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

// Session is the server side of a login cookie.
type Session struct {
	ID          string    `json:"-"`
	UserID      string    `json:"userId"`
	WarehouseID string    `json:"warehouseId,omitempty"` // last warehouse worked in
	ClientIP    string    `json:"-"`
	IssuedAt    time.Time `json:"issuedAt"`
	SeenAt      time.Time `json:"seenAt"`
}

const (
	fieldUser      = "uid"
	fieldWarehouse = "wid"
	fieldIP        = "ip"
	fieldIssued    = "iat"
	fieldSeen      = "seen"
)

func key(id string) string         { return fmt.Sprintf("dms:sess:%s", id) }
func userSetKey(uid string) string { return fmt.Sprintf("dms:user_sessions:%s", uid) }

func (s *AppSessionStore) Create(ctx context.Context, id, userID, clientIP string) error {
	now := time.Now().Unix()
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key(id),
		fieldUser, userID,
		fieldIP, clientIP,
		fieldIssued, now,
		fieldSeen, now)
	pipe.Expire(ctx, key(id), s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), id)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	m, err := s.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if m[fieldUser] == "" {
		return nil, ErrNoSession
	}
	return &Session{
		ID:          id,
		UserID:      m[fieldUser],
		WarehouseID: m[fieldWarehouse],
		ClientIP:    m[fieldIP],
		IssuedAt:    unixField(m[fieldIssued]),
		SeenAt:      unixField(m[fieldSeen]),
	}, nil
}

func unixField(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

// touchScript refreshes an existing session only; a lapsed one stays gone.
// KEYS: session, user set. ARGV: ttl seconds, then field/value pairs.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('EXPIRE', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[1])
return 1
`)

// Touch slides the expiry and, when warehouseID is set, remembers it as the
// warehouse the session last worked in.
func (s *AppSessionStore) Touch(ctx context.Context, id, userID, warehouseID string) error {
	args := []any{int64(s.ttl / time.Second), fieldSeen, time.Now().Unix()}
	if warehouseID != "" {
		args = append(args, fieldWarehouse, warehouseID)
	}
	ok, err := touchScript.Run(ctx, s.rdb, []string{key(id), userSetKey(userID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if ok == 0 {
		return ErrNoSession
	}
	return nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	uid, _ := s.rdb.HGet(ctx, key(id), fieldUser).Result()
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if uid != "" {
		pipe.SRem(ctx, userSetKey(uid), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForUser drops every session the user holds.
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
