// Package presence mirrors the hub's online set into Redis so external
// tooling can observe who is connected. All operations are nil-safe no-ops
// when Redis is not configured; the hub remains the source of truth.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parley/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey      = "chat:online_users"
	defaultLastSeenKeyPrefix = "chat:last_seen:"
	defaultLastSeenTTL       = 90 * time.Second
	opTimeout                = 2 * time.Second
)

// Config controls Redis key naming and expiry.
type Config struct {
	OnlineSetKey      string
	LastSeenKeyPrefix string
	LastSeenTTL       time.Duration
}

// Tracker mirrors online/offline transitions into a Redis set plus per-user
// last-seen keys.
type Tracker struct {
	rdb *redis.Client

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration

	stopOnce sync.Once
}

// NewTracker creates a tracker. rdb may be nil, in which case every method
// is a no-op.
func NewTracker(rdb *redis.Client, cfg Config) *Tracker {
	t := &Tracker{
		rdb:               rdb,
		onlineSetKey:      defaultOnlineSetKey,
		lastSeenKeyPrefix: defaultLastSeenKeyPrefix,
		lastSeenTTL:       defaultLastSeenTTL,
	}
	if cfg.OnlineSetKey != "" {
		t.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		t.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		t.lastSeenTTL = cfg.LastSeenTTL
	}
	return t
}

// Connect dials Redis from a URL of the form addr or redis://addr. An empty
// URL returns nil, which disables the mirror.
func Connect(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		// Plain host:port form
		opts = &redis.Options{Addr: redisURL}
	}
	return redis.NewClient(opts)
}

// Register marks the username online.
func (t *Tracker) Register(ctx context.Context, username string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := t.rdb.SAdd(ctx, t.onlineSetKey, username).Err(); err != nil {
		t.logErr("sadd", err)
		return
	}
	if err := t.rdb.Set(ctx, t.lastSeenKeyPrefix+username, time.Now().Unix(), t.lastSeenTTL).Err(); err != nil {
		t.logErr("set", err)
	}
}

// Unregister marks the username offline.
func (t *Tracker) Unregister(ctx context.Context, username string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := t.rdb.SRem(ctx, t.onlineSetKey, username).Err(); err != nil {
		t.logErr("srem", err)
	}
}

// Touch refreshes the last-seen key for an active user.
func (t *Tracker) Touch(ctx context.Context, username string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := t.rdb.Set(ctx, t.lastSeenKeyPrefix+username, time.Now().Unix(), t.lastSeenTTL).Err(); err != nil {
		t.logErr("set", err)
	}
}

// Stop clears the online set and closes the client.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := t.rdb.Del(ctx, t.onlineSetKey).Err(); err != nil {
			t.logErr("del", err)
		}
		_ = t.rdb.Close()
	})
}

func (t *Tracker) logErr(op string, err error) {
	observability.GlobalLogger.Warn("presence mirror error",
		slog.String("operation", op),
		slog.String("error", err.Error()))
}
