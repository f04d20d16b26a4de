package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"costura-backend/internal/platform/config"
)

// Ledger: 作業者ごとのスキャンロックと、使い捨て QR の使用済み台帳
type Ledger interface {
	// Acquire: 取れなければ ok=false。token は Release に渡す
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
	// MarkUsed: 初回のみ true
	MarkUsed(ctx context.Context, qrID string) (bool, error)
	Close() error
}

const (
	lockPrefix = "costura:scan:lock:"
	usedPrefix = "costura:qr:used:"
)

// NewLedger: redis.addr が空ならプロセス内
func NewLedger(ctx context.Context, cfg config.RedisConfig) (Ledger, error) {
	if cfg.Addr == "" {
		return NewMemoryLedger(), nil
	}
	l, err := NewRedisLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ===== Redis =====

type RedisLedger struct {
	client *redis.Client
}

// 自分が置いたトークンの時だけ消す
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func NewRedisLedger(ctx context.Context, cfg config.RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLedger) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{lockPrefix + key}, token).Err()
}

func (l *RedisLedger) MarkUsed(ctx context.Context, qrID string) (bool, error) {
	return l.client.SetNX(ctx, usedPrefix+qrID, time.Now().UTC().Format(time.RFC3339), 0).Result()
}

func (l *RedisLedger) Close() error { return l.client.Close() }

// ===== Memory =====

type lockEntry struct {
	token   string
	expires time.Time
}

type MemoryLedger struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	used  map[string]struct{}
	now   func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		locks: map[string]lockEntry{},
		used:  map[string]struct{}{},
		now:   time.Now,
	}
}

func (l *MemoryLedger) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.locks[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[key]; ok && e.token == token {
		delete(l.locks, key)
	}
	return nil
}

func (l *MemoryLedger) MarkUsed(_ context.Context, qrID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.used[qrID]; ok {
		return false, nil
	}
	l.used[qrID] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Close() error { return nil }
