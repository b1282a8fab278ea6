package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"futures-trader/internal/logger"
)

// Lua scripts touch the key only while it still carries our token.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisConfig configures a Redis locker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // lease expiry without refresh, default 30s
}

// Redis is a Locker backed by SET NX leases with a background refresh.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, cfg.TTL, log), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{client: client, ttl: ttl, log: log.With("component", "lock")}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Acquire takes the lease of key and keeps it alive until Release.
func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	lease := &redisLease{
		owner: r,
		key:   key,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	lease.refreshed.Store(time.Now().UnixNano())
	go lease.refreshLoop()
	return lease, nil
}

type redisLease struct {
	owner *Redis
	key   string
	token string

	refreshed atomic.Int64 // unix nanos of the last successful SET or refresh
	lost      atomic.Bool

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (l *redisLease) Key() string { return l.key }

// Err reports the lease lost when the key was taken over or when no refresh
// succeeded within the ttl, after which the key may have expired.
func (l *redisLease) Err() error {
	if l.lost.Load() {
		return ErrLost
	}
	if time.Since(time.Unix(0, l.refreshed.Load())) >= l.owner.ttl {
		return ErrLost
	}
	return nil
}

func (l *redisLease) refreshLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.owner.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.owner.ttl/3)
			err := l.refresh(ctx)
			cancel()
			if errors.Is(err, ErrLost) {
				l.lost.Store(true)
				l.owner.log.Error("lease expired before refresh: "+l.key, err)
				return
			}
			if err != nil {
				l.owner.log.Warnf("refresh lease %s: %v", l.key, err)
				continue
			}
			l.refreshed.Store(time.Now().UnixNano())
		}
	}
}

func (l *redisLease) refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.owner.client, []string{l.key}, l.token, l.owner.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

// Release stops the refresh and deletes the key if we still own it.
func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() { close(l.stop) })
	<-l.done

	n, err := releaseScript.Run(ctx, l.owner.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

var _ Locker = (*Redis)(nil)
