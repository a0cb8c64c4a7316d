package clientstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "linkhub:client:"

// RedisStore keeps one visitor's values in a redis hash whose expiry is
// pushed forward on every write.
type RedisStore struct {
	client   *redis.Client
	clientID string
	ttl      time.Duration
}

func NewRedisStore(client *redis.Client, clientID string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, clientID: clientID, ttl: ttl}
}

func (s *RedisStore) key() string {
	return keyPrefix + s.clientID
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read client state: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(), key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write client state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key(), key).Err(); err != nil {
		return fmt.Errorf("failed to clear client state: %w", err)
	}
	return nil
}

// NewRedisClient connects and pings. A failed ping is logged, not fatal;
// reads then fail per request and callers treat that as "no state".
func NewRedisClient(addr, password string, db int, logger *slog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", slog.String("addr", addr), slog.Any("error", err))
	} else {
		logger.Info("Redis connected", slog.String("addr", addr))
	}
	return rdb
}

// Provider hands out the Store for a request: redis-backed when a client
// is configured, cookies otherwise.
type Provider struct {
	redis        *redis.Client
	cookiePrefix string
	ttl          time.Duration
	secure       bool
	logger       *slog.Logger

	// cookies returns the store the client id cookie is written to.
	cookies func(CookieJar) Store
}

func NewProvider(rdb *redis.Client, cookiePrefix string, ttl time.Duration, secure bool) *Provider {
	p := &Provider{redis: rdb, cookiePrefix: cookiePrefix, ttl: ttl, secure: secure, logger: slog.Default()}
	p.cookies = func(jar CookieJar) Store {
		return NewCookieStore(jar, p.cookiePrefix, p.ttl, p.secure)
	}
	return p
}

// WithLogger sets the logger used for client id failures.
func (p *Provider) WithLogger(logger *slog.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// ClientIDCookie names the cookie holding the redis client id.
func (p *Provider) ClientIDCookie() string {
	return p.cookiePrefix + "cid"
}

// For returns the visitor's store, issuing a client id cookie on first use
// when backed by redis. If the id cannot be handed out the visitor's state
// stays in cookies for this request.
func (p *Provider) For(jar CookieJar) Store {
	cookies := p.cookies(jar)
	if p.redis == nil {
		return cookies
	}
	id := jar.Cookies(p.ClientIDCookie())
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		if err := cookies.Set(context.Background(), "cid", id); err != nil {
			p.logger.Warn("Failed to issue client id", slog.Any("error", err))
			return cookies
		}
	}
	return NewRedisStore(p.redis, id, p.ttl)
}
