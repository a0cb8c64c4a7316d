// Package clientstate persists small per-visitor flags across visits. The
// self-access exclusion flag is the main user.
package clientstate

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ExcludeAnalytics marks a visitor whose interactions are never recorded.
const ExcludeAnalytics = "excludeAnalytics"

// Store reads and writes string values for one visitor.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CookieJar is the cookie surface of a request. *fiber.Ctx satisfies it.
type CookieJar interface {
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *fiber.Cookie)
	ClearCookie(key ...string)
}

// CookieStore keeps each key in its own long-lived cookie.
type CookieStore struct {
	jar    CookieJar
	prefix string
	ttl    time.Duration
	secure bool
}

func NewCookieStore(jar CookieJar, prefix string, ttl time.Duration, secure bool) *CookieStore {
	return &CookieStore{jar: jar, prefix: prefix, ttl: ttl, secure: secure}
}

func (s *CookieStore) name(key string) string {
	return s.prefix + key
}

func (s *CookieStore) Get(_ context.Context, key string) (string, bool, error) {
	v := s.jar.Cookies(s.name(key))
	return v, v != "", nil
}

func (s *CookieStore) Set(_ context.Context, key, value string) error {
	s.jar.Cookie(&fiber.Cookie{
		Name:     s.name(key),
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *CookieStore) Delete(_ context.Context, key string) error {
	s.jar.ClearCookie(s.name(key))
	return nil
}

// MemoryStore keeps values in process. Used in tests and by the CLI.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
