// Package redis provides a Redis-backed visited set so several crawler
// processes can share one crawl's dedup state.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

const defaultPrefix = "linkcrawler:visited:"

// Config controls the Redis connection and key layout.
type Config struct {
	Addr   string
	Prefix string
	TTL    time.Duration
	// Logger reports TTL refresh failures. Nil disables them.
	Logger *zap.Logger
}

// setCommands is the subset of Redis set commands the visited set needs.
type setCommands interface {
	Ping(ctx context.Context) error
	SAdd(ctx context.Context, key, member string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SCard(ctx context.Context, key string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	Close() error
}

// VisitedSet stores one crawl's claimed URLs in a Redis SET.
type VisitedSet struct {
	client setCommands
	key    string
	ttl    time.Duration
	logger *zap.Logger

	expireFailures atomic.Int64
}

var _ crawler.VisitedSet = (*VisitedSet)(nil)

// NewVisitedSet connects to Redis and verifies the server is reachable.
func NewVisitedSet(ctx context.Context, cfg Config, crawlID string) (*VisitedSet, error) {
	if cfg.Addr == "" {
		return nil, errors.New("visited.redis_addr is required")
	}
	client := &clientCommands{client: goredis.NewClient(&goredis.Options{Addr: cfg.Addr})}
	set, err := NewVisitedSetWithClient(client, cfg, crawlID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return set, nil
}

// NewVisitedSetWithClient builds a VisitedSet on an existing client (primarily for testing).
func NewVisitedSetWithClient(client setCommands, cfg Config, crawlID string) (*VisitedSet, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if crawlID == "" {
		return nil, errors.New("crawl id is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitedSet{
		client: client,
		key:    prefix + crawlID,
		ttl:    cfg.TTL,
		logger: logger.Named("visited.redis"),
	}, nil
}

// Key returns the Redis key holding this crawl's members.
func (s *VisitedSet) Key() string {
	return s.key
}

// Claim adds url to the set. SADD reports one new member exactly once, which
// makes the claim atomic across processes. Once SADD succeeded the caller owns
// the URL, so a failed TTL refresh is only logged and counted.
func (s *VisitedSet) Claim(ctx context.Context, url string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, url)
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", s.key, err)
	}
	if added == 0 {
		return false, nil
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl); err != nil {
			s.expireFailures.Add(1)
			s.logger.Warn("visited set ttl refresh failed",
				zap.String("key", s.key), zap.Error(err))
		}
	}
	return true, nil
}

// ExpireFailures returns how many TTL refreshes failed after a successful claim.
func (s *VisitedSet) ExpireFailures() int64 {
	return s.expireFailures.Load()
}

// Len returns the set cardinality.
func (s *VisitedSet) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", s.key, err)
	}
	return int(n), nil
}

// Members returns every claimed URL in lexical order.
func (s *VisitedSet) Members(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", s.key, err)
	}
	sort.Strings(members)
	return members, nil
}

// Close closes the Redis client. The key is left to expire.
func (s *VisitedSet) Close() error {
	return s.client.Close()
}

type clientCommands struct {
	client *goredis.Client
}

func (c *clientCommands) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *clientCommands) SAdd(ctx context.Context, key, member string) (int64, error) {
	return c.client.SAdd(ctx, key, member).Result()
}

func (c *clientCommands) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *clientCommands) SCard(ctx context.Context, key string) (int64, error) {
	return c.client.SCard(ctx, key).Result()
}

func (c *clientCommands) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.client.SMembers(ctx, key).Result()
}

func (c *clientCommands) Close() error {
	return c.client.Close()
}
