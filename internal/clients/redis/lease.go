package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// PageLease serializes reconciliation passes per page across worker
// instances. The engine assumes single-writer access to a page's block
// subtree for the duration of a pass; the lease is what makes that
// assumption hold when more than one worker drains the queue.
type PageLease interface {
	Acquire(ctx context.Context, pageKey string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, pageKey string) error
	Close() error
}

type pageLease struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	owner  string
}

func NewPageLease(log *logger.Logger) (PageLease, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &pageLease{
		log:    log.With("client", "PageLease"),
		rdb:    rdb,
		prefix: "inkbridge:lease:",
		owner:  uuid.NewString(),
	}, nil
}

func (l *pageLease) Acquire(ctx context.Context, pageKey string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := l.rdb.SetNX(ctx, l.prefix+pageKey, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (l *pageLease) Release(ctx context.Context, pageKey string) error {
	key := l.prefix + pageKey
	current, err := l.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if current != l.owner {
		l.log.Warn("Lease owned by another worker, leaving it", "page_key", pageKey)
		return nil
	}
	if err := l.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (l *pageLease) Close() error {
	return l.rdb.Close()
}
