package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
)

// CachedDirectory decorates another directory with a Redis read-through
// cache. Lookups happen on every projection row, so misses to the
// backing directory dominate without it. Not-found answers are not
// cached; an account registered later becomes visible on the next
// lookup.
type CachedDirectory struct {
	next  ports.AccountDirectory
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCached(next ports.AccountDirectory, client redis.Cmdable, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		redis: client,
		ttl:   ttl,
	}
}

func cacheKey(accountID domain.AccountID) string {
	return "directory:name:" + accountID.String()
}

// ResolveName serves from the cache when possible and falls through to
// the backing directory otherwise. A broken cache degrades to
// pass-through rather than failing the lookup.
func (d *CachedDirectory) ResolveName(ctx context.Context, accountID domain.AccountID) (string, error) {
	key := cacheKey(accountID)

	name, err := d.redis.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return "", ctx.Err()
	}

	name, err = d.next.ResolveName(ctx, accountID)
	if err != nil {
		return "", err
	}

	if err := d.redis.Set(ctx, key, name, d.ttl).Err(); err != nil {
		return name, nil
	}
	return name, nil
}

// Invalidate drops the cached name for an account.
func (d *CachedDirectory) Invalidate(ctx context.Context, accountID domain.AccountID) error {
	if err := d.redis.Del(ctx, cacheKey(accountID)).Err(); err != nil {
		return fmt.Errorf("invalidate directory cache: %w", err)
	}
	return nil
}
