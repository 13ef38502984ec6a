package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ventia/crm-ingest/pkg/logging"
)

// Deduplicator rejects inbound events whose provider message id was
// already recorded. The Postgres existence check is authoritative; the
// optional Redis seen-cache is a best-effort fast path whose failures are
// absorbed.
type Deduplicator struct {
	store  *Store
	cache  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewDeduplicator(store *Store, cache *redis.Client, ttl time.Duration, logger *logging.Logger) *Deduplicator {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduplicator{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Seen reports whether the external id was already ingested. An empty id
// disables deduplication for the event.
func (d *Deduplicator) Seen(ctx context.Context, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	if d.cache != nil {
		if _, err := d.cache.Get(ctx, d.key(externalID)).Result(); err == nil {
			return true, nil
		} else if !errors.Is(err, redis.Nil) {
			d.logger.Warn("dedup cache lookup failed", "error", err)
		}
	}
	seen, err := d.store.ExistsByExternalID(ctx, externalID)
	if err != nil {
		return false, err
	}
	if seen {
		d.Remember(ctx, externalID)
	}
	return seen, nil
}

// Remember marks an external id as ingested in the cache. Best-effort.
func (d *Deduplicator) Remember(ctx context.Context, externalID string) {
	if d.cache == nil || externalID == "" {
		return
	}
	if err := d.cache.Set(ctx, d.key(externalID), "1", d.ttl).Err(); err != nil {
		d.logger.Warn("dedup cache set failed", "error", err)
	}
}

func (d *Deduplicator) key(externalID string) string {
	return fmt.Sprintf("ingest:seen:%s", externalID)
}
