package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// DefaultCacheTTL bounds how long cached prior responses live.
const DefaultCacheTTL = 15 * time.Minute

// CachedStore serves prior responses from Redis, falling back to the
// wrapped store on a miss. Saving invalidates the cached entry. Cache
// failures are logged and never fail a request.
type CachedStore struct {
	Store
	client  *redis.Client
	ttl     time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewCachedStore wraps inner with a Redis read-through cache.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *log.Logger, m *metrics.Metrics) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &CachedStore{Store: inner, client: client, ttl: ttl, logger: logger, metrics: m}
}

func (c *CachedStore) key(userID string, questionnaireID int) string {
	return fmt.Sprintf("canvass:responses:%d:%s", questionnaireID, userID)
}

func (c *CachedStore) Responses(ctx context.Context, userID string, questionnaireID int) ([]questionnaire.Response, error) {
	key := c.key(userID, questionnaireID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []questionnaire.Response
		if jsonErr := json.Unmarshal(data, &out); jsonErr == nil {
			c.metrics.RecordCacheLookup(true)
			return out, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case stderrors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).Warn("response cache read failed", "key", key)
	}
	c.metrics.RecordCacheLookup(false)

	out, err := c.Store.Responses(ctx, userID, questionnaireID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Warn("response cache write failed", "key", key)
		}
	}
	return out, nil
}

func (c *CachedStore) SaveResponses(ctx context.Context, userID string, questionnaireID int, responses []questionnaire.Response) (*questionnaire.Receipt, error) {
	receipt, err := c.Store.SaveResponses(ctx, userID, questionnaireID, responses)
	if err != nil {
		return nil, err
	}
	if err := c.client.Del(ctx, c.key(userID, questionnaireID)).Err(); err != nil {
		c.logger.WithError(err).Warn("response cache invalidation failed", "questionnaire_id", questionnaireID)
	}
	return receipt, nil
}

func (c *CachedStore) Ping(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "redis ping failed", err)
	}
	return nil
}

func (c *CachedStore) Close() error {
	return stderrors.Join(c.Store.Close(), c.client.Close())
}
