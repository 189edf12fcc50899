package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// DriverMemory and DriverMongo complete the set of backends Open accepts.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Driver   string
	DSN      string
	Database string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// Open builds the store described by opts, wrapping it in a Redis cache
// when RedisAddr is set.
func Open(ctx context.Context, opts Options, logger *log.Logger, m *metrics.Metrics) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case "", DriverMemory:
		s = NewMemoryStore()
	case DriverSQLite, DriverPostgres:
		s, err = OpenSQL(ctx, opts.Driver, opts.DSN)
	case DriverMongo:
		s, err = OpenMongo(ctx, opts.DSN, opts.Database)
	default:
		return nil, errors.Newf(errors.ErrCodeStoreDriver, "unknown store driver %q", opts.Driver).
			WithSuggestion("Use one of: memory, sqlite3, postgres, mongo")
	}
	if err != nil {
		return nil, err
	}

	if opts.RedisAddr == "" {
		return s, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = s.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "redis ping failed", err).
			WithSuggestion("Check store.redis_addr or unset it to run without a cache")
	}
	return NewCachedStore(s, client, opts.CacheTTL, logger, m), nil
}

// Seed stores each questionnaire that is not already present.
func Seed(ctx context.Context, s Store, qs []questionnaire.Questionnaire) (int, error) {
	added := 0
	for i := range qs {
		_, err := s.GetQuestionnaire(ctx, qs[i].ID)
		if err == nil {
			continue
		}
		if !errors.HasCode(err, errors.ErrCodeQuestionnaireNotFound) {
			return added, err
		}
		if err := s.PutQuestionnaire(ctx, &qs[i]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
