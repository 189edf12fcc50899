package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func sampleResponses() []questionnaire.Response {
	return []questionnaire.Response{
		{QuestionID: 101, Type: questionnaire.CategorySingleChoice, SingleOptionID: intPtr(2)},
		{QuestionID: 102, Type: questionnaire.CategoryMultiChoice, MultiOptionIDs: []int{1, 3}},
		{QuestionID: 103, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("fine, thanks")},
	}
}

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("questionnaires", func(t *testing.T) {
		_, err := s.GetQuestionnaire(ctx, 1)
		assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionnaireNotFound))

		added, err := Seed(ctx, s, questionnaire.Catalog())
		require.NoError(t, err)
		assert.Equal(t, len(questionnaire.Catalog()), added)

		added, err = Seed(ctx, s, questionnaire.Catalog())
		require.NoError(t, err)
		assert.Zero(t, added, "seeding is idempotent")

		list, err := s.ListQuestionnaires(ctx)
		require.NoError(t, err)
		require.Len(t, list, len(questionnaire.Catalog()))
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].ID, list[i].ID)
		}

		got, err := s.GetQuestionnaire(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, questionnaire.WellbeingQuestionnaire(), *got)

		renamed := questionnaire.WellbeingQuestionnaire()
		renamed.Name = "Wellbeing v2"
		require.NoError(t, s.PutQuestionnaire(ctx, &renamed))
		got, err = s.GetQuestionnaire(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Wellbeing v2", got.Name)

		invalid := questionnaire.Questionnaire{ID: 99}
		err = s.PutQuestionnaire(ctx, &invalid)
		assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionnaireInvalid))
	})

	t.Run("responses", func(t *testing.T) {
		rs, err := s.Responses(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Empty(t, rs)

		receipt, err := s.SaveResponses(ctx, "alice", 1, sampleResponses())
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.ID)
		assert.Equal(t, 3, receipt.Count)
		assert.Equal(t, "alice", receipt.UserID)
		assert.Equal(t, Digest("alice", 1, sampleResponses()), receipt.Digest)

		rs, err = s.Responses(ctx, "alice", 1)
		require.NoError(t, err)
		require.Len(t, rs, 3)
		for i, r := range rs {
			assert.Equal(t, "alice", r.UserID)
			assert.Equal(t, 1, r.QuestionnaireID)
			assert.Equal(t, sampleResponses()[i].QuestionID, r.QuestionID, "submission order is kept")
			assert.WithinDuration(t, receipt.SubmittedAt, r.SubmittedAt, time.Millisecond)

			_, err := r.Answer()
			assert.NoError(t, err)
		}
		assert.Equal(t, 2, *rs[0].SingleOptionID)
		assert.Equal(t, []int{1, 3}, rs[1].MultiOptionIDs)
		assert.Equal(t, "fine, thanks", *rs[2].ShortAnswer)

		other, err := s.Responses(ctx, "bob", 1)
		require.NoError(t, err)
		assert.Empty(t, other, "responses are per user")
	})

	t.Run("latest submission wins", func(t *testing.T) {
		_, err := s.SaveResponses(ctx, "carol", 2, sampleResponses())
		require.NoError(t, err)

		replacement := []questionnaire.Response{
			{QuestionID: 103, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("changed my mind")},
		}
		_, err = s.SaveResponses(ctx, "carol", 2, replacement)
		require.NoError(t, err)

		rs, err := s.Responses(ctx, "carol", 2)
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, "changed my mind", *rs[0].ShortAnswer)
	})

	t.Run("empty submission", func(t *testing.T) {
		receipt, err := s.SaveResponses(ctx, "dave", 3, nil)
		require.NoError(t, err)
		assert.Zero(t, receipt.Count)

		rs, err := s.Responses(ctx, "dave", 3)
		require.NoError(t, err)
		assert.Empty(t, rs)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	runStoreContract(t, s)
	assert.Len(t, s.Receipts(), 4)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQL(context.Background(), DriverSQLite, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)

	rs, err := s.Responses(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.NotEmpty(t, rs)
}

func TestSQLiteReceiptLookup(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(ctx, DriverSQLite, "file:receipts?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	receipt, err := s.SaveResponses(ctx, "erin", 1, sampleResponses())
	require.NoError(t, err)

	got, err := s.Receipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt.Digest, got.Digest)
	assert.Equal(t, receipt.Count, got.Count)

	_, err = s.Receipt(ctx, "missing")
	assert.Error(t, err)
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreDriver))
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	lite := &SQLStore{driver: DriverSQLite}
	q := `SELECT a FROM t WHERE x = ? AND y = ?`

	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CANVASS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CANVASS_TEST_POSTGRES_DSN not set")
	}
	s, err := OpenSQL(context.Background(), DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(`DELETE FROM responses; DELETE FROM receipts; DELETE FROM questionnaires`)
	require.NoError(t, err)
	runStoreContract(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("CANVASS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CANVASS_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db := "canvass_test_" + time.Now().Format("20060102150405")
	s, err := OpenMongo(ctx, uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(context.Background())
		_ = s.Close()
	})

	runStoreContract(t, s)
}

func TestCachedStore(t *testing.T) {
	addr := os.Getenv("CANVASS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CANVASS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.FlushDB(ctx).Err())

	_, m := metrics.NewRegistry()
	inner := NewMemoryStore()
	s := NewCachedStore(inner, client, time.Minute, log.Discard(), m)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)

	_, err := s.SaveResponses(ctx, "frank", 1, sampleResponses())
	require.NoError(t, err)
	first, err := s.Responses(ctx, "frank", 1)
	require.NoError(t, err)

	cached, err := client.Exists(ctx, s.key("frank", 1)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached)

	second, err := s.Responses(ctx, "frank", 1)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))

	_, err = s.SaveResponses(ctx, "frank", 1, sampleResponses()[:1])
	require.NoError(t, err)
	cached, err = client.Exists(ctx, s.key("frank", 1)).Result()
	require.NoError(t, err)
	assert.Zero(t, cached, "saving invalidates the cache")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{}, log.Discard(), nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Driver: DriverSQLite, DSN: "file:open?mode=memory&cache=shared"}, log.Discard(), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "cassandra"}, log.Discard(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreDriver))
}

func TestDigest(t *testing.T) {
	a := sampleResponses()
	b := []questionnaire.Response{a[2], a[0], a[1]}
	b[2].MultiOptionIDs = []int{3, 1}
	b[0].SubmittedAt = time.Now()

	assert.Equal(t, Digest("alice", 1, a), Digest("alice", 1, b), "order and timestamps do not change the digest")
	assert.NotEqual(t, Digest("alice", 1, a), Digest("bob", 1, a))
	assert.NotEqual(t, Digest("alice", 1, a), Digest("alice", 2, a))

	changed := sampleResponses()
	changed[2].ShortAnswer = strPtr("not fine")
	assert.NotEqual(t, Digest("alice", 1, a), Digest("alice", 1, changed))
	assert.Len(t, Digest("alice", 1, a), 64)
}
