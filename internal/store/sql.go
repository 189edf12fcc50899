package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// Supported database/sql drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS questionnaires (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    body TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
    user_id TEXT NOT NULL,
    questionnaire_id INTEGER NOT NULL,
    question_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    type TEXT NOT NULL,
    single_option_id INTEGER,
    multi_option_ids TEXT,
    short_answer TEXT,
    submitted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, questionnaire_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_responses_owner ON responses(user_id, questionnaire_id);

CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    questionnaire_id INTEGER NOT NULL,
    count INTEGER NOT NULL,
    digest TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL
);
`

// SQLStore keeps questionnaires and responses in a SQL database. Queries
// are written with ? placeholders and rebound for drivers that number them.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens dsn with driver and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, errors.Newf(errors.ErrCodeStoreDriver, "unsupported sql driver %q", driver).
			WithSuggestion("Use one of: sqlite3, postgres")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "open database", err)
	}
	if driver == DriverSQLite {
		// sqlite serializes writers; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and creates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "database ping failed", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "failed to create schema", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ListQuestionnaires(ctx context.Context) ([]questionnaire.Questionnaire, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM questionnaires ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "list questionnaires", err)
	}
	defer rows.Close()

	var out []questionnaire.Questionnaire
	for rows.Next() {
		var (
			id   int
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan questionnaire", err)
		}
		var qn questionnaire.Questionnaire
		if err := json.Unmarshal([]byte(body), &qn); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("decode questionnaire %d", id), err)
		}
		out = append(out, qn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "list questionnaires", err)
	}
	return out, nil
}

func (s *SQLStore) GetQuestionnaire(ctx context.Context, id int) (*questionnaire.Questionnaire, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM questionnaires WHERE id = ?`), id).Scan(&body)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewQuestionnaireNotFoundError(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("get questionnaire %d", id), err)
	}

	var qn questionnaire.Questionnaire
	if err := json.Unmarshal([]byte(body), &qn); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("decode questionnaire %d", id), err)
	}
	return &qn, nil
}

func (s *SQLStore) PutQuestionnaire(ctx context.Context, qn *questionnaire.Questionnaire) error {
	if err := qn.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeQuestionnaireInvalid, "refusing to store invalid questionnaire", err)
	}
	body, err := json.Marshal(qn)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "encode questionnaire", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO questionnaires (id, name, description, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			body = excluded.body,
			updated_at = excluded.updated_at`),
		qn.ID, qn.Name, nullString(qn.Description), string(body), now())
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("put questionnaire %d", qn.ID), err)
	}
	return nil
}

func (s *SQLStore) Responses(ctx context.Context, userID string, questionnaireID int) ([]questionnaire.Response, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT question_id, type, single_option_id, multi_option_ids, short_answer, submitted_at
		FROM responses
		WHERE user_id = ? AND questionnaire_id = ?
		ORDER BY position`), userID, questionnaireID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "query responses", err)
	}
	defer rows.Close()

	out := []questionnaire.Response{}
	for rows.Next() {
		var (
			r      = questionnaire.Response{UserID: userID, QuestionnaireID: questionnaireID}
			typ    string
			single sql.NullInt64
			multi  sql.NullString
			text   sql.NullString
		)
		if err := rows.Scan(&r.QuestionID, &typ, &single, &multi, &text, &r.SubmittedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan response", err)
		}

		r.Type = questionnaire.Category(typ)
		if single.Valid {
			v := int(single.Int64)
			r.SingleOptionID = &v
		}
		if multi.Valid {
			ids := []int{}
			if err := json.Unmarshal([]byte(multi.String), &ids); err != nil {
				return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("decode options of question %d", r.QuestionID), err)
			}
			r.MultiOptionIDs = ids
		}
		if text.Valid {
			v := text.String
			r.ShortAnswer = &v
		}
		r.SubmittedAt = r.SubmittedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "query responses", err)
	}
	return out, nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, userID string, questionnaireID int, responses []questionnaire.Response) (*questionnaire.Receipt, error) {
	at := now()
	stamped := stamp(userID, questionnaireID, responses, at)
	receipt := NewReceipt(userID, questionnaireID, stamped, at)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM responses WHERE user_id = ? AND questionnaire_id = ?`), userID, questionnaireID); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "clear previous responses", err)
	}

	insert, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO responses
			(user_id, questionnaire_id, question_id, position, type, single_option_id, multi_option_ids, short_answer, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "prepare insert", err)
	}
	defer insert.Close()

	for i, r := range stamped {
		multi, err := encodeOptions(r.MultiOptionIDs)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "encode options", err)
		}
		if _, err := insert.ExecContext(ctx,
			userID, questionnaireID, r.QuestionID, i, string(r.Type),
			nullInt(r.SingleOptionID), multi, nullStringPtr(r.ShortAnswer), at,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("insert response for question %d", r.QuestionID), err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO receipts (id, user_id, questionnaire_id, count, digest, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		receipt.ID, userID, questionnaireID, receipt.Count, receipt.Digest, at,
	); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "insert receipt", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "commit responses", err)
	}
	return receipt, nil
}

// Receipt looks up a stored receipt by id.
func (s *SQLStore) Receipt(ctx context.Context, id string) (*questionnaire.Receipt, error) {
	r := questionnaire.Receipt{ID: id}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT user_id, questionnaire_id, count, digest, submitted_at FROM receipts WHERE id = ?`), id).
		Scan(&r.UserID, &r.QuestionnaireID, &r.Count, &r.Digest, &r.SubmittedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf(errors.ErrCodeStoreQuery, "receipt %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "get receipt", err)
	}
	r.SubmittedAt = r.SubmittedAt.UTC()
	return &r, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "database ping failed", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func encodeOptions(ids []int) (sql.NullString, error) {
	if ids == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullStringPtr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
