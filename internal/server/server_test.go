package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/canvass/internal/api"
	"github.com/felixgeelhaar/canvass/internal/auth"
	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/flow"
	"github.com/felixgeelhaar/canvass/internal/health"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
	"github.com/felixgeelhaar/canvass/internal/store"
)

type fixture struct {
	srv    *Server
	store  *store.MemoryStore
	issuer *auth.Issuer
	probes *health.ProbeManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemoryStore()
	_, err := store.Seed(context.Background(), st, questionnaire.Catalog())
	require.NoError(t, err)

	issuer, err := auth.NewIssuer([]byte("server-test"), time.Hour)
	require.NoError(t, err)

	probes := health.NewProbeManager("test")
	probes.AddChecker(health.NewStoreChecker("store", st))

	reg, m := metrics.NewRegistry()
	srv, err := NewServer(Config{Address: ":0"}, Deps{
		Store:    st,
		Issuer:   issuer,
		Probes:   probes,
		Metrics:  m,
		Gatherer: reg,
		Logger:   log.Discard(),
	})
	require.NoError(t, err)

	return &fixture{srv: srv, store: st, issuer: issuer, probes: probes}
}

func (f *fixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != "" {
		token, _, err := f.issuer.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestNewServerDefaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 30*time.Second, f.srv.shutdownTimeout)
	assert.Equal(t, 10*time.Second, f.srv.httpServer.ReadTimeout)
	assert.Equal(t, 10*time.Second, f.srv.httpServer.WriteTimeout)
	assert.Equal(t, 60*time.Second, f.srv.httpServer.IdleTimeout)
	assert.Equal(t, ":0", f.srv.Addr())
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(Config{}, Deps{})
	assert.Error(t, err)
}

func TestProbes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/startup", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	f.probes.MarkInitialized()
	rec = f.do(t, http.MethodGet, "/health/startup", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/health/ready", "/healthz"} {
		rec = f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)

		var result health.ProbeResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, health.StatusHealthy, result.Status)
		assert.Contains(t, result.Checks, "store")
	}

	rec = f.do(t, http.MethodPost, "/health/live", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShutdownFailsReadiness(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.srv.Shutdown(context.Background()))
	assert.True(t, f.srv.IsShuttingDown())

	rec := f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/v1/questionnaires", "alice", nil)
	rec := f.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/v1/questionnaires"`)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", "", api.LoginRequest{UserID: "  alice  "})
	require.Equal(t, http.StatusCreated, rec.Code)

	var out api.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "alice", out.UserID)

	claims, err := f.issuer.Verify(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID())

	rec = f.do(t, http.MethodPost, "/v1/sessions", "", api.LoginRequest{UserID: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.ErrCodeIdentityInvalid), decodeError(t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString("{"))
	bad := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/questionnaires"},
		{http.MethodGet, "/v1/questionnaires/1"},
		{http.MethodGet, "/v1/questionnaires/1/responses"},
		{http.MethodPost, "/v1/responses"},
	} {
		rec := f.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, string(errors.ErrCodeAPIUnauthorized), decodeError(t, rec).Error)
	}
}

func TestGetQuestionnaire(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/questionnaires/1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var qn questionnaire.Questionnaire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &qn))
	assert.Equal(t, questionnaire.WellbeingQuestionnaire(), qn)

	rec = f.do(t, http.MethodGet, "/v1/questionnaires/42", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(errors.ErrCodeQuestionnaireNotFound), decodeError(t, rec).Error)

	rec = f.do(t, http.MethodGet, "/v1/questionnaires/abc", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitValidation(t *testing.T) {
	valid := func() questionnaire.Response {
		return questionnaire.Response{UserID: "alice", QuestionnaireID: 1, QuestionID: 101, Type: questionnaire.CategorySingleChoice, SingleOptionID: intPtr(1)}
	}

	tests := []struct {
		name   string
		req    api.SubmitRequest
		status int
	}{
		{
			name:   "valid",
			req:    api.SubmitRequest{Responses: []questionnaire.Response{valid()}},
			status: http.StatusCreated,
		},
		{
			name:   "empty with questionnaire",
			req:    api.SubmitRequest{QuestionnaireID: 1, Responses: []questionnaire.Response{}},
			status: http.StatusCreated,
		},
		{
			name:   "empty without questionnaire",
			req:    api.SubmitRequest{},
			status: http.StatusBadRequest,
		},
		{
			name: "other user",
			req: api.SubmitRequest{Responses: []questionnaire.Response{func() questionnaire.Response {
				r := valid()
				r.UserID = "mallory"
				return r
			}()}},
			status: http.StatusBadRequest,
		},
		{
			name: "mixed questionnaires",
			req: api.SubmitRequest{Responses: []questionnaire.Response{valid(), {
				UserID: "alice", QuestionnaireID: 2, QuestionID: 201, Type: questionnaire.CategorySingleChoice, SingleOptionID: intPtr(1),
			}}},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown question",
			req: api.SubmitRequest{Responses: []questionnaire.Response{{
				UserID: "alice", QuestionnaireID: 1, QuestionID: 999, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("x"),
			}}},
			status: http.StatusBadRequest,
		},
		{
			name: "category mismatch",
			req: api.SubmitRequest{Responses: []questionnaire.Response{{
				UserID: "alice", QuestionnaireID: 1, QuestionID: 103, Type: questionnaire.CategorySingleChoice, SingleOptionID: intPtr(1),
			}}},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown option",
			req: api.SubmitRequest{Responses: []questionnaire.Response{{
				UserID: "alice", QuestionnaireID: 1, QuestionID: 102, Type: questionnaire.CategoryMultiChoice, MultiOptionIDs: []int{1, 9},
			}}},
			status: http.StatusBadRequest,
		},
		{
			name: "payload does not match type",
			req: api.SubmitRequest{Responses: []questionnaire.Response{{
				UserID: "alice", QuestionnaireID: 1, QuestionID: 103, Type: questionnaire.CategoryFreeText,
			}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "duplicate question",
			req:    api.SubmitRequest{Responses: []questionnaire.Response{valid(), valid()}},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown questionnaire",
			req: api.SubmitRequest{Responses: []questionnaire.Response{{
				UserID: "alice", QuestionnaireID: 77, QuestionID: 1, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("x"),
			}}},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/v1/responses", "alice", tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.status == http.StatusBadRequest {
				assert.NotEmpty(t, decodeError(t, rec).Message)
			}
			if tt.status != http.StatusCreated {
				assert.Empty(t, f.store.Receipts(), "rejected submissions store nothing")
			}
		})
	}
}

func TestSubmitRejectsResponseInvalidCode(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/responses", "alice", api.SubmitRequest{Responses: []questionnaire.Response{{
		UserID: "alice", QuestionnaireID: 1, QuestionID: 999, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("x"),
	}}})
	assert.Equal(t, string(errors.ErrCodeResponseInvalid), decodeError(t, rec).Error)
	assert.Contains(t, decodeError(t, rec).Message, "question 999")
}

func TestPriorResponsesArePerUser(t *testing.T) {
	f := newFixture(t)

	rs := []questionnaire.Response{{UserID: "alice", QuestionnaireID: 1, QuestionID: 103, Type: questionnaire.CategoryFreeText, ShortAnswer: strPtr("more sleep")}}
	rec := f.do(t, http.MethodPost, "/v1/responses", "alice", api.SubmitRequest{Responses: rs})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/questionnaires/1/responses", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.ResponseList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Responses, 1)
	assert.Equal(t, "more sleep", *list.Responses[0].ShortAnswer)

	rec = f.do(t, http.MethodGet, "/v1/questionnaires/1/responses", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = api.ResponseList{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.NotNil(t, list.Responses)
	assert.Empty(t, list.Responses)

	rec = f.do(t, http.MethodGet, "/v1/questionnaires/9/responses", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckSubmission(t *testing.T) {
	qn := questionnaire.WellbeingQuestionnaire()
	err := checkSubmission(&qn, "alice", nil)
	assert.NoError(t, err)

	err = checkSubmission(&qn, "alice", []questionnaire.Response{{UserID: "alice", QuestionnaireID: 1, QuestionID: 102, Type: questionnaire.CategoryMultiChoice, MultiOptionIDs: []int{}}})
	assert.NoError(t, err, "a cleared multi choice is a valid answer")
}

// TestEndToEnd drives a flow engine against the real server through the
// API client: login, list, fetch, answer, submit, then resume with priors.
func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)
	ctx := context.Background()

	client := api.NewClient(ts.URL, api.WithLogger(log.Discard()))
	login, err := client.Login(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", login.UserID)

	summaries, err := client.ListQuestionnaires(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, len(questionnaire.Catalog()))
	assert.Nil(t, summaries[0].LastSubmittedAt)

	qn, err := client.GetQuestionnaire(ctx, 1)
	require.NoError(t, err)

	prior, err := client.PriorResponses(ctx, qn.ID)
	require.NoError(t, err)
	priors, _, err := flow.PriorsFromResponses(qn, prior)
	require.NoError(t, err)

	engine, err := flow.New(qn, "alice", priors, flow.SinkFunc(client.SinkFor(qn.ID)), flow.WithLogger(log.Discard()))
	require.NoError(t, err)

	require.NoError(t, engine.RecordAnswer(101, flow.Select{OptionID: 2}))
	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.RecordAnswer(102, flow.Toggle{OptionID: 1}))
	require.NoError(t, engine.RecordAnswer(102, flow.Toggle{OptionID: 3}))
	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.RecordAnswer(103, flow.Text{Value: "fewer meetings"}))
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, flow.StateSubmitted, engine.State())

	receipt, ok := client.LastReceipt()
	require.True(t, ok)
	assert.Equal(t, 3, receipt.Count)
	stored, err := f.store.Responses(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, store.Digest("alice", 1, stored), receipt.Digest)

	summaries, err = client.ListQuestionnaires(ctx)
	require.NoError(t, err)
	require.NotNil(t, summaries[0].LastSubmittedAt)

	prior, err = client.PriorResponses(ctx, qn.ID)
	require.NoError(t, err)
	priors, skipped, err := flow.PriorsFromResponses(qn, prior)
	require.NoError(t, err)
	assert.Zero(t, skipped)

	resumed, err := flow.New(qn, "alice", priors, flow.SinkFunc(client.SinkFor(qn.ID)), flow.WithLogger(log.Discard()))
	require.NoError(t, err)
	current, ok := resumed.CurrentValue(101)
	require.True(t, ok)
	assert.Equal(t, questionnaire.SingleChoice{Question: 101, Option: 2}, current)

	stranger := api.NewClient(ts.URL, api.WithToken("not-a-token"), api.WithLogger(log.Discard()))
	_, err = stranger.ListQuestionnaires(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAPIUnauthorized))
}
