package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// Receipt acknowledges a stored submission.
type Receipt = questionnaire.Receipt

// LoginRequest is the body of POST /v1/sessions.
type LoginRequest struct {
	UserID string `json:"user_id"`
}

// LoginResponse is returned by POST /v1/sessions.
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QuestionnaireList is returned by GET /v1/questionnaires.
type QuestionnaireList struct {
	Questionnaires []questionnaire.Summary `json:"questionnaires"`
}

// ResponseList is returned by GET /v1/questionnaires/{id}/responses.
type ResponseList struct {
	Responses []questionnaire.Response `json:"responses"`
}

// SubmitRequest is the body of POST /v1/responses. QuestionnaireID may be
// omitted when Responses is non-empty.
type SubmitRequest struct {
	QuestionnaireID int                      `json:"questionnaire_id,omitempty"`
	Responses       []questionnaire.Response `json:"responses"`
}

// Login opens a backend session for userID and remembers the token for
// subsequent requests.
func (c *Client) Login(ctx context.Context, userID string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", LoginRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New(errors.ErrCodeAPIDecode, "login response carried no token")
	}
	c.SetToken(out.Token)
	return &out, nil
}

// ListQuestionnaires returns the questionnaires available to the caller.
func (c *Client) ListQuestionnaires(ctx context.Context) ([]questionnaire.Summary, error) {
	var out QuestionnaireList
	if err := c.do(ctx, http.MethodGet, "/v1/questionnaires", nil, &out); err != nil {
		return nil, err
	}
	return out.Questionnaires, nil
}

// GetQuestionnaire fetches and validates one questionnaire.
func (c *Client) GetQuestionnaire(ctx context.Context, id int) (*questionnaire.Questionnaire, error) {
	var qn questionnaire.Questionnaire
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/questionnaires/%d", id), nil, &qn); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, errors.NewQuestionnaireNotFoundError(id)
		}
		return nil, err
	}
	if err := qn.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQuestionnaireInvalid, "backend returned an invalid questionnaire", err)
	}
	return &qn, nil
}

// PriorResponses returns what the caller submitted for questionnaireID
// last time. An empty slice means they never answered.
func (c *Client) PriorResponses(ctx context.Context, questionnaireID int) ([]questionnaire.Response, error) {
	var out ResponseList
	path := fmt.Sprintf("/v1/questionnaires/%d/responses", questionnaireID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, errors.NewQuestionnaireNotFoundError(questionnaireID)
		}
		return nil, err
	}
	return out.Responses, nil
}

// SubmitResponses stores the responses and returns the backend's receipt.
// The questionnaire is taken from the responses themselves.
func (c *Client) SubmitResponses(ctx context.Context, responses []questionnaire.Response) (*Receipt, error) {
	qid := 0
	if len(responses) > 0 {
		qid = responses[0].QuestionnaireID
	}
	return c.SubmitFor(ctx, qid, responses)
}

// SubmitFor stores responses for questionnaireID. Unlike SubmitResponses it
// can submit an empty set, which clears what the user stored before.
func (c *Client) SubmitFor(ctx context.Context, questionnaireID int, responses []questionnaire.Response) (*Receipt, error) {
	if responses == nil {
		responses = []questionnaire.Response{}
	}
	req := SubmitRequest{QuestionnaireID: questionnaireID, Responses: responses}

	var out Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/responses", req, &out); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.lastReceipt = &out
	c.mu.Unlock()
	return &out, nil
}

// Submit implements flow.Sink.
func (c *Client) Submit(ctx context.Context, responses []questionnaire.Response) error {
	_, err := c.SubmitResponses(ctx, responses)
	return err
}

// SinkFor returns a flow sink bound to questionnaireID, so sessions that
// end with no answers still reach the backend.
func (c *Client) SinkFor(questionnaireID int) func(context.Context, []questionnaire.Response) error {
	return func(ctx context.Context, responses []questionnaire.Response) error {
		_, err := c.SubmitFor(ctx, questionnaireID, responses)
		return err
	}
}

// LastReceipt returns the receipt of the most recent successful submission.
func (c *Client) LastReceipt() (*Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReceipt, c.lastReceipt != nil
}

func isStatus(err error, status int) bool {
	var se *StatusError
	return stderrors.As(err, &se) && se.Status == status
}
