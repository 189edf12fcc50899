package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/felixgeelhaar/canvass/internal/api"
	"github.com/felixgeelhaar/canvass/internal/auth"
	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

const (
	maxBodyBytes  = 1 << 20
	maxUserIDSize = 256
)

// handleLogin handles POST /v1/sessions. Any non-blank user id is accepted;
// the backend trusts whoever holds a token it issued.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" || len(userID) > maxUserIDSize {
		s.writeCoded(w, errors.New(errors.ErrCodeIdentityInvalid, "user_id must be 1 to 256 non-blank characters"))
		return
	}

	token, expires, err := s.issuer.Issue(userID)
	if err != nil {
		s.writeCoded(w, err)
		return
	}

	s.logger.Info("session opened", "user_id", userID)
	writeJSON(w, http.StatusCreated, api.LoginResponse{Token: token, UserID: userID, ExpiresAt: expires})
}

// handleListQuestionnaires handles GET /v1/questionnaires, annotating each
// questionnaire with when the caller last submitted it.
func (s *Server) handleListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	qs, err := s.store.ListQuestionnaires(r.Context())
	if err != nil {
		s.writeCoded(w, err)
		return
	}

	out := api.QuestionnaireList{Questionnaires: make([]questionnaire.Summary, 0, len(qs))}
	for i := range qs {
		prior, err := s.store.Responses(r.Context(), userID, qs[i].ID)
		if err != nil {
			s.writeCoded(w, err)
			return
		}
		out.Questionnaires = append(out.Questionnaires, questionnaire.Summarize(&qs[i], questionnaire.LastSubmitted(prior)))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetQuestionnaire handles GET /v1/questionnaires/{id}.
func (s *Server) handleGetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	qn, err := s.store.GetQuestionnaire(r.Context(), id)
	if err != nil {
		s.writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qn)
}

// handlePriorResponses handles GET /v1/questionnaires/{id}/responses.
func (s *Server) handlePriorResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserFromContext(r.Context())

	if _, err := s.store.GetQuestionnaire(r.Context(), id); err != nil {
		s.writeCoded(w, err)
		return
	}
	rs, err := s.store.Responses(r.Context(), userID, id)
	if err != nil {
		s.writeCoded(w, err)
		return
	}
	if rs == nil {
		rs = []questionnaire.Response{}
	}
	writeJSON(w, http.StatusOK, api.ResponseList{Responses: rs})
}

// handleSubmit handles POST /v1/responses.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID, _ := auth.UserFromContext(r.Context())

	qid := req.QuestionnaireID
	if qid == 0 && len(req.Responses) > 0 {
		qid = req.Responses[0].QuestionnaireID
	}
	if qid == 0 {
		s.writeCoded(w, errors.New(errors.ErrCodeResponseInvalid, "questionnaire_id is required when no responses are sent"))
		return
	}

	qn, err := s.store.GetQuestionnaire(r.Context(), qid)
	if err != nil {
		s.writeCoded(w, err)
		return
	}
	if err := checkSubmission(qn, userID, req.Responses); err != nil {
		s.writeCoded(w, err)
		return
	}

	receipt, err := s.store.SaveResponses(r.Context(), userID, qid, req.Responses)
	if err != nil {
		s.writeCoded(w, err)
		return
	}

	s.metrics.RecordStoredResponses(qid, receipt.Count)
	s.logger.Info("responses stored",
		"user_id", userID,
		"questionnaire_id", qid,
		"count", receipt.Count,
		"receipt", receipt.ID,
	)
	writeJSON(w, http.StatusCreated, receipt)
}

// checkSubmission rejects responses that belong to another user, another
// questionnaire, an unknown question, or carry a payload the question
// cannot accept. A question may be answered at most once.
func checkSubmission(qn *questionnaire.Questionnaire, userID string, responses []questionnaire.Response) error {
	seen := make(map[int]bool, len(responses))
	for _, resp := range responses {
		if resp.UserID != userID {
			return errors.Newf(errors.ErrCodeResponseInvalid, "response for question %d belongs to another user", resp.QuestionID)
		}
		if resp.QuestionnaireID != qn.ID {
			return errors.Newf(errors.ErrCodeResponseInvalid, "response for question %d belongs to questionnaire %d, not %d", resp.QuestionID, resp.QuestionnaireID, qn.ID)
		}
		q, ok := qn.Question(resp.QuestionID)
		if !ok {
			return errors.Newf(errors.ErrCodeResponseInvalid, "question %d not in questionnaire %d", resp.QuestionID, qn.ID)
		}
		if seen[resp.QuestionID] {
			return errors.Newf(errors.ErrCodeResponseInvalid, "question %d answered twice", resp.QuestionID)
		}
		seen[resp.QuestionID] = true

		a, err := resp.Answer()
		if err != nil {
			return errors.New(errors.ErrCodeResponseInvalid, err.Error())
		}
		if !questionnaire.Matches(q, a) {
			return errors.Newf(errors.ErrCodeResponseInvalid, "response for question %d does not fit a %s question", resp.QuestionID, q.Category)
		}
	}
	return nil
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, string(errors.ErrCodeQuestionnaireNotFound), "invalid questionnaire id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeCoded maps a coded error to its HTTP status. Uncoded errors and
// store failures are logged and reported without internal detail.
func (s *Server) writeCoded(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)

	if status >= http.StatusInternalServerError {
		if code == "" {
			code = "INTERNAL"
		}
		s.logger.WithError(err).Error("request failed")
		s.metrics.RecordError(string(code), "server")
		writeError(w, status, string(code), http.StatusText(status))
		return
	}

	msg := err.Error()
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		msg = coded.Message
	}
	writeError(w, status, string(code), msg)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeQuestionnaireNotFound:
		return http.StatusNotFound
	case errors.ErrCodeQuestionnaireInvalid, errors.ErrCodeResponseInvalid, errors.ErrCodeIdentityInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeAPIUnauthorized, errors.ErrCodeIdentityToken:
		return http.StatusUnauthorized
	case errors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: code, Message: message})
}
