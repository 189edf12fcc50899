// Package flow implements the answer collection state machine behind a
// questionnaire-taking session.
//
// An Engine walks a linear sequence of questions one at a time. It keeps
// at most one draft answer per question, merges drafts with the answers
// the user submitted in an earlier session (priors), validates free text
// on advance, and hands the stamped drafts to a Sink when the user moves
// past the last question.
//
//	Answering(i) --Next(valid)--> Answering(i+1)   for i < last
//	Answering(last) --Next(valid)--> Submitted     via Finalize
//	Answering(i) --Next(invalid)--> Answering(i)   error recorded
//	Answering(i) --Previous--> Answering(max(i-1, 0))
package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateAnswering accepts edits and navigation.
	StateAnswering State = iota
	// StateSubmitting waits on the sink; edits are rejected.
	StateSubmitting
	// StateSubmitted is terminal.
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateAnswering:
		return "answering"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Sink accepts the finalized responses of a session.
type Sink interface {
	Submit(ctx context.Context, responses []questionnaire.Response) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, responses []questionnaire.Response) error

// Submit calls f.
func (f SinkFunc) Submit(ctx context.Context, responses []questionnaire.Response) error {
	return f(ctx, responses)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records session activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRequiredChoices makes choice questions fail validation when nothing
// is selected. By default choice questions may be skipped.
func WithRequiredChoices() Option {
	return func(e *Engine) { e.requireChoices = true }
}

// Engine is the answer collection state machine. It is safe for use from
// multiple goroutines, but is designed around a single logical writer.
type Engine struct {
	mu sync.Mutex

	id     string
	qn     questionnaire.Questionnaire
	userID string
	priors Priors
	sink   Sink

	cursor int
	drafts []questionnaire.Answer // insertion order
	index  map[int]int            // question id -> position in drafts
	errors map[int]string
	state  State

	requireChoices bool
	logger         *log.Logger
	metrics        *metrics.Metrics
}

// New starts a session over qn for userID. priors is the read-only set of
// previously submitted answers; it is never modified.
func New(qn *questionnaire.Questionnaire, userID string, priors Priors, sink Sink, opts ...Option) (*Engine, error) {
	if qn == nil {
		return nil, errors.New(errors.ErrCodeFlowInvalidSetup, "questionnaire is required")
	}
	if err := qn.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFlowInvalidSetup, "invalid questionnaire", err)
	}
	if qn.Len() == 0 {
		return nil, errors.Newf(errors.ErrCodeFlowInvalidSetup, "questionnaire %d has no questions", qn.ID)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New(errors.ErrCodeFlowInvalidSetup, "user id is required")
	}
	if sink == nil {
		return nil, errors.New(errors.ErrCodeFlowInvalidSetup, "submission sink is required")
	}
	if err := priors.check(qn); err != nil {
		return nil, err
	}

	e := &Engine{
		id:     uuid.New().String(),
		qn:     cloneQuestionnaire(qn),
		userID: userID,
		priors: priors.clone(),
		sink:   sink,
		index:  make(map[int]int),
		errors: make(map[int]string),
		state:  StateAnswering,
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("session_id", e.id, "questionnaire_id", qn.ID)

	e.metrics.RecordSessionStart(qn.ID)
	e.logger.Debug("session started", "questions", qn.Len(), "priors", len(e.priors))
	return e, nil
}

// RecordAnswer applies one edit to the draft for questionID and clears any
// validation error recorded for it. Unknown questions, category mismatches
// and options the question does not offer are contract violations: they
// return a coded error and leave the session untouched.
func (e *Engine) RecordAnswer(questionID int, in Input) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	if in == nil {
		return errors.Newf(errors.ErrCodeFlowCategoryMismatch, "question %d: nil input", questionID)
	}

	q, ok := e.qn.Question(questionID)
	if !ok {
		return unknownQuestion(questionID)
	}
	if in.Category() != q.Category {
		return categoryMismatch(questionID, q.Category, in.Category())
	}

	existing, hasDraft := e.draftLocked(questionID)

	var next questionnaire.Answer
	switch v := in.(type) {
	case Select:
		if !q.HasOption(v.OptionID) {
			return unknownOption(questionID, v.OptionID)
		}
		next = questionnaire.SingleChoice{Question: questionID, Option: v.OptionID}
	case Toggle:
		if !q.HasOption(v.OptionID) {
			return unknownOption(questionID, v.OptionID)
		}
		if prev, isMulti := existing.(questionnaire.MultiChoice); hasDraft && isMulti {
			next = prev.Toggle(v.OptionID)
		} else {
			next = questionnaire.NewMultiChoice(questionID, v.OptionID)
		}
	case Text:
		next = questionnaire.FreeText{Question: questionID, Text: v.Value}
	default:
		return categoryMismatch(questionID, q.Category, in.Category())
	}

	e.putLocked(next)
	delete(e.errors, questionID)

	e.metrics.RecordAnswer(q.Category.String())
	return nil
}

// Validate checks the current answer to questionID. Only free text can
// fail (absent, empty or whitespace-only); on failure the fixed
// ValidationMessage is recorded for the question.
func (e *Engine) Validate(questionID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateLocked(questionID)
}

// Next validates the current question, carries a prior answer forward if
// the question was left untouched, and advances. At the last question it
// finalizes instead. A failed validation returns *ValidationError and
// leaves the cursor in place.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()

	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	q := e.qn.Questions[e.cursor]
	if !e.validateLocked(q.ID) {
		msg := e.errors[q.ID]
		e.mu.Unlock()
		e.metrics.RecordValidationFailure(e.qn.ID)
		return &ValidationError{QuestionID: q.ID, Message: msg}
	}

	if _, touched := e.index[q.ID]; !touched {
		if prior, ok := e.priors[q.ID]; ok {
			e.putLocked(prior)
			e.logger.Debug("carried prior answer forward", "question_id", q.ID)
		}
	}

	if e.cursor < len(e.qn.Questions)-1 {
		e.cursor++
		e.mu.Unlock()
		return nil
	}

	responses := e.beginSubmitLocked()
	e.mu.Unlock()
	return e.submit(ctx, responses)
}

// Previous moves back one question, stopping at the first. It neither
// validates nor carries answers forward.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	if e.cursor > 0 {
		e.cursor--
	}
	return nil
}

// Finalize stamps every draft with the user and questionnaire ids and
// hands them to the sink. On success the session becomes Submitted and the
// drafts are discarded. On failure the drafts are kept and a
// *SubmissionError is returned; Finalize may be called again.
func (e *Engine) Finalize(ctx context.Context) error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	responses := e.beginSubmitLocked()
	e.mu.Unlock()

	return e.submit(ctx, responses)
}

func (e *Engine) beginSubmitLocked() []questionnaire.Response {
	e.state = StateSubmitting
	return e.responsesLocked()
}

func (e *Engine) submit(ctx context.Context, responses []questionnaire.Response) error {
	start := time.Now()
	err := e.sink.Submit(ctx, responses)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.RecordSubmission(e.qn.ID, elapsed, err == nil)

	if err != nil {
		e.state = StateAnswering
		e.logger.WithError(err).Warn("submission failed", "responses", len(responses))
		return &SubmissionError{QuestionnaireID: e.qn.ID, Count: len(responses), Err: err}
	}

	e.state = StateSubmitted
	e.drafts = nil
	e.index = make(map[int]int)
	e.errors = make(map[int]string)
	e.logger.Info("responses submitted", "responses", len(responses), "elapsed", elapsed)
	return nil
}

// CurrentValue returns the value to display for questionID: the draft if
// one exists, otherwise the prior answer, otherwise (nil, false).
func (e *Engine) CurrentValue(questionID int) (questionnaire.Answer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentValueLocked(questionID)
}

// Progress returns (cursor+1)/total*100.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.cursor+1) / float64(len(e.qn.Questions)) * 100
}

// Cursor returns the 0-based index of the current question.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Current returns the question at the cursor.
func (e *Engine) Current() questionnaire.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qn.Questions[e.cursor]
}

// IsLast reports whether the cursor is on the final question.
func (e *Engine) IsLast() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor == len(e.qn.Questions)-1
}

// Len returns the number of questions.
func (e *Engine) Len() int {
	return len(e.qn.Questions)
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Drafts returns the in-progress answers in insertion order.
func (e *Engine) Drafts() []questionnaire.Answer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]questionnaire.Answer, len(e.drafts))
	copy(out, e.drafts)
	return out
}

// Responses returns the drafts stamped as they would be submitted now.
func (e *Engine) Responses() []questionnaire.Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.responsesLocked()
}

// Error returns the validation message recorded for questionID.
func (e *Engine) Error(questionID int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok := e.errors[questionID]
	return msg, ok
}

// Questionnaire returns a copy of the questionnaire being answered.
func (e *Engine) Questionnaire() questionnaire.Questionnaire {
	return cloneQuestionnaire(&e.qn)
}

// ID returns the session id.
func (e *Engine) ID() string {
	return e.id
}

// UserID returns the acting user's id.
func (e *Engine) UserID() string {
	return e.userID
}

func (e *Engine) checkOpenLocked() error {
	switch e.state {
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateSubmitted:
		return ErrSessionClosed
	}
	return nil
}

func (e *Engine) validateLocked(questionID int) bool {
	q, ok := e.qn.Question(questionID)
	if !ok {
		return false
	}

	switch {
	case q.Category == questionnaire.CategoryFreeText:
		if v, has := e.currentValueLocked(questionID); !has || v.Empty() {
			e.errors[questionID] = ValidationMessage
			return false
		}
	case e.requireChoices && q.Category.IsChoice():
		if v, has := e.currentValueLocked(questionID); !has || v.Empty() {
			e.errors[questionID] = RequiredChoiceMessage
			return false
		}
	}
	return true
}

func (e *Engine) currentValueLocked(questionID int) (questionnaire.Answer, bool) {
	if d, ok := e.draftLocked(questionID); ok {
		return d, true
	}
	if p, ok := e.priors[questionID]; ok {
		return p, true
	}
	return nil, false
}

func (e *Engine) draftLocked(questionID int) (questionnaire.Answer, bool) {
	i, ok := e.index[questionID]
	if !ok {
		return nil, false
	}
	return e.drafts[i], true
}

// putLocked replaces the draft for a's question or appends a new one.
// Answers are immutable values, so replacing the slot never affects
// another draft.
func (e *Engine) putLocked(a questionnaire.Answer) {
	if i, ok := e.index[a.QuestionID()]; ok {
		e.drafts[i] = a
		return
	}
	e.index[a.QuestionID()] = len(e.drafts)
	e.drafts = append(e.drafts, a)
}

func (e *Engine) responsesLocked() []questionnaire.Response {
	out := make([]questionnaire.Response, 0, len(e.drafts))
	for _, d := range e.drafts {
		out = append(out, questionnaire.ResponseFromAnswer(e.userID, e.qn.ID, d))
	}
	return out
}

func cloneQuestionnaire(qn *questionnaire.Questionnaire) questionnaire.Questionnaire {
	out := *qn
	out.Questions = make([]questionnaire.Question, len(qn.Questions))
	for i, q := range qn.Questions {
		q.Options = append([]questionnaire.Option(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

// String summarizes the session for logs and debugging.
func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("session %s: questionnaire %d, %s at %d/%d, %d drafts",
		e.id, e.qn.ID, e.state, e.cursor+1, len(e.qn.Questions), len(e.drafts))
}
