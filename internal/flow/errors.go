package flow

import (
	"fmt"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// ValidationMessage is shown when a free text answer is blank.
const ValidationMessage = "This field cannot be empty nor can it be just whitespace."

// RequiredChoiceMessage is shown when WithRequiredChoices is set and a
// choice question has no selection.
const RequiredChoiceMessage = "Please select at least one option."

var (
	// ErrSessionClosed is returned by every mutating call after a
	// successful Finalize.
	ErrSessionClosed = errors.New(errors.ErrCodeFlowClosed, "session already submitted")

	// ErrSubmissionInFlight is returned while Finalize is waiting on the sink.
	ErrSubmissionInFlight = errors.New(errors.ErrCodeFlowInFlight, "submission in progress")
)

// ValidationError blocks an advance until the answer is edited.
type ValidationError struct {
	QuestionID int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d: %s", e.QuestionID, e.Message)
}

// SubmissionError wraps a sink failure. Drafts are retained so Finalize
// can be invoked again.
type SubmissionError struct {
	QuestionnaireID int
	Count           int
	Err             error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %d responses for questionnaire %d: %v", e.Count, e.QuestionnaireID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func unknownQuestion(id int) error {
	return errors.Newf(errors.ErrCodeFlowUnknownQuestion, "question %d is not part of this questionnaire", id)
}

func categoryMismatch(id int, want, got questionnaire.Category) error {
	return errors.Newf(errors.ErrCodeFlowCategoryMismatch, "question %d expects %s input, got %s", id, want, got)
}

func unknownOption(questionID, optionID int) error {
	return errors.Newf(errors.ErrCodeFlowUnknownOption, "question %d has no option %d", questionID, optionID)
}
