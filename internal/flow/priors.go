package flow

import (
	"fmt"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// Priors maps question id to the answer submitted in an earlier session.
// An Engine only ever reads it.
type Priors map[int]questionnaire.Answer

func (p Priors) clone() Priors {
	out := make(Priors, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// check rejects priors that could not have been drafted for qn: each must
// be keyed by its own question id and fit that question's category and
// options.
func (p Priors) check(qn *questionnaire.Questionnaire) error {
	for id, a := range p {
		q, ok := qn.Question(id)
		if !ok {
			return errors.Newf(errors.ErrCodeFlowInvalidSetup, "prior answer for unknown question %d", id)
		}
		if !questionnaire.Matches(q, a) {
			return errors.Newf(errors.ErrCodeFlowInvalidSetup, "prior answer for question %d does not fit it", id)
		}
	}
	return nil
}

// PriorsFromResponses builds the prior answer set for qn from responses
// fetched from the response store. Responses for other questionnaires, for
// questions qn no longer has, or whose shape no longer fits the question
// are skipped and reported in skipped. A malformed record is an error.
func PriorsFromResponses(qn *questionnaire.Questionnaire, responses []questionnaire.Response) (priors Priors, skipped int, err error) {
	priors = make(Priors, len(responses))
	for _, r := range responses {
		if r.QuestionnaireID != qn.ID {
			skipped++
			continue
		}
		a, convErr := r.Answer()
		if convErr != nil {
			return nil, 0, fmt.Errorf("prior answers: %w", convErr)
		}
		q, ok := qn.Question(r.QuestionID)
		if !ok || !questionnaire.Matches(q, a) {
			skipped++
			continue
		}
		priors[r.QuestionID] = a
	}
	return priors, skipped, nil
}
