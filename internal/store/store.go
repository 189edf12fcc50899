// Package store persists questionnaires and submitted responses for the
// reference backend.
//
// Every implementation follows the same contract: saving a user's
// responses for a questionnaire replaces whatever that user saved for it
// before, and returns a Receipt describing what was stored.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// Store is the backend persistence layer.
type Store interface {
	ListQuestionnaires(ctx context.Context) ([]questionnaire.Questionnaire, error)
	GetQuestionnaire(ctx context.Context, id int) (*questionnaire.Questionnaire, error)
	PutQuestionnaire(ctx context.Context, qn *questionnaire.Questionnaire) error

	// Responses returns what userID last submitted for questionnaireID, in
	// submission order. No submission yields an empty slice.
	Responses(ctx context.Context, userID string, questionnaireID int) ([]questionnaire.Response, error)
	// SaveResponses replaces userID's responses for questionnaireID. The
	// records are stamped with both ids and a common submission time.
	SaveResponses(ctx context.Context, userID string, questionnaireID int, responses []questionnaire.Response) (*questionnaire.Receipt, error)

	Ping(ctx context.Context) error
	Close() error
}

// stamp copies responses, setting the owning ids and submission time.
func stamp(userID string, questionnaireID int, responses []questionnaire.Response, at time.Time) []questionnaire.Response {
	out := make([]questionnaire.Response, len(responses))
	for i, r := range responses {
		r.UserID = userID
		r.QuestionnaireID = questionnaireID
		r.SubmittedAt = at
		out[i] = r
	}
	return out
}

func sortQuestionnaires(qs []questionnaire.Questionnaire) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
