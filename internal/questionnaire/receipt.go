package questionnaire

import "time"

// Receipt acknowledges a stored submission. Digest is a content hash of the
// stored responses, so two receipts with the same digest describe the same
// answers.
type Receipt struct {
	ID              string    `json:"id" bson:"id"`
	UserID          string    `json:"user_id" bson:"user_id"`
	QuestionnaireID int       `json:"questionnaire_id" bson:"questionnaire_id"`
	Count           int       `json:"count" bson:"count"`
	Digest          string    `json:"digest" bson:"digest"`
	SubmittedAt     time.Time `json:"submitted_at" bson:"submitted_at"`
}

// Summary is the listing view of a questionnaire for one user.
type Summary struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Questions       int        `json:"questions"`
	LastSubmittedAt *time.Time `json:"last_submitted_at,omitempty"`
}

// Summarize returns the listing view of qn. last is the user's most recent
// submission, or zero if they never answered.
func Summarize(qn *Questionnaire, last time.Time) Summary {
	s := Summary{
		ID:          qn.ID,
		Name:        qn.Name,
		Description: qn.Description,
		Questions:   qn.Len(),
	}
	if !last.IsZero() {
		s.LastSubmittedAt = &last
	}
	return s
}

// LastSubmitted returns the latest SubmittedAt among responses.
func LastSubmitted(responses []Response) time.Time {
	var last time.Time
	for _, r := range responses {
		if r.SubmittedAt.After(last) {
			last = r.SubmittedAt
		}
	}
	return last
}
