package questionnaire

import (
	"fmt"
	"time"
)

// Response is the wire record exchanged with the backend. Exactly one of
// the payload fields is set, matching Type; Answer() enforces that when
// decoding.
type Response struct {
	UserID          string    `json:"user_id" bson:"user_id"`
	QuestionnaireID int       `json:"questionnaire_id" bson:"questionnaire_id"`
	QuestionID      int       `json:"question_id" bson:"question_id"`
	Type            Category  `json:"type" bson:"type"`
	SingleOptionID  *int      `json:"single_option_id,omitempty" bson:"single_option_id,omitempty"`
	MultiOptionIDs  []int     `json:"multi_option_ids,omitempty" bson:"multi_option_ids,omitempty"`
	ShortAnswer     *string   `json:"short_answer,omitempty" bson:"short_answer,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at,omitzero" bson:"submitted_at,omitempty"`
}

// ResponseFromAnswer stamps a with the acting user and questionnaire.
func ResponseFromAnswer(userID string, questionnaireID int, a Answer) Response {
	r := Response{
		UserID:          userID,
		QuestionnaireID: questionnaireID,
		QuestionID:      a.QuestionID(),
		Type:            a.Category(),
	}
	switch v := a.(type) {
	case SingleChoice:
		id := v.Option
		r.SingleOptionID = &id
	case MultiChoice:
		r.MultiOptionIDs = v.Options()
		if r.MultiOptionIDs == nil {
			r.MultiOptionIDs = []int{}
		}
	case FreeText:
		text := v.Text
		r.ShortAnswer = &text
	}
	return r
}

// Answer converts the record back to its typed form.
func (r Response) Answer() (Answer, error) {
	switch r.Type {
	case CategorySingleChoice:
		if r.SingleOptionID == nil || r.MultiOptionIDs != nil || r.ShortAnswer != nil {
			return nil, r.shapeError()
		}
		return SingleChoice{Question: r.QuestionID, Option: *r.SingleOptionID}, nil
	case CategoryMultiChoice:
		if r.SingleOptionID != nil || r.ShortAnswer != nil {
			return nil, r.shapeError()
		}
		return NewMultiChoice(r.QuestionID, r.MultiOptionIDs...), nil
	case CategoryFreeText:
		if r.ShortAnswer == nil || r.SingleOptionID != nil || r.MultiOptionIDs != nil {
			return nil, r.shapeError()
		}
		return FreeText{Question: r.QuestionID, Text: *r.ShortAnswer}, nil
	default:
		return nil, fmt.Errorf("response for question %d: unknown type %q", r.QuestionID, r.Type)
	}
}

func (r Response) shapeError() error {
	return fmt.Errorf("response for question %d: payload does not match type %s", r.QuestionID, r.Type)
}
