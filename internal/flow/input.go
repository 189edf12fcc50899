package flow

import "github.com/felixgeelhaar/canvass/internal/questionnaire"

// Input is one user edit to a question's answer. It is a sealed sum type:
// Select (single choice), Toggle (multi choice) or Text (free text).
type Input interface {
	Category() questionnaire.Category
	isInput()
}

// Select picks OptionID for a single choice question, replacing any
// previous pick.
type Select struct {
	OptionID int
}

func (Select) Category() questionnaire.Category { return questionnaire.CategorySingleChoice }
func (Select) isInput()                         {}

// Toggle flips OptionID's membership in a multi choice answer.
type Toggle struct {
	OptionID int
}

func (Toggle) Category() questionnaire.Category { return questionnaire.CategoryMultiChoice }
func (Toggle) isInput()                         {}

// Text replaces the free text answer.
type Text struct {
	Value string
}

func (Text) Category() questionnaire.Category { return questionnaire.CategoryFreeText }
func (Text) isInput()                         {}
