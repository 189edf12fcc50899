package questionnaire

import (
	"slices"
	"strings"
)

// Answer is a sealed sum type: SingleChoice, MultiChoice or FreeText.
// The variant carries the category, so a value can never hold a payload
// that disagrees with its kind. All variants are immutable values.
type Answer interface {
	QuestionID() int
	Category() Category
	// Empty reports whether the answer carries no usable content.
	Empty() bool
	isAnswer()
}

// SingleChoice selects exactly one option.
type SingleChoice struct {
	Question int
	Option   int
}

func (a SingleChoice) QuestionID() int    { return a.Question }
func (a SingleChoice) Category() Category { return CategorySingleChoice }
func (a SingleChoice) Empty() bool        { return false }
func (SingleChoice) isAnswer()            {}

// MultiChoice selects a set of options. The zero value is the empty set.
type MultiChoice struct {
	Question int
	options  []int // sorted, no duplicates, nil when empty
}

// NewMultiChoice builds a multi choice answer from ids; duplicates collapse.
func NewMultiChoice(question int, ids ...int) MultiChoice {
	m := MultiChoice{Question: question}
	if len(ids) == 0 {
		return m
	}
	opts := slices.Clone(ids)
	slices.Sort(opts)
	m.options = slices.Compact(opts)
	return m
}

func (a MultiChoice) QuestionID() int    { return a.Question }
func (a MultiChoice) Category() Category { return CategoryMultiChoice }
func (a MultiChoice) Empty() bool        { return len(a.options) == 0 }
func (MultiChoice) isAnswer()            {}

// Options returns a copy of the selected ids in ascending order.
func (a MultiChoice) Options() []int {
	return slices.Clone(a.options)
}

// Contains reports whether id is selected.
func (a MultiChoice) Contains(id int) bool {
	_, found := slices.BinarySearch(a.options, id)
	return found
}

// Len returns the number of selected options.
func (a MultiChoice) Len() int {
	return len(a.options)
}

// Toggle returns a new answer with id's membership flipped. The receiver
// is left untouched.
func (a MultiChoice) Toggle(id int) MultiChoice {
	i, found := slices.BinarySearch(a.options, id)
	next := MultiChoice{Question: a.Question}
	if found {
		next.options = slices.Delete(slices.Clone(a.options), i, i+1)
	} else {
		next.options = slices.Insert(slices.Clone(a.options), i, id)
	}
	if len(next.options) == 0 {
		next.options = nil
	}
	return next
}

// FreeText is a typed answer.
type FreeText struct {
	Question int
	Text     string
}

func (a FreeText) QuestionID() int    { return a.Question }
func (a FreeText) Category() Category { return CategoryFreeText }
func (a FreeText) Empty() bool        { return strings.TrimSpace(a.Text) == "" }
func (FreeText) isAnswer()            {}

// Matches reports whether answer a may be recorded against question q:
// same id, same category, and every referenced option exists.
func Matches(q Question, a Answer) bool {
	if a == nil || a.QuestionID() != q.ID || a.Category() != q.Category {
		return false
	}
	switch v := a.(type) {
	case SingleChoice:
		return q.HasOption(v.Option)
	case MultiChoice:
		for _, id := range v.options {
			if !q.HasOption(id) {
				return false
			}
		}
	}
	return true
}
