package questionnaire

import (
	"fmt"
	"strings"
)

// Category tags the answer shape a question accepts.
type Category string

const (
	CategorySingleChoice Category = "single_choice"
	CategoryMultiChoice  Category = "multi_choice"
	CategoryFreeText     Category = "free_text"
)

// ParseCategory accepts canonical names as well as the legacy names
// (MultipleChoice, MultipleChoiceSelectAll, ShortAnswer) older backends emit.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_choice", "single", "multiplechoice", "multiple_choice":
		return CategorySingleChoice, nil
	case "multi_choice", "multi", "multiplechoiceselectall", "select_all":
		return CategoryMultiChoice, nil
	case "free_text", "text", "shortanswer", "short_answer":
		return CategoryFreeText, nil
	default:
		return "", fmt.Errorf("unknown question category %q", s)
	}
}

// UnmarshalText normalizes category names when decoding JSON or YAML.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Category) String() string {
	return string(c)
}

// IsChoice reports whether answers pick from the question's options.
func (c Category) IsChoice() bool {
	return c == CategorySingleChoice || c == CategoryMultiChoice
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c.IsChoice() || c == CategoryFreeText
}

// Option is one selectable choice, identified within its question.
type Option struct {
	ID   int    `json:"id" yaml:"id" bson:"id"`
	Text string `json:"text" yaml:"text" bson:"text"`
}

// Question is immutable for the duration of a session.
type Question struct {
	ID       int      `json:"id" yaml:"id" bson:"id"`
	Text     string   `json:"text" yaml:"text" bson:"text"`
	Category Category `json:"type" yaml:"type" bson:"type"`
	Options  []Option `json:"options,omitempty" yaml:"options,omitempty" bson:"options,omitempty"`
}

// HasOption reports whether the question offers option id.
func (q Question) HasOption(id int) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Option returns the option with the given id.
func (q Question) Option(id int) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Questionnaire is an ordered sequence of questions.
type Questionnaire struct {
	ID          int        `json:"id" yaml:"id" bson:"_id"`
	Name        string     `json:"name" yaml:"name" bson:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" bson:"description,omitempty"`
	Questions   []Question `json:"questions" yaml:"questions" bson:"questions"`
}

// Len returns the number of questions.
func (qn *Questionnaire) Len() int {
	return len(qn.Questions)
}

// Index returns the position of question id, or -1.
func (qn *Questionnaire) Index(id int) int {
	for i, q := range qn.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Question returns the question with the given id.
func (qn *Questionnaire) Question(id int) (Question, bool) {
	i := qn.Index(id)
	if i < 0 {
		return Question{}, false
	}
	return qn.Questions[i], true
}

// Validate checks structural invariants: unique question ids, unique option
// ids per question, known categories, options present exactly for choices.
func (qn *Questionnaire) Validate() error {
	if strings.TrimSpace(qn.Name) == "" {
		return fmt.Errorf("questionnaire %d: name is required", qn.ID)
	}

	seen := make(map[int]bool, len(qn.Questions))
	for i, q := range qn.Questions {
		if seen[q.ID] {
			return fmt.Errorf("question %d (position %d): duplicate id", q.ID, i)
		}
		seen[q.ID] = true

		if !q.Category.Valid() {
			return fmt.Errorf("question %d: unknown category %q", q.ID, q.Category)
		}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text is required", q.ID)
		}

		switch {
		case q.Category.IsChoice() && len(q.Options) == 0:
			return fmt.Errorf("question %d: %s requires at least one option", q.ID, q.Category)
		case !q.Category.IsChoice() && len(q.Options) > 0:
			return fmt.Errorf("question %d: %s must not define options", q.ID, q.Category)
		}

		optSeen := make(map[int]bool, len(q.Options))
		for _, o := range q.Options {
			if optSeen[o.ID] {
				return fmt.Errorf("question %d: duplicate option id %d", q.ID, o.ID)
			}
			optSeen[o.ID] = true
		}
	}
	return nil
}
