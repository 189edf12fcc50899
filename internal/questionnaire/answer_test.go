package questionnaire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiChoiceToggleIsPersistent(t *testing.T) {
	empty := NewMultiChoice(7)
	one := empty.Toggle(3)
	two := one.Toggle(1)
	back := two.Toggle(3)

	assert.Nil(t, empty.Options())
	assert.Equal(t, []int{3}, one.Options())
	assert.Equal(t, []int{1, 3}, two.Options())
	assert.Equal(t, []int{1}, back.Options())
	assert.True(t, back.Toggle(1).Empty())
}

func TestMultiChoiceOptionsReturnsCopy(t *testing.T) {
	m := NewMultiChoice(1, 2, 5)
	got := m.Options()
	got[0] = 99

	assert.Equal(t, []int{2, 5}, m.Options())
	assert.True(t, m.Contains(5))
	assert.False(t, m.Contains(99))
}

func TestNewMultiChoiceCollapsesDuplicates(t *testing.T) {
	m := NewMultiChoice(1, 4, 2, 4, 2)
	assert.Equal(t, []int{2, 4}, m.Options())
	assert.Equal(t, 2, m.Len())
}

func TestFreeTextEmpty(t *testing.T) {
	assert.True(t, FreeText{Text: ""}.Empty())
	assert.True(t, FreeText{Text: " \t\n"}.Empty())
	assert.False(t, FreeText{Text: " a "}.Empty())
}

func TestMatches(t *testing.T) {
	qn := WellbeingQuestionnaire()
	single, multi, text := qn.Questions[0], qn.Questions[1], qn.Questions[2]

	assert.True(t, Matches(single, SingleChoice{Question: 101, Option: 2}))
	assert.False(t, Matches(single, SingleChoice{Question: 101, Option: 99}))
	assert.False(t, Matches(single, FreeText{Question: 101, Text: "x"}))
	assert.True(t, Matches(multi, NewMultiChoice(102, 1, 5)))
	assert.False(t, Matches(multi, NewMultiChoice(102, 6)))
	assert.True(t, Matches(text, FreeText{Question: 103}))
	assert.False(t, Matches(text, FreeText{Question: 999}))
	assert.False(t, Matches(text, nil))
}

func TestResponseRoundTrip(t *testing.T) {
	answers := []Answer{
		SingleChoice{Question: 1, Option: 2},
		NewMultiChoice(2, 1, 3),
		NewMultiChoice(3),
		FreeText{Question: 4, Text: "hello"},
	}

	for _, a := range answers {
		r := ResponseFromAnswer("user-1", 9, a)
		assert.Equal(t, "user-1", r.UserID)
		assert.Equal(t, 9, r.QuestionnaireID)
		assert.Equal(t, a.Category(), r.Type)

		data, err := json.Marshal(r)
		require.NoError(t, err)

		var decoded Response
		require.NoError(t, json.Unmarshal(data, &decoded))

		back, err := decoded.Answer()
		require.NoError(t, err)
		assert.Equal(t, a, back)
	}
}

func TestResponseDecodesLegacyType(t *testing.T) {
	raw := `{"user_id":"u","questionnaire_id":1,"question_id":5,"type":"MultipleChoiceSelectAll","multi_option_ids":[4,2]}`

	var r Response
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	a, err := r.Answer()
	require.NoError(t, err)
	assert.Equal(t, NewMultiChoice(5, 2, 4), a)
}

func TestResponseShapeMismatch(t *testing.T) {
	text := "oops"
	opt := 1

	bad := []Response{
		{QuestionID: 1, Type: CategorySingleChoice},
		{QuestionID: 1, Type: CategorySingleChoice, SingleOptionID: &opt, ShortAnswer: &text},
		{QuestionID: 1, Type: CategoryMultiChoice, ShortAnswer: &text},
		{QuestionID: 1, Type: CategoryFreeText},
		{QuestionID: 1, Type: CategoryFreeText, ShortAnswer: &text, SingleOptionID: &opt},
		{QuestionID: 1, Type: "rating"},
	}
	for _, r := range bad {
		_, err := r.Answer()
		assert.Error(t, err, "%+v", r)
	}
}

func TestResponseOmitsUnsetSubmittedAt(t *testing.T) {
	r := ResponseFromAnswer("alice", 1, FreeText{Question: 3, Text: "hi"})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "submitted_at")

	r.SubmittedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	data, err = json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"submitted_at":"2026-03-10T12:00:00Z"`)
}
