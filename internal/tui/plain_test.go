package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/canvass/internal/flow"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

func runPlain(t *testing.T, e *flow.Engine, lines ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	err := RunPlain(context.Background(), e, in, &out)
	return out.String(), err
}

func TestPlainCompletesQuestionnaire(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, nil, sink)

	out, err := runPlain(t, e,
		"2",     // Good
		"1 3 1", // toggles leave Support requests
		":next",
		"less context switching",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Progress: 1/3")
	assert.Contains(t, out, "[x] 3) Support requests")
	assert.Contains(t, out, "✓ Answers submitted.")
	assert.Equal(t, flow.StateSubmitted, e.State())

	require.Len(t, sink.calls(), 1)
	got := sink.calls()[0]
	require.Len(t, got, 3)
	assert.Equal(t, 101, got[0].QuestionID)
	require.NotNil(t, got[0].SingleOptionID)
	assert.Equal(t, 2, *got[0].SingleOptionID)
	assert.Equal(t, []int{3}, got[1].MultiOptionIDs)
	require.NotNil(t, got[2].ShortAnswer)
	assert.Equal(t, "less context switching", *got[2].ShortAnswer)
}

func TestPlainRejectsOutOfRangeOption(t *testing.T) {
	e := newEngine(t, nil, &recordingSink{})

	out, err := runPlain(t, e, "9", "abc")
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 2, strings.Count(out, "Enter a number between 1 and 4."))
	assert.Equal(t, 0, e.Cursor())
	assert.Contains(t, out, "Nothing was submitted")
}

func TestPlainBlankTextShowsValidation(t *testing.T) {
	e := newEngine(t, nil, &recordingSink{})

	out, err := runPlain(t, e, "", "", "   ")
	assert.ErrorIs(t, err, ErrAborted)
	assert.Contains(t, out, flow.ValidationMessage)
	assert.Equal(t, 2, e.Cursor())
}

func TestPlainBackAndQuit(t *testing.T) {
	e := newEngine(t, nil, &recordingSink{})

	out, err := runPlain(t, e, "1", ":back", ":help", ":quit", "2")
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 0, e.Cursor())
	assert.Contains(t, out, "[*] 1) Great", "the chosen option is marked after going back")
	assert.Equal(t, 2, strings.Count(out, plainHelp))

	v, ok := e.CurrentValue(101)
	require.True(t, ok)
	assert.Equal(t, questionnaire.SingleChoice{Question: 101, Option: 1}, v)
}

func TestPlainShowsPriorsAndRetriesSubmission(t *testing.T) {
	sink := &recordingSink{failNext: true}
	priors := flow.Priors{
		103: questionnaire.FreeText{Question: 103, Text: "more sleep"},
	}
	e := newEngine(t, priors, sink)

	out, err := runPlain(t, e, "", "", "", ":next")
	require.NoError(t, err)

	assert.Contains(t, out, "current: more sleep")
	assert.Contains(t, out, "Submission failed: backend unavailable")
	require.Len(t, sink.calls(), 1)
	require.Len(t, sink.calls()[0], 1)
	require.NotNil(t, sink.calls()[0][0].ShortAnswer)
	assert.Equal(t, "more sleep", *sink.calls()[0][0].ShortAnswer)
}

func TestPlainStopsOnCancelledContext(t *testing.T) {
	e := newEngine(t, nil, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := RunPlain(ctx, e, strings.NewReader("1\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
}
