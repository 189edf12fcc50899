package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/canvass/internal/flow"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// ErrAborted is returned when the user leaves before the answers were
// submitted.
var ErrAborted = stderrors.New("questionnaire aborted before submission")

// submittedMsg carries the outcome of the final Next.
type submittedMsg struct {
	err error
}

// TakeModel renders one question per screen and forwards every edit and
// navigation key to a flow.Engine. All answer state lives in the engine;
// the model only keeps view state such as the option highlight.
type TakeModel struct {
	ctx    context.Context
	engine *flow.Engine
	qn     questionnaire.Questionnaire

	keys     keyMap
	help     help.Model
	progress progress.Model
	input    textinput.Model
	spinner  spinner.Model
	styles   Styles

	shownCursor int // question the view state was built for
	highlight   int // option row under the cursor

	submitting bool
	submitErr  error
	done       bool
	quitting   bool
	lastErr    error
	width      int
}

// NewTakeModel creates a take view over engine. ctx bounds the submission.
func NewTakeModel(ctx context.Context, engine *flow.Engine) *TakeModel {
	in := textinput.New()
	in.Placeholder = "Type your answer"
	in.CharLimit = 2000
	in.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &TakeModel{
		ctx:         ctx,
		engine:      engine,
		qn:          engine.Questionnaire(),
		keys:        keys,
		help:        help.New(),
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		input:       in,
		spinner:     sp,
		styles:      DefaultStyles(),
		shownCursor: -1,
	}
	m.syncQuestion()
	return m
}

// Init focuses the text input when the first question is free text.
func (m *TakeModel) Init() tea.Cmd {
	if m.current().Category == questionnaire.CategoryFreeText {
		return textinput.Blink
	}
	return nil
}

// Update handles messages and updates the model
func (m *TakeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-10, 20), 80)
		m.help.Width = msg.Width
		return m, nil

	case submittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.submitErr = msg.err
			return m, nil
		}
		m.submitErr = nil
		m.done = true
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.current().Category == questionnaire.CategoryFreeText {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *TakeModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.done {
		return m, tea.Quit
	}
	if m.submitting {
		return m, nil
	}

	q := m.current()
	isText := q.Category == questionnaire.CategoryFreeText

	switch {
	case key.Matches(msg, m.keys.Next), isText && msg.Type == tea.KeyEnter:
		return m, m.next()
	case key.Matches(msg, m.keys.Prev):
		m.submitErr = nil
		m.lastErr = m.engine.Previous()
		return m, m.syncQuestion()
	case m.submitErr != nil && msg.Type == tea.KeyEnter:
		return m, m.next()
	}

	if isText {
		return m, m.updateText(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.highlight > 0 {
			m.highlight--
		}
	case key.Matches(msg, m.keys.Down):
		if m.highlight < len(q.Options)-1 {
			m.highlight++
		}
	case key.Matches(msg, m.keys.Choose):
		m.choose(q)
	}
	return m, nil
}

// updateText feeds a key to the text input and records the new value if
// it changed. Each keystroke is one edit.
func (m *TakeModel) updateText(msg tea.KeyMsg) tea.Cmd {
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.lastErr = m.engine.RecordAnswer(m.current().ID, flow.Text{Value: after})
	}
	return cmd
}

func (m *TakeModel) choose(q questionnaire.Question) {
	if len(q.Options) == 0 {
		return
	}
	opt := q.Options[m.highlight].ID
	if q.Category == questionnaire.CategoryMultiChoice {
		m.lastErr = m.engine.RecordAnswer(q.ID, flow.Toggle{OptionID: opt})
		return
	}
	m.lastErr = m.engine.RecordAnswer(q.ID, flow.Select{OptionID: opt})
}

// next advances, or on the last question starts the submission in the
// background so the spinner keeps running while the sink works.
func (m *TakeModel) next() tea.Cmd {
	q := m.current()
	if m.engine.IsLast() && m.engine.Validate(q.ID) {
		m.submitting = true
		m.submitErr = nil
		return tea.Batch(m.spinner.Tick, m.submitCmd())
	}

	err := m.engine.Next(m.ctx)
	var verr *flow.ValidationError
	if err != nil && !stderrors.As(err, &verr) {
		m.lastErr = err
	}
	return m.syncQuestion()
}

func (m *TakeModel) submitCmd() tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return submittedMsg{err: engine.Next(ctx)}
	}
}

// syncQuestion rebuilds view state when the cursor moved: the highlight
// starts on the current single choice, and the text input is loaded with
// the current answer.
func (m *TakeModel) syncQuestion() tea.Cmd {
	cursor := m.engine.Cursor()
	if cursor == m.shownCursor {
		return nil
	}
	m.shownCursor = cursor
	m.highlight = 0

	q := m.current()
	value, _ := m.engine.CurrentValue(q.ID)

	switch v := value.(type) {
	case questionnaire.SingleChoice:
		for i, o := range q.Options {
			if o.ID == v.Option {
				m.highlight = i
			}
		}
	case questionnaire.FreeText:
		m.input.SetValue(v.Text)
	default:
		m.input.SetValue("")
	}

	if q.Category == questionnaire.CategoryFreeText {
		m.input.CursorEnd()
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *TakeModel) current() questionnaire.Question {
	return m.engine.Current()
}

// Done reports whether the answers were submitted.
func (m *TakeModel) Done() bool {
	return m.done
}

// View renders the UI
func (m *TakeModel) View() string {
	if m.quitting && !m.done {
		return "Questionnaire cancelled. Nothing was submitted.\n"
	}
	if m.done {
		return m.renderDone()
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.qn.Name))
	b.WriteString("\n")
	if m.qn.Description != "" {
		b.WriteString(m.styles.Subtitle.Render(m.qn.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.progress.ViewAs(m.engine.Progress() / 100))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Progress: %d/%d", m.engine.Cursor()+1, m.engine.Len())))
	b.WriteString("\n")

	q := m.current()
	b.WriteString(m.styles.Question.Render(q.Text))
	b.WriteString("\n")

	if q.Category == questionnaire.CategoryFreeText {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderOptions(q))
	}

	if msg, ok := m.engine.Error(q.ID); ok {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(msg))
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(m.lastErr.Error()))
		b.WriteString("\n")
	}

	switch {
	case m.submitting:
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Submitting answers...")
		b.WriteString("\n")
	case m.submitErr != nil:
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("Submission failed: ") + m.submitErr.Error())
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Your answers are kept. Press enter to retry or esc to quit."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if q.Category == questionnaire.CategoryFreeText {
		b.WriteString(m.help.View(textKeys{m.keys}))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *TakeModel) renderOptions(q questionnaire.Question) string {
	value, _ := m.engine.CurrentValue(q.ID)

	var b strings.Builder
	for i, o := range q.Options {
		marker := "( )"
		chosen := false
		switch v := value.(type) {
		case questionnaire.SingleChoice:
			chosen = v.Option == o.ID
			if chosen {
				marker = "(•)"
			}
		case questionnaire.MultiChoice:
			chosen = v.Contains(o.ID)
			marker = "[ ]"
			if chosen {
				marker = "[x]"
			}
		default:
			if q.Category == questionnaire.CategoryMultiChoice {
				marker = "[ ]"
			}
		}

		line := fmt.Sprintf("%s %s", marker, o.Text)
		switch {
		case i == m.highlight:
			line = m.styles.Highlighted.Render("› " + line)
		case chosen:
			line = "  " + m.styles.Selected.Render(line)
		default:
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *TakeModel) renderDone() string {
	var b strings.Builder
	b.WriteString(m.styles.Success.Render("✓ Answers submitted"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Thanks for completing %q.", m.qn.Name))
	return "\n" + m.styles.Border.Render(b.String()) + "\n" +
		m.styles.Muted.Render("Press any key to exit.") + "\n"
}

// RunTake runs the take view until the answers are submitted or the user
// quits. It returns ErrAborted if nothing was submitted.
func RunTake(ctx context.Context, engine *flow.Engine, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewTakeModel(ctx, engine)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(model, opts...)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}

	m, ok := final.(*TakeModel)
	if !ok {
		return fmt.Errorf("invalid final model type")
	}
	if !m.Done() {
		return ErrAborted
	}
	return nil
}
