package tui

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/canvass/internal/flow"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

const plainHelp = "commands: :next (or empty line) to continue, :back to go back, :quit to abort"

// RunPlain is the line-oriented fallback for terminals without cursor
// control. Each question is printed with numbered options:
//
//   - single choice: a number selects that option and moves on
//   - multi choice: numbers (space separated) toggle options; :next moves on
//   - free text: the line becomes the answer and moves on
//
// It returns nil once the answers are submitted and ErrAborted when the
// input ends or the user types :quit first.
func RunPlain(ctx context.Context, engine *flow.Engine, in io.Reader, out io.Writer) error {
	p := &plainRunner{engine: engine, out: out}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	fmt.Fprintln(out, plainHelp)
	p.printQuestion()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		submitted, quit := p.handle(ctx, scanner.Text())
		if submitted {
			fmt.Fprintln(out, "✓ Answers submitted.")
			return nil
		}
		if quit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	fmt.Fprintln(out, "Questionnaire cancelled. Nothing was submitted.")
	return ErrAborted
}

type plainRunner struct {
	engine *flow.Engine
	out    io.Writer
}

// handle applies one input line. It reports whether the session is now
// submitted and whether the user asked to quit.
func (p *plainRunner) handle(ctx context.Context, line string) (submitted, quit bool) {
	q := p.engine.Current()
	trimmed := strings.TrimSpace(line)

	switch trimmed {
	case ":quit", ":q":
		return false, true
	case ":back", ":b":
		if err := p.engine.Previous(); err != nil {
			p.printErr(err)
		}
		p.printQuestion()
		return false, false
	case ":next", ":n":
		return p.next(ctx), false
	case ":help", "?":
		fmt.Fprintln(p.out, plainHelp)
		return false, false
	}

	switch q.Category {
	case questionnaire.CategoryFreeText:
		if trimmed == "" {
			return p.next(ctx), false
		}
		if err := p.engine.RecordAnswer(q.ID, flow.Text{Value: line}); err != nil {
			p.printErr(err)
			return false, false
		}
		return p.next(ctx), false

	case questionnaire.CategorySingleChoice:
		if trimmed == "" {
			return p.next(ctx), false
		}
		id, ok := p.optionAt(q, trimmed)
		if !ok {
			return false, false
		}
		if err := p.engine.RecordAnswer(q.ID, flow.Select{OptionID: id}); err != nil {
			p.printErr(err)
			return false, false
		}
		return p.next(ctx), false

	case questionnaire.CategoryMultiChoice:
		if trimmed == "" {
			return p.next(ctx), false
		}
		for _, field := range strings.Fields(trimmed) {
			id, ok := p.optionAt(q, field)
			if !ok {
				return false, false
			}
			if err := p.engine.RecordAnswer(q.ID, flow.Toggle{OptionID: id}); err != nil {
				p.printErr(err)
				return false, false
			}
		}
		p.printQuestion()
	}
	return false, false
}

// optionAt resolves a 1-based option number typed by the user.
func (p *plainRunner) optionAt(q questionnaire.Question, s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > len(q.Options) {
		fmt.Fprintf(p.out, "Enter a number between 1 and %d.\n", len(q.Options))
		return 0, false
	}
	return q.Options[n-1].ID, true
}

func (p *plainRunner) next(ctx context.Context) bool {
	last := p.engine.IsLast()
	if last {
		fmt.Fprintln(p.out, "Submitting answers...")
	}

	err := p.engine.Next(ctx)
	var (
		verr *flow.ValidationError
		serr *flow.SubmissionError
	)
	switch {
	case err == nil && last:
		return true
	case err == nil:
		p.printQuestion()
	case stderrors.As(err, &verr):
		fmt.Fprintln(p.out, verr.Message)
	case stderrors.As(err, &serr):
		fmt.Fprintf(p.out, "Submission failed: %v\nYour answers are kept. Type :next to retry.\n", serr.Err)
	default:
		p.printErr(err)
	}
	return false
}

func (p *plainRunner) printErr(err error) {
	fmt.Fprintf(p.out, "error: %v\n", err)
}

func (p *plainRunner) printQuestion() {
	q := p.engine.Current()
	value, _ := p.engine.CurrentValue(q.ID)

	fmt.Fprintf(p.out, "\nProgress: %d/%d\n", p.engine.Cursor()+1, p.engine.Len())
	fmt.Fprintln(p.out, q.Text)

	switch q.Category {
	case questionnaire.CategoryFreeText:
		if v, ok := value.(questionnaire.FreeText); ok && v.Text != "" {
			fmt.Fprintf(p.out, "  current: %s\n", v.Text)
		}
	default:
		for i, o := range q.Options {
			mark := " "
			switch v := value.(type) {
			case questionnaire.SingleChoice:
				if v.Option == o.ID {
					mark = "*"
				}
			case questionnaire.MultiChoice:
				if v.Contains(o.ID) {
					mark = "x"
				}
			}
			fmt.Fprintf(p.out, "  [%s] %d) %s\n", mark, i+1, o.Text)
		}
	}
	fmt.Fprint(p.out, "> ")
}
