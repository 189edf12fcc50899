package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/canvass/internal/api"
	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/flow"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
	"github.com/felixgeelhaar/canvass/internal/tui"
)

var takeCmd = &cobra.Command{
	Use:   "take [questionnaire-id]",
	Short: "Answer a questionnaire",
	Long: `Answer a questionnaire one question at a time. Your previous answers are
shown as defaults and kept unless you change them. Nothing is sent until you
move past the last question.

Without an id you can pick a questionnaire from the list.

With --file the questionnaire is read from a YAML or JSON file and the
answers are printed as a JSON submission body instead of being sent, which
is handy while writing a questionnaire.

Examples:
  canvass take 1
  canvass take 1 --plain
  canvass take --file survey.yaml > answers.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTake,
}

func init() {
	takeCmd.Flags().Bool("plain", false, "use line-oriented prompts instead of the full-screen UI")
	takeCmd.Flags().String("file", "", "read the questionnaire from a file and print the answers")

	rootCmd.AddCommand(takeCmd)
}

func runTake(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx := cmd.Context()
	plain, _ := cmd.Flags().GetBool("plain")
	plain = plain || !tui.IsInteractive()
	if !plain {
		path, err := DefaultLogPath()
		if err != nil {
			return err
		}
		if err := cc.LogToFile(path); err != nil {
			return err
		}
	}

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return takeFromFile(ctx, cmd, cc, file, plain)
	}

	session, err := cc.Session(ctx)
	if err != nil {
		return err
	}
	user, err := session.RequireUserID()
	if err != nil {
		return err
	}
	client := cc.Client(session)

	id, err := resolveQuestionnaireID(ctx, client, args)
	if err != nil {
		return err
	}
	qn, err := client.GetQuestionnaire(ctx, id)
	if err != nil {
		return err
	}

	prior, err := client.PriorResponses(ctx, id)
	if err != nil {
		return err
	}
	priors, skipped, err := flow.PriorsFromResponses(qn, prior)
	if err != nil {
		return err
	}
	if skipped > 0 {
		cc.Logger.Warn("ignored prior answers that no longer fit the questionnaire",
			"questionnaire_id", id, "skipped", skipped)
	}

	engine, err := flow.New(qn, user, priors, flow.SinkFunc(client.SinkFor(id)),
		flow.WithLogger(cc.Logger), flow.WithMetrics(metrics.Default()))
	if err != nil {
		return err
	}

	if err := runEngine(ctx, cmd, engine, plain); err != nil {
		return err
	}
	if receipt, ok := client.LastReceipt(); ok {
		printReceipt(cmd.OutOrStdout(), receipt)
	}
	return nil
}

// resolveQuestionnaireID parses the id argument or, in a terminal, lets the
// user pick from the list.
func resolveQuestionnaireID(ctx context.Context, client *api.Client, args []string) (int, error) {
	if len(args) == 1 {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return 0, errors.Newf(errors.ErrCodeQuestionnaireInvalid, "invalid questionnaire id %q", args[0]).
				WithSuggestion("Run 'canvass list' to see questionnaire ids")
		}
		return id, nil
	}

	if !tui.ShouldPrompt() {
		return 0, errors.New(errors.ErrCodeQuestionnaireInvalid, "no questionnaire id given").
			WithSuggestion("Run 'canvass take <id>'; 'canvass list' shows the ids")
	}
	summaries, err := client.ListQuestionnaires(ctx)
	if err != nil {
		return 0, err
	}
	if len(summaries) == 0 {
		return 0, errors.New(errors.ErrCodeQuestionnaireNotFound, "no questionnaires available")
	}
	return tui.PromptQuestionnaire(summaries)
}

// takeFromFile runs a questionnaire loaded from path and prints the answers
// as a submission body rather than sending them.
func takeFromFile(ctx context.Context, cmd *cobra.Command, cc *CommandContext, path string, plain bool) error {
	qn, err := questionnaire.LoadFile(path)
	if err != nil {
		return err
	}

	user := "local"
	if session, err := cc.Session(ctx); err == nil {
		if id, ok := session.UserID(); ok {
			user = id
		}
	}

	var submitted []questionnaire.Response
	sink := flow.SinkFunc(func(_ context.Context, rs []questionnaire.Response) error {
		submitted = rs
		return nil
	})
	engine, err := flow.New(qn, user, nil, sink, flow.WithLogger(cc.Logger))
	if err != nil {
		return err
	}

	if err := runEngine(ctx, cmd, engine, plain); err != nil {
		return err
	}
	if engine.State() != flow.StateSubmitted {
		return nil
	}
	if submitted == nil {
		submitted = []questionnaire.Response{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.SubmitRequest{QuestionnaireID: qn.ID, Responses: submitted})
}

// runEngine drives engine through the full-screen UI or the plain prompts.
// Leaving early is reported on stderr and is not an error.
func runEngine(ctx context.Context, cmd *cobra.Command, engine *flow.Engine, plain bool) error {
	var err error
	if plain {
		err = tui.RunPlain(ctx, engine, cmd.InOrStdin(), cmd.ErrOrStderr())
	} else {
		err = tui.RunTake(ctx, engine)
	}

	if stderrors.Is(err, tui.ErrAborted) {
		if !plain {
			fmt.Fprintln(cmd.ErrOrStderr(), "Questionnaire cancelled. Nothing was submitted.")
		}
		return nil
	}
	return err
}

func printReceipt(w io.Writer, r *api.Receipt) {
	digest := r.Digest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	fmt.Fprintf(w, "Submitted %d answers to questionnaire %d (receipt %s, digest %s)\n",
		r.Count, r.QuestionnaireID, r.ID, digest)
}
