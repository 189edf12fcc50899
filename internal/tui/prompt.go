package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// PromptUserID asks for the user id to log in with. current pre-fills the
// field.
func PromptUserID(current string) (string, error) {
	value := current
	if err := userIDForm(&value).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func userIDForm(value *string) *huh.Form {
	input := huh.NewInput().
		Title("User id").
		Description("The id your answers are recorded under").
		Placeholder("jane.doe").
		Value(value).
		Validate(validateUserID)
	return huh.NewForm(huh.NewGroup(input))
}

func validateUserID(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("user id cannot be blank")
	}
	return nil
}

// PromptQuestionnaire lets the user pick one of summaries and returns its id.
func PromptQuestionnaire(summaries []questionnaire.Summary) (int, error) {
	if len(summaries) == 0 {
		return 0, fmt.Errorf("no questionnaires available")
	}

	var selected int
	if err := questionnaireForm(summaries, &selected).Run(); err != nil {
		return 0, fmt.Errorf("prompt failed: %w", err)
	}
	return selected, nil
}

func questionnaireForm(summaries []questionnaire.Summary, selected *int) *huh.Form {
	options := make([]huh.Option[int], len(summaries))
	for i, s := range summaries {
		label := fmt.Sprintf("%s (%d questions)", s.Name, s.Questions)
		if s.LastSubmittedAt != nil {
			label += " • answered before"
		}
		options[i] = huh.NewOption(label, s.ID)
	}

	sel := huh.NewSelect[int]().
		Title("Which questionnaire?").
		Options(options...).
		Value(selected)
	return huh.NewForm(huh.NewGroup(sel))
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	for _, envVar := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}
	return IsInteractive()
}
