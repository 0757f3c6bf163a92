package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"

	"github.com/bnema/dbsnap/internal/domain"
)

// Prompter asks the operator to confirm destructive actions.
type Prompter interface {
	// Interactive reports whether a human can answer prompts.
	Interactive() bool
	Confirm(message string) (bool, error)
}

// surveyPrompter prompts on the process's terminal.
type surveyPrompter struct {
	in  *os.File
	out *os.File
	err *os.File
}

func newSurveyPrompter() *surveyPrompter {
	return &surveyPrompter{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

func (p *surveyPrompter) Interactive() bool {
	return term.IsTerminal(int(p.in.Fd()))
}

func (p *surveyPrompter) Confirm(message string) (bool, error) {
	var proceed bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}

	if err := survey.AskOne(prompt, &proceed, survey.WithStdio(p.in, p.out, p.err)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, nil
		}
		return false, fmt.Errorf("survey failed: %w", err)
	}
	return proceed, nil
}

// confirm turns a prompt answer into a precondition for the workflows.
// Without a terminal nothing is confirmed implicitly.
func confirm(p Prompter, message string) error {
	if !p.Interactive() {
		return fmt.Errorf("%w: stdin is not a terminal, pass -f to proceed", domain.ErrConfirmationRequired)
	}

	ok, err := p.Confirm(message)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: operation cancelled by user", domain.ErrConfirmationRequired)
	}
	return nil
}
