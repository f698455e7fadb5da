package prompt

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// Confirm asks a yes/no question, defaulting to no
func Confirm(question string) (bool, error) {
	var yes bool
	q := &survey.Confirm{Message: question, Default: false}
	if err := survey.AskOne(q, &yes); err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return yes, nil
}

// ConfirmPhrase guards destructive operations: the operator must type
// phrase exactly. Any other input declines.
func ConfirmPhrase(question, phrase string) error {
	var input string
	q := &survey.Input{Message: fmt.Sprintf("%s Type %q to continue:", question, phrase)}
	if err := survey.AskOne(q, &input); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if input != phrase {
		return types.NewConfirmationDeclined(question)
	}
	return nil
}
