// Package cliprompt wraps promptui for the handful of interactive prompts
// rtftpd's init command needs: confirmations and validated text input.
package cliprompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

// Confirm asks a yes/no question, defaulting to defaultYes on empty input.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	result, err := (&promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}).Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			if result == "" {
				return defaultYes, nil
			}
			return strings.EqualFold(result, "yes"), nil
		}
		return false, wrap(err)
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}

// Text prompts for a line of text, pre-filled with defaultValue.
func Text(label, defaultValue string) (string, error) {
	result, err := (&promptui.Prompt{Label: label, Default: defaultValue}).Run()
	return result, wrap(err)
}

// TextRequired prompts for a non-empty line of text.
func TextRequired(label string) (string, error) {
	result, err := (&promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		},
	}).Run()
	return result, wrap(err)
}

// Port prompts for a TCP/UDP port number in [1, 65535].
func Port(label string, defaultValue int) (int, error) {
	result, err := (&promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil {
				return fmt.Errorf("must be an integer")
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("must be between 1 and 65535")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return 0, wrap(err)
	}
	port, _ := strconv.Atoi(result)
	return port, nil
}
