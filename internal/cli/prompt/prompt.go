// Package prompt wraps promptui with the interactive questions the CLIs
// ask: free text, passwords, ports and confirmations.
package prompt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch is returned when a confirmation entry differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted reports whether err means the user backed out.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input asks for free text, offering defaultValue when the user just
// presses Enter.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{Label: label, Default: defaultValue}
	result, err := p.Run()
	return result, wrapErr(err)
}

// InputRequired asks for free text and refuses an empty answer.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return promptui.ErrAbort
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapErr(err)
}

// InputOptional asks for free text; Enter skips the question.
func InputOptional(label string) (string, error) {
	p := promptui.Prompt{Label: label + " (optional)"}
	result, err := p.Run()
	return result, wrapErr(err)
}

// InputPort asks for a TCP port.
func InputPort(label string, defaultValue int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil || port < 1 || port > 65535 {
				return fmt.Errorf("must be a port between 1 and 65535")
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapErr(err)
	}
	port, _ := strconv.Atoi(result)
	return port, nil
}

// Password asks for a masked secret.
func Password(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	result, err := p.Run()
	return result, wrapErr(err)
}

// PasswordWithValidation asks for a masked secret of at least minLength
// characters.
func PasswordWithValidation(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("must be at least %d characters", minLength)
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapErr(err)
}

// PasswordWithConfirmation asks for a secret twice and requires both
// entries to match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	secret, err := PasswordWithValidation(label, minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if secret != confirm {
		return "", ErrPasswordMismatch
	}
	return secret, nil
}

// ConfirmWithForce asks a y/N question unless force already answered it.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	p := promptui.Prompt{
		Label:     label + " [y/N]",
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui answers "n" with ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return result == "y" || result == "Y", nil
}
