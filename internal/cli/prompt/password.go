package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch is returned when a confirmation entry differs
// from the first entry.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password asks for a masked secret.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := p.Run()
	return result, wrapErr(err)
}

// PasswordMinLength asks for a masked secret of at least minLen characters.
func PasswordMinLength(label string, minLen int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < minLen {
				return fmt.Errorf("must be at least %d characters", minLen)
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapErr(err)
}

// NewPassword asks for a new secret twice and verifies both entries
// match. The minimum length is 8 characters.
func NewPassword(label string) (string, error) {
	first, err := PasswordMinLength(label, 8)
	if err != nil {
		return "", err
	}
	second, err := Password("Confirm " + label)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrPasswordMismatch
	}
	return first, nil
}
