package prompt

import (
	"github.com/manifoldco/promptui"
)

// Choice is one entry in a selection list.
type Choice struct {
	Label string
	Value string
}

// Select asks the user to pick one choice and returns its value.
func Select(label string, choices []Choice) (string, error) {
	p := promptui.Select{
		Label: label,
		Items: choices,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Label | cyan }}",
			Inactive: "  {{ .Label }}",
			Selected: "* {{ .Label | green }}",
		},
	}
	i, _, err := p.Run()
	if err != nil {
		return "", wrapErr(err)
	}
	return choices[i].Value, nil
}

// SelectString asks the user to pick one string from items.
func SelectString(label string, items []string) (string, error) {
	p := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	_, result, err := p.Run()
	return result, wrapErr(err)
}
