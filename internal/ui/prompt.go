package ui

import (
	"github.com/AlecAivazis/survey/v2"
)

// Confirm asks a yes/no question, defaulting to no
func Confirm(message string) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// SelectOption asks the user to pick one of the options
func SelectOption(message string, options []string) (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	err := survey.AskOne(prompt, &selected)
	return selected, err
}

// AskString prompts for a line of input with an optional default
func AskString(message, defaultValue string) (string, error) {
	var result string
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	err := survey.AskOne(prompt, &result)
	return result, err
}

// AskPassword prompts for a secret without echoing it
func AskPassword(message string) (string, error) {
	var result string
	prompt := &survey.Password{
		Message: message,
	}
	err := survey.AskOne(prompt, &result)
	return result, err
}
