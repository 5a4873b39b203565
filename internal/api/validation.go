package api

import (
	"fmt"
	"regexp"
)

const maxCommandBytes = 64 * 1024

var (
	// labIDPattern matches catalog ids: letters, digits, dot, dash, underscore
	labIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9@.+_-]{0,127}$`)
)

func validateLabID(id string) error {
	if id == "" {
		return fmt.Errorf("lab id is required")
	}
	if !labIDPattern.MatchString(id) {
		return fmt.Errorf("lab id must be 1-64 letters, digits, '.', '_' or '-'")
	}
	return nil
}

func validateOwner(owner string) error {
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("owner id must be 1-128 letters, digits, '@', '.', '+', '_' or '-'")
	}
	return nil
}

func validateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("command is required")
	}
	if len(command) > maxCommandBytes {
		return fmt.Errorf("command must not exceed %d bytes", maxCommandBytes)
	}
	return nil
}
