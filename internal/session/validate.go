package session

import (
	"errors"
	"regexp"
	"strings"
)

var (
	identityPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	pinPattern      = regexp.MustCompile(`^\d{4}$`)
	balancePattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Validation errors shown to the operator.
var (
	ErrIdentityRequired = errors.New("Please enter a username first.")
	ErrIdentityInvalid  = errors.New("Username can only contain letters, numbers, and underscores.")
	ErrFieldsRequired   = errors.New("All fields are required.")
	ErrPINFormat        = errors.New("PIN must be exactly 4 digits.")
	ErrBalanceFormat    = errors.New("Balance must be a non-negative number.")
)

// ValidateIdentity trims and checks an enrollment username.
func ValidateIdentity(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrIdentityRequired
	}
	if !identityPattern.MatchString(id) {
		return "", ErrIdentityInvalid
	}
	return id, nil
}

// ValidateSubmission checks the fields of an add-user request.
func ValidateSubmission(identity, pin, balance string) error {
	if identity == "" || pin == "" || strings.TrimSpace(balance) == "" {
		return ErrFieldsRequired
	}
	if !pinPattern.MatchString(pin) {
		return ErrPINFormat
	}
	if !balancePattern.MatchString(strings.TrimSpace(balance)) {
		return ErrBalanceFormat
	}
	return nil
}
