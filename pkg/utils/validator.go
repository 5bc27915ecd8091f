package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{2,63}$`)
	roleRegex     = regexp.MustCompile(`^[a-z][a-z_]{1,31}$`)
	controlRegex  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateUsername checks a login name: lowercase, 3-64 characters
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username: %q", username)
	}
	return nil
}

// ValidateRoleCode checks a role code such as "officer"
func ValidateRoleCode(role string) error {
	if !roleRegex.MatchString(role) {
		return fmt.Errorf("invalid role code: %q", role)
	}
	return nil
}

// SanitizeString removes control characters except tab and newlines, and trims space
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}
