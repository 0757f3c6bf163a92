package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// containerNamePattern is the grammar Docker accepts for container names.
var containerNamePattern = regexp.MustCompile(`^/?[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateInstanceName rejects names that could not belong to a container.
// Validated names are safe to embed in helper session and artifact names.
func ValidateInstanceName(name string) error {
	if !containerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidInstanceName, name)
	}
	return nil
}

// NormalizeInstanceName strips the leading slash Docker reports on names.
func NormalizeInstanceName(name string) string {
	return strings.TrimPrefix(name, "/")
}
