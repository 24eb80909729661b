package files

import (
	"fmt"
	"path"
	"strings"
)

// Sanitize reduces a client-supplied name to its final path segment and
// rejects anything that could escape the shared directory.
func Sanitize(raw string) (string, error) {
	if raw == "" || strings.Contains(raw, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	}

	name := path.Base(raw)
	switch {
	case name == "." || name == "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	case strings.ContainsAny(name, "/\\\x00"):
		// backslashes survive path.Base
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	}
	return name, nil
}
