package errors

import (
	"slices"
	"strings"
	"unicode"
)

// ValidateOneOf checks that value is one of allowed. The error carries code,
// names the field and lists the accepted values.
func ValidateOneOf[T ~string](code Code, field string, value T, allowed ...T) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return New(code, "invalid %s: %q (must be one of: %s)", field, value, strings.Join(names, ", "))
}

// ValidateLimit rejects counts above max with TOO_LARGE. A max of zero or
// less disables the check.
func ValidateLimit(field string, n, max int) error {
	if max > 0 && n > max {
		return New(ErrCodeTooLarge, "too many %s: %d (max %d)", field, n, max)
	}
	return nil
}

// ValidatePath validates an output file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "path must name a file, not a directory")
	}

	return nil
}
