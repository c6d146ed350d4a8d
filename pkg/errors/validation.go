package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidateURL validates a source URL string for safety.
// It accepts http(s) URLs plus the pseudo-schemes used for local and
// apkeep sources.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	switch {
	case strings.HasPrefix(rawURL, "local://"), strings.HasPrefix(rawURL, "apkeep://"):
		return nil
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
	default:
		return New(ErrCodeInvalidInput, "URL must use http or https scheme: %q", rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL has no host: %q", rawURL)
	}
	return nil
}

// ValidateFileName validates a downloaded file name for safety.
// It ensures the name is a simple basename that cannot escape the
// working directory.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 255 characters
//   - No control characters
//   - No path separators or traversal sequences
func ValidateFileName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}

	if len(name) > 255 {
		return New(ErrCodeInvalidPath, "file name too long (max 255 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators: %q", name)
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidPath, "file name cannot be a directory reference")
	}

	return nil
}

// appNameRegex matches configured application identifiers.
var appNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateAppName validates an application identifier as used in
// configuration sections and environment variable prefixes.
func ValidateAppName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "app name cannot be empty")
	}
	if !appNameRegex.MatchString(name) {
		return New(ErrCodeInvalidConfig, "invalid app name: %q", name)
	}
	return nil
}
