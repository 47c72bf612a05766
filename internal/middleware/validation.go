package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/travel-concierge/internal/language"
)

// MaxMessageLength bounds a single user turn in bytes.
const MaxMessageLength = 8000

var sessionIDPattern = regexp.MustCompile(`^\d{8}_\d{6}(_\d+)?$`)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ParseLanguage resolves an optional language selection. Empty input means
// detect and returns an empty label.
func ParseLanguage(name string) (language.Label, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	l, ok := language.Parse(name)
	if !ok {
		return "", errors.New("unsupported language")
	}
	return l, nil
}
