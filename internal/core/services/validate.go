package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// DefaultMaxQueryLength is the longest accepted query, in runes
const DefaultMaxQueryLength = 300

// deniedPatterns reject obvious markup injection in query text.
// Matching is case-insensitive. This is input hygiene, not a security boundary.
var deniedPatterns = []string{
	"<script",
	"javascript:",
	"vbscript:",
	"data:text/html",
	"onerror=",
	"onload=",
	"<iframe",
}

// ValidateQuery trims query and checks it against length and content rules.
// It returns the trimmed query or a *domain.ValidationError.
func ValidateQuery(query string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}

	q := strings.TrimSpace(query)
	if q == "" {
		return "", &domain.ValidationError{Field: "query", Message: "query is required"}
	}
	if n := utf8.RuneCountInString(q); n > maxLength {
		return "", &domain.ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("query must be at most %d characters (got %d)", maxLength, n),
		}
	}

	lower := strings.ToLower(q)
	for _, p := range deniedPatterns {
		if strings.Contains(lower, p) {
			return "", &domain.ValidationError{Field: "query", Message: "query contains disallowed content"}
		}
	}
	return q, nil
}
