package models

import (
	"strings"

	"github.com/google/uuid"
)

// CanonicalID returns the lowercase hyphenated form of a UUID identifier.
// Non-UUID input is returned trimmed with ok set to false.
func CanonicalID(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return raw, false
	}
	return parsed.String(), true
}
