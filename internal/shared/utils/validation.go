package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits
const (
	MaxIDLength = 256
	// MaxDocumentDepth bounds nesting in stored documents; tree walks recurse
	// once per level.
	MaxDocumentDepth = 512
)

// ValidateID checks a snapshot or panel id taken from a URL or document.
// Ids are free-form but must be non-empty printable UTF-8 without slashes.
func ValidateID(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s must be at most %d bytes", fieldName, MaxIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", fieldName)
	}
	if strings.ContainsRune(id, '/') {
		return fmt.Errorf("%s must not contain '/'", fieldName)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s contains control characters", fieldName)
		}
	}
	return nil
}

// ValidateJSONDepth reports an error when decoded JSON nests objects or
// arrays more than maxDepth levels below the root.
func ValidateJSONDepth(data any, maxDepth int) error {
	if depth := nesting(data, 0, maxDepth); depth > maxDepth {
		return fmt.Errorf("JSON nesting depth exceeds maximum %d", maxDepth)
	}
	return nil
}

// nesting returns the depth of v's deepest value, stopping early once it
// passes limit
func nesting(v any, depth, limit int) int {
	if depth > limit {
		return depth
	}
	deepest := depth
	visit := func(child any) bool {
		deepest = max(deepest, nesting(child, depth+1, limit))
		return deepest <= limit
	}
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if !visit(child) {
				break
			}
		}
	case []any:
		for _, child := range t {
			if !visit(child) {
				break
			}
		}
	}
	return deepest
}
