package helpers

import (
	"errors"
	"strings"
)

// GetSplitPart returns the index-th part of target split on separate
func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index < 0 || index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// CollapseSpaces trims s and folds runs of whitespace, including
// non-breaking spaces, into a single ASCII space
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
