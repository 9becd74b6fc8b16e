package api

import (
	"strings"

	"golang.org/x/text/cases"
)

var topicFolder = cases.Fold()

// NormalizeTopic returns the case- and whitespace-insensitive key used to match
// boards that describe the same topic.
func NormalizeTopic(topic string) string {
	return topicFolder.String(strings.Join(strings.Fields(topic), " "))
}

// SameTopic reports whether two topics normalize to the same key.
func SameTopic(a, b string) bool {
	return NormalizeTopic(a) == NormalizeTopic(b)
}
