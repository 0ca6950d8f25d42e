package utils

import (
	"strings"
)

const DirectoryCacheKey = "directory:v1"

// BuildTeacherSearchCacheKey normalises the search inputs the same way the
// matcher does, so "Math" and " math " share one entry. The subject filter
// is an exact match and is kept as given.
func BuildTeacherSearchCacheKey(term, subject string) string {
	t := strings.ToLower(strings.TrimSpace(term))

	return "teachers:search:v1:q=" + t +
		":subject=" + subject
}
