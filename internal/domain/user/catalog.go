package user

import "strings"

var gradeLevels = []string{
	"Elementary School",
	"Middle School",
	"High School",
	"College",
	"Adult Learner",
}

var allSubjects = []string{
	"Mathematics",
	"Physics",
	"Chemistry",
	"Biology",
	"English",
	"History",
	"Computer Science",
	"Spanish",
	"French",
	"Art",
	"Music",
	"Economics",
}

func GradeLevels() []string { return append([]string(nil), gradeLevels...) }

func AllSubjects() []string { return append([]string(nil), allSubjects...) }

// DefaultGradeLevel is the mid-range level new students start with.
func DefaultGradeLevel() string { return gradeLevels[2] }

func IsGradeLevel(s string) bool {
	for _, g := range gradeLevels {
		if g == s {
			return true
		}
	}
	return false
}

// NormalizeSubjects trims entries, drops blanks and collapses duplicates while
// keeping the first occurrence's position.
func NormalizeSubjects(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// MatchesSearch reports whether a teacher should be listed for a search term
// and an optional exact subject filter.
func MatchesSearch(t *Teacher, term, subject string) bool {
	term = strings.ToLower(strings.TrimSpace(term))

	termMatch := term == "" ||
		strings.Contains(strings.ToLower(t.Name), term) ||
		strings.Contains(strings.ToLower(t.Headline), term)

	if !termMatch {
		for _, s := range t.Subjects {
			if strings.Contains(strings.ToLower(s), term) {
				termMatch = true
				break
			}
		}
	}

	if !termMatch {
		return false
	}

	if subject == "" {
		return true
	}

	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// SearchTeachers applies MatchesSearch over a snapshot.
func SearchTeachers(all []Profile, term, subject string) []*Teacher {
	teachers := Teachers(all)
	out := make([]*Teacher, 0, len(teachers))
	for _, t := range teachers {
		if MatchesSearch(t, term, subject) {
			out = append(out, t)
		}
	}
	return out
}
