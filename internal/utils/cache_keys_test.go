package utils

import "testing"

func TestBuildTeacherSearchCacheKey_NormalisesTerm(t *testing.T) {
	a := BuildTeacherSearchCacheKey("  Math ", "Physics")
	b := BuildTeacherSearchCacheKey("math", "Physics")

	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
	if a == BuildTeacherSearchCacheKey("math", "") {
		t.Fatalf("subject must be part of the key")
	}
}
