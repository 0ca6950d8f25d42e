package chat

import (
	"errors"
	"testing"
	"time"
)

func TestCanonicalPair_IsOrderIndependent(t *testing.T) {
	ab, err := CanonicalPair("t1", "s1")
	if err != nil {
		t.Fatalf("CanonicalPair error: %v", err)
	}
	ba, err := CanonicalPair("s1", "t1")
	if err != nil {
		t.Fatalf("CanonicalPair error: %v", err)
	}

	if ab != ba {
		t.Fatalf("pairs differ: %+v vs %+v", ab, ba)
	}
	if ab.IDs() != [2]string{"s1", "t1"} {
		t.Fatalf("pair not sorted: %v", ab.IDs())
	}

	if _, err := CanonicalPair("s1", "s1"); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}

func TestSortByActivity(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)

	cs := []Conversation{
		{ID: "old", CreatedAt: base.Add(-time.Hour)},
		{ID: "active", CreatedAt: base.Add(-2 * time.Hour), LastMessageAt: &later},
		{ID: "fresh", CreatedAt: base},
	}

	SortByActivity(cs)

	want := []string{"active", "fresh", "old"}
	for i, id := range want {
		if cs[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, cs[i].ID, id)
		}
	}
}

func TestSortMessages_TiesBrokenBySeq(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ms := []Message{
		{ID: "c", Timestamp: ts.Add(time.Second), Seq: 1},
		{ID: "b", Timestamp: ts, Seq: 3},
		{ID: "a", Timestamp: ts, Seq: 2},
	}

	SortMessages(ms)

	if ms[0].ID != "a" || ms[1].ID != "b" || ms[2].ID != "c" {
		t.Fatalf("unexpected order: %s %s %s", ms[0].ID, ms[1].ID, ms[2].ID)
	}
}

func TestCounterpart(t *testing.T) {
	c := Conversation{ParticipantIDs: [2]string{"s1", "t1"}}

	if id, ok := c.Counterpart("s1"); !ok || id != "t1" {
		t.Fatalf("got %q %v", id, ok)
	}
	if _, ok := c.Counterpart("x"); ok {
		t.Fatalf("stranger should have no counterpart")
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText(" \n\t"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := ValidateText("Hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
