package internal

import (
	"reflect"
	"testing"
	"time"
)

type nullOutbox struct{}

func (nullOutbox) deliver([]byte) bool { return true }

func newTestMember(handle, name string) *member {
	return &member{handle: handle, name: name, joinedAt: time.Now(), out: nullOutbox{}}
}

func TestRosterTracksJoinsAndLeaves(t *testing.T) {
	set := newParticipantSet()
	set.add(newTestMember("h1", "alice"))
	set.add(newTestMember("h2", "bob"))
	set.add(newTestMember("h3", "carol"))

	if got := set.roster(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("unexpected roster: %v", got)
	}

	set.remove("h2")
	if got := set.roster(); !reflect.DeepEqual(got, []string{"alice", "carol"}) {
		t.Fatalf("roster after leave: %v", got)
	}
	if set.size() != 2 {
		t.Fatalf("expected 2 members, got %d", set.size())
	}
}

func TestDuplicateDisplayNameKeepsDistinctHandles(t *testing.T) {
	set := newParticipantSet()
	if nameIsNew := set.add(newTestMember("h1", "alice")); !nameIsNew {
		t.Fatalf("first alice should be a new name")
	}
	if nameIsNew := set.add(newTestMember("h2", "alice")); nameIsNew {
		t.Fatalf("second alice should not announce a new name")
	}
	if got := set.roster(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("roster should dedupe by name: %v", got)
	}
	if set.size() != 2 {
		t.Fatalf("both connections must be tracked, got %d", set.size())
	}

	// Dropping one of the two connections must not announce a departure and
	// must not disturb the other handle.
	m, nameGone := set.remove("h1")
	if m == nil || nameGone {
		t.Fatalf("removing one of two same-named handles should keep the name alive")
	}
	m, nameGone = set.remove("h2")
	if m == nil || !nameGone {
		t.Fatalf("removing the last handle should retire the name")
	}
}

func TestRemoveUnknownHandle(t *testing.T) {
	set := newParticipantSet()
	if m, _ := set.remove("nope"); m != nil {
		t.Fatalf("expected nil member for unknown handle")
	}
}
