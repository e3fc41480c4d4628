package presence

import (
	"testing"

	"github.com/partyline/partyline-server/internal/proto"
)

func ctx(clientID, name string) *proto.ClientContext {
	return &proto.ClientContext{ClientID: clientID, DisplayName: name, Role: proto.RolePlayer}
}

func TestOnJoinTracksAndReturnsEvent(t *testing.T) {
	tr := NewTracker()

	ev := tr.OnJoin("conn-1", ctx("c1", "alice"))
	if ev.Kind != proto.PresenceJoin {
		t.Fatalf("unexpected kind: %v", ev.Kind)
	}
	if ev.Client.ClientID != "c1" || ev.Client.DisplayName != "alice" {
		t.Fatalf("unexpected client: %+v", ev.Client)
	}

	got, ok := tr.Get("conn-1")
	if !ok || got.ClientID != "c1" {
		t.Fatalf("context not tracked: %v %v", got, ok)
	}
}

func TestOnJoinOverwritesExistingEntry(t *testing.T) {
	tr := NewTracker()

	tr.OnJoin("conn-1", ctx("c1", "alice"))
	tr.OnJoin("conn-1", ctx("c1", "alice2"))

	got, _ := tr.Get("conn-1")
	if got.DisplayName != "alice2" {
		t.Fatalf("expected overwrite, got %+v", got)
	}
	if tr.Count() != 1 {
		t.Fatalf("expected a single entry, got %d", tr.Count())
	}
}

func TestOnLeaveUntrackedReturnsNil(t *testing.T) {
	tr := NewTracker()

	if ev := tr.OnLeave("ghost"); ev != nil {
		t.Fatalf("expected nil event, got %+v", ev)
	}
}

func TestOnLeaveReturnsEventAndForgets(t *testing.T) {
	tr := NewTracker()
	tr.OnJoin("conn-1", ctx("c1", "alice"))

	ev := tr.OnLeave("conn-1")
	if ev == nil || ev.Kind != proto.PresenceLeave || ev.Client.ClientID != "c1" {
		t.Fatalf("unexpected leave event: %+v", ev)
	}
	if _, ok := tr.Get("conn-1"); ok {
		t.Fatal("entry should be gone after leave")
	}
	// Second leave for the same session stays silent.
	if ev := tr.OnLeave("conn-1"); ev != nil {
		t.Fatalf("expected nil on repeated leave, got %+v", ev)
	}
}

func TestEntriesKeyedBySessionID(t *testing.T) {
	tr := NewTracker()
	tr.Set("conn-1", ctx("c1", "alice"))
	tr.Set("conn-2", ctx("c2", "bob"))

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries["conn-1"].ClientID != "c1" || entries["conn-2"].ClientID != "c2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// The returned map is a copy; mutating it does not touch the tracker.
	delete(entries, "conn-1")
	if tr.Count() != 2 {
		t.Fatalf("tracker mutated through Entries copy: %d", tr.Count())
	}
}

func TestListReturnsAllTracked(t *testing.T) {
	tr := NewTracker()
	tr.Set("conn-1", ctx("c1", "alice"))
	tr.Set("conn-2", ctx("c2", "bob"))

	list := tr.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(list))
	}

	tr.Delete("conn-1")
	if tr.Count() != 1 {
		t.Fatalf("expected 1 after delete, got %d", tr.Count())
	}
}
