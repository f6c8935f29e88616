package bridge

import "testing"

func TestRegistryInsertEnforcesUniqueness(t *testing.T) {
	reg := NewRegistry()

	first := &Record{Identifier: "02:69:32:f0:c5:1d", State: StateDiscovered}
	if !reg.Insert(first) {
		t.Fatal("first insert should succeed")
	}

	// Duplicate discovery is a no-op and must not reset the record.
	reg.WithRecord("02:69:32:f0:c5:1d", func(rec *Record) {
		rec.State = StateConnected
	})
	dup := &Record{Identifier: "02:69:32:f0:c5:1d", State: StateDiscovered}
	if reg.Insert(dup) {
		t.Fatal("duplicate insert should return false")
	}

	if reg.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", reg.Len())
	}
	reg.WithRecord("02:69:32:f0:c5:1d", func(rec *Record) {
		if rec.State != StateConnected {
			t.Errorf("duplicate insert reset state to %v", rec.State)
		}
	})
}

func TestRegistrySnapshotPreservesInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	ids := []string{"aa:aa", "bb:bb", "cc:cc"}
	for _, id := range ids {
		reg.Insert(&Record{Identifier: id})
	}

	snap := reg.Snapshot()
	if len(snap) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(snap))
	}
	for i, id := range ids {
		if snap[i] != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i], id)
		}
	}

	reg.Remove("bb:bb")
	snap = reg.Snapshot()
	if len(snap) != 2 || snap[0] != "aa:aa" || snap[1] != "cc:cc" {
		t.Errorf("snapshot after remove = %v, want [aa:aa cc:cc]", snap)
	}
}

func TestRegistryWithRecordAfterRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Insert(&Record{Identifier: "aa:aa"})

	removed := reg.Remove("aa:aa")
	if removed == nil {
		t.Fatal("remove should return the record")
	}
	if removed.Identifier != "aa:aa" {
		t.Errorf("removed identifier = %s", removed.Identifier)
	}

	// A stale identifier from an earlier snapshot resolves to nothing.
	if reg.WithRecord("aa:aa", func(*Record) {}) {
		t.Error("WithRecord should return false for a removed device")
	}
	if reg.Remove("aa:aa") != nil {
		t.Error("second remove should return nil")
	}
}

func TestRegistrySnapshotIsDefensiveCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Insert(&Record{Identifier: "aa:aa"})
	reg.Insert(&Record{Identifier: "bb:bb"})

	snap := reg.Snapshot()
	snap[0] = "mutated"

	fresh := reg.Snapshot()
	if fresh[0] != "aa:aa" {
		t.Error("mutating a snapshot leaked into the registry")
	}
}
