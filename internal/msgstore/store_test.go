package msgstore

import (
	"encoding/json"
	"testing"
)

func TestStoreDrainCursor(t *testing.T) {
	s := New()
	s.PushRawUpdate(json.RawMessage(`{"n":1}`))
	s.PushStderr("warning: something")

	first := s.DrainUnnormalized()
	if len(first) != 2 {
		t.Fatalf("first drain = %d entries, want 2", len(first))
	}
	if first[0].Kind != KindRawUpdate || first[1].Kind != KindStderr {
		t.Errorf("unexpected kinds: %v, %v", first[0].Kind, first[1].Kind)
	}

	// Nothing new: drain is empty, not a replay.
	if again := s.DrainUnnormalized(); len(again) != 0 {
		t.Fatalf("second drain replayed %d entries", len(again))
	}

	s.PushRawUpdate(json.RawMessage(`{"n":2}`))
	third := s.DrainUnnormalized()
	if len(third) != 1 {
		t.Fatalf("third drain = %d entries, want 1", len(third))
	}
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := New()
	s.PushStderr("a")
	snap := s.Snapshot()
	s.PushStderr("b")
	if len(snap) != 1 {
		t.Errorf("snapshot grew after later push: %d", len(snap))
	}
	if len(s.Snapshot()) != 2 {
		t.Errorf("store lost entries")
	}
}

func TestStoreNormalized(t *testing.T) {
	s := New()
	s.PushNormalized(NormalizedEntry{Kind: NormalizedMessage, Text: "hi"})
	s.PushNormalized(NormalizedEntry{Kind: NormalizedToolCall, ToolName: "edit"})
	got := s.Normalized()
	if len(got) != 2 {
		t.Fatalf("normalized = %d entries, want 2", len(got))
	}
	if got[0].Text != "hi" || got[1].ToolName != "edit" {
		t.Errorf("unexpected normalized contents: %+v", got)
	}
}
