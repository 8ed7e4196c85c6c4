package internal

import (
	"bytes"
	"testing"
)

func TestUndoReturnsPreviousState(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("one"))
	h.RecordState(Snapshot("two"))

	snapshot, result := h.Undo()
	if result != UndoSnapshot {
		t.Fatalf("expected UndoSnapshot, got %v", result)
	}
	if !bytes.Equal(snapshot, []byte("one")) {
		t.Fatalf("expected snapshot %q, got %q", "one", snapshot)
	}
}

func TestUndoSingleEntryGoesBlank(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("only"))

	snapshot, result := h.Undo()
	if result != UndoBlank {
		t.Fatalf("expected UndoBlank, got %v", result)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot for blank canvas, got %q", snapshot)
	}
}

func TestUndoEmptyIsNoOp(t *testing.T) {
	h := NewHistory()
	if _, result := h.Undo(); result != UndoEmpty {
		t.Fatalf("expected UndoEmpty, got %v", result)
	}
	if h.CanUndo() || h.CanRedo() {
		t.Fatalf("empty history should have no undo or redo available")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("one"))
	h.RecordState(Snapshot("two"))

	if _, result := h.Undo(); result != UndoSnapshot {
		t.Fatalf("undo failed")
	}
	snapshot, ok := h.Redo()
	if !ok {
		t.Fatalf("expected redo to be available")
	}
	if !bytes.Equal(snapshot, []byte("two")) {
		t.Fatalf("redo should restore the state undone, got %q", snapshot)
	}
}

func TestRedoAfterBlankUndo(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("only"))
	if _, result := h.Undo(); result != UndoBlank {
		t.Fatalf("expected blank undo")
	}
	snapshot, ok := h.Redo()
	if !ok || !bytes.Equal(snapshot, []byte("only")) {
		t.Fatalf("redo after blank undo should restore %q, got %q (ok=%v)", "only", snapshot, ok)
	}
}

func TestRecordStateClearsRedo(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("one"))
	h.RecordState(Snapshot("two"))
	if _, result := h.Undo(); result != UndoSnapshot {
		t.Fatalf("undo failed")
	}
	h.RecordState(Snapshot("three"))
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo should be unavailable after a new recorded state")
	}
}

func TestRedoOrderIsFIFO(t *testing.T) {
	h := NewHistory()
	h.RecordState(Snapshot("one"))
	h.RecordState(Snapshot("two"))
	h.RecordState(Snapshot("three"))
	h.Undo()
	h.Undo()

	first, ok := h.Redo()
	if !ok || !bytes.Equal(first, []byte("two")) {
		t.Fatalf("first redo should restore %q, got %q", "two", first)
	}
	second, ok := h.Redo()
	if !ok || !bytes.Equal(second, []byte("three")) {
		t.Fatalf("second redo should restore %q, got %q", "three", second)
	}
}
