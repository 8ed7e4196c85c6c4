package internal

// Snapshot is an opaque full-canvas capture. The broker never sees one; the
// stacks live entirely on the client that recorded them.
type Snapshot []byte

// UndoResult says what an Undo call produced.
type UndoResult int

const (
	// UndoEmpty means there was nothing to undo; the call was a no-op.
	UndoEmpty UndoResult = iota
	// UndoBlank means the last recorded state was undone and the canvas
	// should be rendered blank.
	UndoBlank
	// UndoSnapshot means the returned snapshot is the state to render.
	UndoSnapshot
)

// History holds one participant's undo/redo stacks. Undo and redo only step
// these local stacks; peers are told that an undo or redo happened, not what
// the canvas now looks like, so lockstep holds only while every participant
// recorded the identical sequence of states.
type History struct {
	past   []Snapshot
	future []Snapshot
}

func NewHistory() *History {
	return &History{}
}

// RecordState pushes a new snapshot. Any previously available redos are
// invalidated: a new action always clears the future stack.
func (h *History) RecordState(s Snapshot) {
	h.past = append(h.past, s)
	h.future = nil
}

// Undo steps back once. With more than one entry it returns the state that
// preceded the top; with exactly one entry the canvas goes blank; with none
// it reports UndoEmpty and changes nothing.
func (h *History) Undo() (Snapshot, UndoResult) {
	switch len(h.past) {
	case 0:
		return nil, UndoEmpty
	case 1:
		top := h.past[len(h.past)-1]
		h.past = h.past[:len(h.past)-1]
		h.future = append([]Snapshot{top}, h.future...)
		return nil, UndoBlank
	default:
		top := h.past[len(h.past)-1]
		h.past = h.past[:len(h.past)-1]
		h.future = append([]Snapshot{top}, h.future...)
		return h.past[len(h.past)-1], UndoSnapshot
	}
}

// Redo re-applies the most recently undone state, or reports false when no
// redo is available.
func (h *History) Redo() (Snapshot, bool) {
	if len(h.future) == 0 {
		return nil, false
	}
	next := h.future[0]
	h.future = h.future[1:]
	h.past = append(h.past, next)
	return next, true
}

// CanUndo reports whether an undo would change the canvas.
func (h *History) CanUndo() bool {
	return len(h.past) > 0
}

// CanRedo reports whether a redo is available.
func (h *History) CanRedo() bool {
	return len(h.future) > 0
}

// Depth returns the sizes of the past and future stacks.
func (h *History) Depth() (past, future int) {
	return len(h.past), len(h.future)
}
