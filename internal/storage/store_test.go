package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestBoardLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateBoard(ctx, "swift-star-0042", "Sprint Board"); err != nil {
		t.Fatalf("create board: %v", err)
	}
	if err := store.CreateBoard(ctx, "swift-star-0042", "Other Name"); !errors.Is(err, ErrBoardExists) {
		t.Fatalf("expected ErrBoardExists, got %v", err)
	}

	board, err := store.GetBoard(ctx, "swift-star-0042")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if board == nil || board.RoomName != "Sprint Board" {
		t.Fatalf("unexpected board: %+v", board)
	}

	missing, err := store.GetBoard(ctx, "no-such-room-0000")
	if err != nil {
		t.Fatalf("get missing board: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing boards must come back nil, got %+v", missing)
	}

	if err := store.DeleteBoard(ctx, "swift-star-0042"); err != nil {
		t.Fatalf("delete board: %v", err)
	}
	board, err = store.GetBoard(ctx, "swift-star-0042")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if board != nil {
		t.Fatalf("board should be gone after delete")
	}
}

func TestListBoardsReturnsAllRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"swift-star-0001", "bold-moon-0002"} {
		if err := store.CreateBoard(ctx, code, "Board "+code); err != nil {
			t.Fatalf("create %s: %v", code, err)
		}
	}
	boards, err := store.ListBoards(ctx)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(boards))
	}
}

func TestChatBacklogKeepsMostRecentOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := store.AppendChat(ctx, "swift-star-0042", "alice", "msg", i); err != nil {
			t.Fatalf("append chat: %v", err)
		}
	}
	records, err := store.ChatBacklog(ctx, "swift-star-0042", 3)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// newest three, in delivery order
	for i, rec := range records {
		if want := int64(i + 3); rec.Ts != want {
			t.Fatalf("record %d has ts %d, want %d", i, rec.Ts, want)
		}
	}

	empty, err := store.ChatBacklog(ctx, "bold-moon-0007", 10)
	if err != nil {
		t.Fatalf("backlog of empty room: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no records, got %d", len(empty))
	}
}

func TestDeleteBoardDropsItsChat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateBoard(ctx, "swift-star-0042", "Board"); err != nil {
		t.Fatalf("create board: %v", err)
	}
	if err := store.AppendChat(ctx, "swift-star-0042", "alice", "hello", 1); err != nil {
		t.Fatalf("append chat: %v", err)
	}
	if err := store.DeleteBoard(ctx, "swift-star-0042"); err != nil {
		t.Fatalf("delete board: %v", err)
	}
	records, err := store.ChatBacklog(ctx, "swift-star-0042", 10)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("chat must be removed with its board, got %d records", len(records))
	}
}

func TestHasHistoryObservesChatAndSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasHistory(ctx, "swift-star-0042")
	if err != nil {
		t.Fatalf("has history: %v", err)
	}
	if has {
		t.Fatalf("fresh room must have no history")
	}

	if err := store.AppendChat(ctx, "swift-star-0042", "alice", "hello", 1); err != nil {
		t.Fatalf("append chat: %v", err)
	}
	has, err = store.HasHistory(ctx, "swift-star-0042")
	if err != nil {
		t.Fatalf("has history: %v", err)
	}
	if !has {
		t.Fatalf("archived chat must count as history")
	}

	if _, err := store.SaveBoard(ctx, SavedBoard{
		Owner: "bob", RoomCode: "bold-moon-0007", Name: "sketch", ImageData: []byte{1},
	}); err != nil {
		t.Fatalf("save board: %v", err)
	}
	has, err = store.HasHistory(ctx, "bold-moon-0007")
	if err != nil {
		t.Fatalf("has history: %v", err)
	}
	if !has {
		t.Fatalf("a saved snapshot must count as history")
	}
}

func TestSavedBoardRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	image := []byte{0x89, 0x50, 0x4e, 0x47}
	id, err := store.SaveBoard(ctx, SavedBoard{
		Owner:     "alice",
		RoomCode:  "swift-star-0042",
		Name:      "final sketch",
		ImageData: image,
	})
	if err != nil {
		t.Fatalf("save board: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero id")
	}

	boards, err := store.ListSavedBoards(ctx, "alice")
	if err != nil {
		t.Fatalf("list saved boards: %v", err)
	}
	if len(boards) != 1 {
		t.Fatalf("expected 1 saved board, got %d", len(boards))
	}
	got := boards[0]
	if got.ID != id || got.Name != "final sketch" || string(got.ImageData) != string(image) {
		t.Fatalf("unexpected saved board: %+v", got)
	}

	other, err := store.ListSavedBoards(ctx, "bob")
	if err != nil {
		t.Fatalf("list for other owner: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("saved boards must be scoped to their owner")
	}

	if err := store.DeleteSavedBoard(ctx, id); err != nil {
		t.Fatalf("delete saved board: %v", err)
	}
	boards, err = store.ListSavedBoards(ctx, "alice")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("saved board should be gone after delete")
	}
}
