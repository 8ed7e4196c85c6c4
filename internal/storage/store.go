package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store is the external persistence collaborator: provisioned board records,
// the archived chat backlog, and named saved-board snapshots. The broker core
// never calls it synchronously; everything here is fed by the REST layer or
// the chat archiver.
type Store struct {
	db *sql.DB
}

// Board is a provisioned whiteboard row. Live session state is not persisted;
// the row only lets a board code survive a restart.
type Board struct {
	RoomCode  string
	RoomName  string
	CreatedAt time.Time
}

// ChatRecord is one archived chat message.
type ChatRecord struct {
	ID       int64
	RoomCode string
	Sender   string
	Body     string
	Ts       int64
}

// SavedBoard is a named snapshot a participant chose to keep.
type SavedBoard struct {
	ID        int64
	Owner     string
	RoomCode  string
	Name      string
	ImageData []byte
	CreatedAt time.Time
}

// ErrBoardExists is returned when provisioning a room code twice.
var ErrBoardExists = errors.New("board already exists")

// NewStore opens the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "collabboard.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			room_code TEXT PRIMARY KEY,
			room_name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_code TEXT NOT NULL,
			sender TEXT NOT NULL,
			body TEXT NOT NULL,
			ts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_room ON chat_messages(room_code, id);`,
		`CREATE TABLE IF NOT EXISTS saved_boards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			room_code TEXT NOT NULL,
			name TEXT NOT NULL,
			image_data BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saved_owner ON saved_boards(owner, created_at);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateBoard records a provisioned room code. ErrBoardExists on conflicts.
func (s *Store) CreateBoard(ctx context.Context, roomCode, roomName string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO boards(room_code, room_name) VALUES(?, ?)`, roomCode, roomName)
	if isConstraintError(err) {
		return ErrBoardExists
	}
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqliteConstraintCode
	}
	return false
}

// GetBoard fetches a provisioned board; nil when the code is unknown.
func (s *Store) GetBoard(ctx context.Context, roomCode string) (*Board, error) {
	row := s.db.QueryRowContext(ctx, `SELECT room_code, room_name, created_at FROM boards WHERE room_code = ?`, roomCode)
	var b Board
	if err := row.Scan(&b.RoomCode, &b.RoomName, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// ListBoards returns every provisioned board, oldest first. Used to rehydrate
// the registry after a restart.
func (s *Store) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room_code, room_name, created_at FROM boards ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.RoomCode, &b.RoomName, &b.CreatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// DeleteBoard removes a board row and its archived chat.
func (s *Store) DeleteBoard(ctx context.Context, roomCode string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM boards WHERE room_code = ?`, roomCode); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE room_code = ?`, roomCode); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendChat archives one delivered chat message.
func (s *Store) AppendChat(ctx context.Context, roomCode, sender, body string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO chat_messages(room_code, sender, body, ts) VALUES(?, ?, ?, ?)`, roomCode, sender, body, ts)
	return err
}

// ChatBacklog returns the most recent archived messages, oldest first.
func (s *Store) ChatBacklog(ctx context.Context, roomCode string, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_code, sender, body, ts FROM (
			SELECT id, room_code, sender, body, ts
			FROM chat_messages WHERE room_code = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ChatRecord
	for rows.Next() {
		var rec ChatRecord
		if err := rows.Scan(&rec.ID, &rec.RoomCode, &rec.Sender, &rec.Body, &rec.Ts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HasHistory reports whether the room has any durable trace: an archived chat
// line or a saved snapshot. The eviction janitor consults this before
// destroying an idle session.
func (s *Store) HasHistory(ctx context.Context, roomCode string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chat_messages WHERE room_code = ?)
		    OR EXISTS(SELECT 1 FROM saved_boards WHERE room_code = ?)
	`, roomCode, roomCode)
	var has bool
	if err := row.Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

// SaveBoard stores a named snapshot and returns its id.
func (s *Store) SaveBoard(ctx context.Context, b SavedBoard) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO saved_boards(owner, room_code, name, image_data) VALUES(?, ?, ?, ?)`,
		b.Owner, b.RoomCode, b.Name, b.ImageData)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListSavedBoards returns an owner's saved snapshots, newest first.
func (s *Store) ListSavedBoards(ctx context.Context, owner string) ([]SavedBoard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, room_code, name, image_data, created_at
		FROM saved_boards WHERE owner = ?
		ORDER BY created_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []SavedBoard
	for rows.Next() {
		var b SavedBoard
		if err := rows.Scan(&b.ID, &b.Owner, &b.RoomCode, &b.Name, &b.ImageData, &b.CreatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// DeleteSavedBoard removes one saved snapshot.
func (s *Store) DeleteSavedBoard(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saved_boards WHERE id = ?`, id)
	return err
}
