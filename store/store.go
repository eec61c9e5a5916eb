// Package store persists bookmarks and library catalog in sqlite database.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"rdmark/bookmark"
)

const schema = `
CREATE TABLE IF NOT EXISTS book_info (
	id          TEXT    PRIMARY KEY,
	file_path   TEXT    NOT NULL,
	cover_path  TEXT    NOT NULL,
	title       TEXT    NOT NULL,
	creator     TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	publisher   TEXT    NOT NULL,
	language    TEXT    NOT NULL,
	subject     TEXT    NOT NULL,
	description TEXT    NOT NULL,
	last_open   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS book_mark (
	book_id         TEXT    NOT NULL,
	mark_id         INTEGER PRIMARY KEY,
	start_chapter   INTEGER NOT NULL,
	start_paragraph INTEGER NOT NULL,
	start_offset    INTEGER NOT NULL,
	end_chapter     INTEGER NOT NULL,
	end_paragraph   INTEGER NOT NULL,
	end_offset      INTEGER NOT NULL,
	create_time     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS book_mark_chapter ON book_mark (book_id, start_chapter);
`

const markColumns = `book_id, mark_id, start_chapter, start_paragraph, start_offset, end_chapter, end_paragraph, end_offset, create_time`

var (
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrBookNotFound     = errors.New("book not found")
)

// Store is sqlite backed bookmark repository. Single connection is shared
// and serialized.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
	now  func() time.Time
}

var _ bookmark.Repository = (*Store)(nil)

// Open opens (creating when necessary) database file and makes sure schema
// is in place.
func Open(path string, log *zap.Logger) (*Store, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open database (%s): %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare database schema: %w", err)
	}
	log.Debug("Database opened", zap.String("path", path))
	return &Store{conn: conn, log: log, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// lock serializes access to connection and makes connection honor context
// cancellation. Returned function must be called when done.
func (s *Store) lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.conn.SetInterrupt(ctx.Done())
	return func() {
		s.conn.SetInterrupt(nil)
		s.mu.Unlock()
	}, nil
}

// CreateBookmark stores the range under the next free mark id. Creation time
// is assigned when range does not carry one.
func (s *Store) CreateBookmark(ctx context.Context, r bookmark.Range) (id bookmark.MarkID, err error) {
	if !r.Ordered() || r.Start.Chapter != r.End.Chapter {
		return 0, &bookmark.RepositoryError{Op: "create", Err: &bookmark.MalformedRangeError{Range: r, Reason: "range is not stored"}}
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return 0, &bookmark.RepositoryError{Op: "create", Err: err}
	}
	defer unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	err = func() (err error) {
		defer sqlitex.Save(s.conn)(&err)

		err = sqlitex.Execute(s.conn, `SELECT COALESCE(MAX(mark_id), 0) + 1 FROM book_mark`,
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				id = bookmark.MarkID(stmt.ColumnInt64(0))
				return nil
			}})
		if err != nil {
			return err
		}
		return sqlitex.Execute(s.conn, `INSERT INTO book_mark (`+markColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				r.BookID, int64(id),
				r.Start.Chapter, r.Start.Paragraph, r.Start.Offset,
				r.End.Chapter, r.End.Paragraph, r.End.Offset,
				r.CreatedAt.UnixMilli(),
			}})
	}()
	if err != nil {
		return 0, &bookmark.RepositoryError{Op: "create", Err: err}
	}

	s.log.Debug("Bookmark created", zap.Int64("mark", int64(id)), zap.Stringer("range", r))
	return id, nil
}

// ListBookmarks returns bookmarks starting in the chapter in creation order.
func (s *Store) ListBookmarks(ctx context.Context, bookID string, chapter int) ([]bookmark.Range, error) {
	marks, err := s.queryMarks(ctx, `SELECT `+markColumns+` FROM book_mark WHERE book_id = ? AND start_chapter = ? ORDER BY create_time, mark_id`,
		bookID, chapter)
	if err != nil {
		return nil, &bookmark.RepositoryError{Op: "list", Err: err}
	}
	return marks, nil
}

// BookBookmarks returns all bookmarks of the book in reading order.
func (s *Store) BookBookmarks(ctx context.Context, bookID string) ([]bookmark.Range, error) {
	marks, err := s.queryMarks(ctx, `SELECT `+markColumns+` FROM book_mark WHERE book_id = ? ORDER BY start_chapter, start_paragraph, start_offset, mark_id`,
		bookID)
	if err != nil {
		return nil, &bookmark.RepositoryError{Op: "list", Err: err}
	}
	return marks, nil
}

func (s *Store) queryMarks(ctx context.Context, query string, args ...any) ([]bookmark.Range, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var marks []bookmark.Range
	err = sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			marks = append(marks, bookmark.Range{
				BookID: stmt.ColumnText(0),
				MarkID: bookmark.MarkID(stmt.ColumnInt64(1)),
				Start: bookmark.Position{
					Chapter:   stmt.ColumnInt(2),
					Paragraph: stmt.ColumnInt(3),
					Offset:    stmt.ColumnInt(4),
				},
				End: bookmark.Position{
					Chapter:   stmt.ColumnInt(5),
					Paragraph: stmt.ColumnInt(6),
					Offset:    stmt.ColumnInt(7),
				},
				CreatedAt: time.UnixMilli(stmt.ColumnInt64(8)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return marks, nil
}

func (s *Store) DeleteBookmark(ctx context.Context, id bookmark.MarkID) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return &bookmark.RepositoryError{Op: "delete", Err: err}
	}
	defer unlock()

	err = sqlitex.Execute(s.conn, `DELETE FROM book_mark WHERE mark_id = ?`, &sqlitex.ExecOptions{Args: []any{int64(id)}})
	if err != nil {
		return &bookmark.RepositoryError{Op: "delete", Err: err}
	}
	if s.conn.Changes() == 0 {
		return &bookmark.RepositoryError{Op: "delete", Err: fmt.Errorf("mark %d: %w", id, ErrBookmarkNotFound)}
	}
	s.log.Debug("Bookmark deleted", zap.Int64("mark", int64(id)))
	return nil
}
