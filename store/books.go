package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// BookInfo is library catalog entry.
type BookInfo struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"file_path"`
	CoverPath   string    `json:"cover_path"`
	Title       string    `json:"title"`
	Creator     string    `json:"creator"`
	Date        string    `json:"date"`
	Publisher   string    `json:"publisher"`
	Language    string    `json:"language"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	LastOpen    time.Time `json:"last_open"`
}

const bookColumns = `id, file_path, cover_path, title, creator, date, publisher, language, subject, description, last_open`

// SaveBook adds book to the catalog or replaces existing entry.
func (s *Store) SaveBook(ctx context.Context, b BookInfo) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var lastOpen int64
	if !b.LastOpen.IsZero() {
		lastOpen = b.LastOpen.UnixMilli()
	}
	err = sqlitex.Execute(s.conn, `INSERT OR REPLACE INTO book_info (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			b.ID, b.FilePath, b.CoverPath, b.Title, b.Creator, b.Date,
			b.Publisher, b.Language, b.Subject, b.Description, lastOpen,
		}})
	if err != nil {
		return fmt.Errorf("unable to save book %s: %w", b.ID, err)
	}
	s.log.Debug("Book saved", zap.String("id", b.ID), zap.String("title", b.Title))
	return nil
}

// Book returns catalog entry.
func (s *Store) Book(ctx context.Context, id string) (BookInfo, error) {
	books, err := s.queryBooks(ctx, `SELECT `+bookColumns+` FROM book_info WHERE id = ?`, id)
	if err != nil {
		return BookInfo{}, err
	}
	if len(books) == 0 {
		return BookInfo{}, fmt.Errorf("%s: %w", id, ErrBookNotFound)
	}
	return books[0], nil
}

// Books lists catalog, recently opened books first.
func (s *Store) Books(ctx context.Context) ([]BookInfo, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM book_info ORDER BY last_open DESC, title`)
}

// TouchBook records book opening time.
func (s *Store) TouchBook(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = sqlitex.Execute(s.conn, `UPDATE book_info SET last_open = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{s.now().UnixMilli(), id}})
	if err != nil {
		return fmt.Errorf("unable to update book %s: %w", id, err)
	}
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%s: %w", id, ErrBookNotFound)
	}
	return nil
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]BookInfo, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var books []BookInfo
	err = sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			b := BookInfo{
				ID:          stmt.ColumnText(0),
				FilePath:    stmt.ColumnText(1),
				CoverPath:   stmt.ColumnText(2),
				Title:       stmt.ColumnText(3),
				Creator:     stmt.ColumnText(4),
				Date:        stmt.ColumnText(5),
				Publisher:   stmt.ColumnText(6),
				Language:    stmt.ColumnText(7),
				Subject:     stmt.ColumnText(8),
				Description: stmt.ColumnText(9),
			}
			if ms := stmt.ColumnInt64(10); ms > 0 {
				b.LastOpen = time.UnixMilli(ms)
			}
			books = append(books, b)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to query books: %w", err)
	}
	return books, nil
}
