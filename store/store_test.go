package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"rdmark/bookmark"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "reader.db"), zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func rng(book string, chapter, sp, so, ep, eo int) bookmark.Range {
	return bookmark.Range{
		BookID: book,
		Start:  bookmark.Position{Chapter: chapter, Paragraph: sp, Offset: so},
		End:    bookmark.Position{Chapter: chapter, Paragraph: ep, Offset: eo},
	}
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var ids []bookmark.MarkID
	for _, r := range []bookmark.Range{
		rng("b1", 0, 1, 0, 1, 5),
		rng("b1", 0, 2, 15, 4, 5),
		rng("b1", 1, 1, 0, 1, 1),
		rng("b2", 0, 1, 0, 1, 1),
	} {
		id, err := s.CreateBookmark(ctx, r)
		if err != nil {
			t.Fatalf("CreateBookmark() error = %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("ids_are_sequential", func(t *testing.T) {
		for i, id := range ids {
			if id != bookmark.MarkID(i+1) {
				t.Errorf("mark %d got id %d", i, id)
			}
		}
	})

	t.Run("list_by_chapter", func(t *testing.T) {
		marks, err := s.ListBookmarks(ctx, "b1", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(marks) != 2 {
			t.Fatalf("ListBookmarks() = %v", marks)
		}
		want := rng("b1", 0, 2, 15, 4, 5)
		got := marks[1]
		if got.MarkID != 2 || got.Start != want.Start || got.End != want.End || got.BookID != "b1" {
			t.Errorf("mark = %+v", got)
		}
		if !marks[0].CreatedAt.Before(marks[1].CreatedAt) {
			t.Errorf("marks are not in creation order: %v", marks)
		}
	})

	t.Run("list_whole_book", func(t *testing.T) {
		marks, err := s.BookBookmarks(ctx, "b1")
		if err != nil {
			t.Fatal(err)
		}
		if len(marks) != 3 || marks[2].Start.Chapter != 1 {
			t.Errorf("BookBookmarks() = %v", marks)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteBookmark(ctx, ids[0]); err != nil {
			t.Fatal(err)
		}
		marks, err := s.ListBookmarks(ctx, "b1", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(marks) != 1 || marks[0].MarkID != ids[1] {
			t.Errorf("ListBookmarks() after delete = %v", marks)
		}

		err = s.DeleteBookmark(ctx, ids[0])
		var rerr *bookmark.RepositoryError
		if !errors.As(err, &rerr) || rerr.Op != "delete" || !errors.Is(err, ErrBookmarkNotFound) {
			t.Errorf("second delete error = %v", err)
		}
	})

	t.Run("ids_are_not_reused_below_maximum", func(t *testing.T) {
		id, err := s.CreateBookmark(ctx, rng("b3", 0, 1, 0, 1, 0))
		if err != nil {
			t.Fatal(err)
		}
		if id != 5 {
			t.Errorf("id = %d, want 5", id)
		}
	})
}

func TestCreateBookmark_Rejected(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for name, r := range map[string]bookmark.Range{
		"start after end": rng("b", 0, 3, 0, 2, 0),
		"crosses chapters": {
			BookID: "b",
			Start:  bookmark.Position{Chapter: 0, Paragraph: 1},
			End:    bookmark.Position{Chapter: 1, Paragraph: 1},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateBookmark(ctx, r)
			var merr *bookmark.MalformedRangeError
			if !errors.As(err, &merr) {
				t.Errorf("CreateBookmark() error = %v", err)
			}
		})
	}

	marks, err := s.BookBookmarks(ctx, "b")
	if err != nil || len(marks) != 0 {
		t.Errorf("rejected ranges were stored: %v, %v", marks, err)
	}
}

func TestCanceledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.CreateBookmark(ctx, rng("b", 0, 1, 0, 1, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("CreateBookmark() error = %v", err)
	}
	if _, err := s.ListBookmarks(ctx, "b", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("ListBookmarks() error = %v", err)
	}
	if err := s.DeleteBookmark(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("DeleteBookmark() error = %v", err)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	name := filepath.Join(t.TempDir(), "reader.db")
	log := zaptest.NewLogger(t)

	s, err := Open(name, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateBookmark(ctx, rng("b", 2, 1, 0, 1, 3)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(name, log)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	marks, err := s.ListBookmarks(ctx, "b", 2)
	if err != nil || len(marks) != 1 || marks[0].End.Offset != 3 {
		t.Errorf("ListBookmarks() after reopen = %v, %v", marks, err)
	}
}

func TestBooks(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, b := range []BookInfo{
		{ID: "a", Title: "Alpha", FilePath: "/lib/a.epub", Language: "en"},
		{ID: "b", Title: "Beta", FilePath: "/lib/b.epub", Creator: "Someone"},
	} {
		if err := s.SaveBook(ctx, b); err != nil {
			t.Fatalf("SaveBook() error = %v", err)
		}
	}

	if err := s.TouchBook(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	books, err := s.Books(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 || books[0].ID != "b" || books[0].LastOpen.IsZero() || !books[1].LastOpen.IsZero() {
		t.Errorf("Books() = %+v", books)
	}

	b, err := s.Book(ctx, "a")
	if err != nil || b.Title != "Alpha" || b.Language != "en" {
		t.Errorf("Book() = %+v, %v", b, err)
	}

	b.Title = "Alpha 2"
	if err := s.SaveBook(ctx, b); err != nil {
		t.Fatal(err)
	}
	if b, _ := s.Book(ctx, "a"); b.Title != "Alpha 2" {
		t.Errorf("book was not replaced: %+v", b)
	}

	if _, err := s.Book(ctx, "none"); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("Book() error = %v", err)
	}
	if err := s.TouchBook(ctx, "none"); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("TouchBook() error = %v", err)
	}
}
