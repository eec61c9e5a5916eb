package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"rdmark/bookmark"
	"rdmark/content"
	"rdmark/epub"
)

type memRepo struct {
	mu      sync.Mutex
	next    bookmark.MarkID
	marks   []bookmark.Range
	deleted []bookmark.MarkID
	creates int

	failCreate error
	failList   error
}

func (m *memRepo) CreateBookmark(ctx context.Context, r bookmark.Range) (bookmark.MarkID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.failCreate != nil {
		return 0, m.failCreate
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.next++
	r.MarkID = m.next
	m.marks = append(m.marks, r)
	return r.MarkID, nil
}

func (m *memRepo) ListBookmarks(ctx context.Context, bookID string, chapter int) ([]bookmark.Range, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failList != nil {
		return nil, m.failList
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []bookmark.Range
	for _, r := range m.marks {
		if r.BookID == bookID && r.Start.Chapter == chapter {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteBookmark(_ context.Context, id bookmark.MarkID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.marks, func(r bookmark.Range) bool { return r.MarkID == id })
	if i < 0 {
		return errors.New("bookmark not found")
	}
	m.marks = slices.Delete(m.marks, i, i+1)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memRepo) set(f func(m *memRepo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m)
}

func (m *memRepo) snapshot() (marks []bookmark.Range, deleted []bookmark.MarkID, creates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.marks), slices.Clone(m.deleted), m.creates
}

type fakeSource struct {
	id       string
	chapters []string
	files    map[string][]byte
}

func (f *fakeSource) BookID() string {
	return f.id
}

func (f *fakeSource) Chapter(index int) (*epub.Chapter, error) {
	if index < 0 || index >= len(f.chapters) {
		return nil, fmt.Errorf("chapter %d: %w", index, epub.ErrNoChapter)
	}
	return &epub.Chapter{
		Index: index,
		Label: fmt.Sprintf("Chapter %d", index+1),
		Path:  fmt.Sprintf("OEBPS/Text/ch%02d.xhtml", index),
		Spine: index,
	}, nil
}

func (f *fakeSource) ChapterMarkup(index int) ([]byte, error) {
	if _, err := f.Chapter(index); err != nil {
		return nil, err
	}
	return []byte(f.chapters[index]), nil
}

func (f *fakeSource) ReadFile(name string) ([]byte, error) {
	if data, ok := f.files[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
}

type notes struct {
	mu   sync.Mutex
	list []Notification
}

func (n *notes) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, note)
}

func (n *notes) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.list)
}

// sequence returns highlight id generator producing H1, H2 and so on.
func sequence() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("H%d", n)
	}
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

type fixture struct {
	ctrl  *Controller
	repo  *memRepo
	src   *fakeSource
	notes *notes
}

func newFixture(t *testing.T, chapters ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, chapters...)
}

func newFixtureWith(t *testing.T, mod func(*Settings), chapters ...string) *fixture {
	t.Helper()

	f := &fixture{
		repo:  &memRepo{},
		src:   &fakeSource{id: "book", chapters: chapters, files: map[string][]byte{}},
		notes: &notes{},
	}
	log := testLogger(t)
	opts := content.DefaultOptions()
	opts.Log = log
	settings := Settings{
		Normalize:      opts,
		Notifier:       f.notes,
		NewHighlightID: sequence(),
	}
	if mod != nil {
		mod(&settings)
	}
	f.ctrl = NewController(f.repo, settings, log)
	t.Cleanup(func() {
		if err := f.ctrl.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return f
}

func (f *fixture) open(t *testing.T, chapter int) {
	t.Helper()
	if err := f.ctrl.Open(context.Background(), f.src, chapter); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
}

func (f *fixture) page(t *testing.T) string {
	t.Helper()
	data, err := f.ctrl.Page()
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	return string(data)
}
