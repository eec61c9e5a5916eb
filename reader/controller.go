// Package reader drives bookmark flows for an open chapter: it owns chapter
// session, talks to the repository and keeps rendered page in sync with
// stored bookmarks.
package reader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"rdmark/bookmark"
	"rdmark/common"
	"rdmark/content"
	"rdmark/content/text"
	"rdmark/css"
	"rdmark/epub"
	"rdmark/resource"
	"rdmark/view"
)

var ErrNoSession = errors.New("no chapter is open")

// State of the bookmark flow.
type State int

const (
	StateIdle State = iota
	StateAdding
	StateListing
	StateHighlighted
	StateRendered
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdding:
		return "adding"
	case StateListing:
		return "listing"
	case StateHighlighted:
		return "highlighted"
	case StateRendered:
		return "rendered"
	case StateDeleting:
		return "deleting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Source provides chapters of a book.
type Source interface {
	BookID() string
	Chapter(index int) (*epub.Chapter, error)
	ChapterMarkup(index int) ([]byte, error)
	ReadFile(name string) ([]byte, error)
}

// Settings of the controller, zero value is usable.
type Settings struct {
	// Rewriter makes image references loadable, nil keeps them intact.
	Rewriter *resource.Rewriter
	// ResourceRoot returns directory book resources are extracted to.
	ResourceRoot func(bookID string) string
	Normalize    content.Options
	// Style replaces built-in page stylesheet.
	Style    []byte
	Notifier Notifier
	// NewHighlightID generates highlight ids, nil means random ones.
	NewHighlightID func() string
	Sentences      *text.Splitter
	Now            func() time.Time
}

// Controller orchestrates adding, listing and deleting bookmarks for the
// open chapter. All operations are serialized.
type Controller struct {
	mu       sync.Mutex
	state    State
	settings Settings
	requests *dispatcher
	session  *Session
	closed   bool
	log      *zap.Logger
}

func NewController(repo bookmark.Repository, settings Settings, log *zap.Logger) *Controller {
	log = log.Named("reader")
	if settings.Notifier == nil {
		settings.Notifier = NewLogNotifier(log)
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.Normalize.Log == nil {
		settings.Normalize.Log = log
	}
	if len(settings.Normalize.ImageSuffixes) == 0 {
		settings.Normalize.ImageSuffixes = content.DefaultOptions().ImageSuffixes
	}
	return &Controller{
		settings: settings,
		requests: newDispatcher(repo, log),
		log:      log,
	}
}

// State returns current state of the bookmark flow.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns current chapter session or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) notify(t common.NotificationType, title string, err error) {
	c.settings.Notifier.Notify(Notification{Type: t, Title: title, Msg: err.Error()})
}

func (c *Controller) active() (*Session, error) {
	if c.closed {
		return nil, errors.New("controller is closed")
	}
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session, nil
}

// Open makes chapter current. Previous session is discarded.
func (c *Controller) Open(ctx context.Context, src Source, chapter int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("controller is closed")
	}

	ch, err := src.Chapter(chapter)
	if err != nil {
		return err
	}
	raw, err := src.ChapterMarkup(chapter)
	if err != nil {
		return fmt.Errorf("unable to read chapter %d: %w", chapter, err)
	}

	s := &Session{
		BookID:  src.BookID(),
		Chapter: chapter,
		Path:    ch.Path,
		Label:   ch.Label,
		raw:     raw,
		opts:    c.settings.Normalize,
		newID:   c.settings.NewHighlightID,
	}

	var root string
	if c.settings.ResourceRoot != nil {
		root = c.settings.ResourceRoot(s.BookID)
	}
	if c.settings.Rewriter != nil {
		s.opts.Links = c.settings.Rewriter.ForChapter(root, ch.Path)
	}

	index, err := content.Normalize(raw, s.opts)
	if err != nil {
		return fmt.Errorf("unable to normalize chapter %d: %w", chapter, err)
	}
	s.pageOpts = view.Options{
		Title:       ch.Label,
		Style:       c.settings.Style,
		Stylesheets: c.stylesheets(src, root, ch.Path, index.Stylesheets),
	}
	s.swap(s.build(index))

	if c.session != nil {
		c.session.page.Release()
	}
	c.session = s
	c.state = StateIdle

	c.log.Debug("Chapter opened",
		zap.String("book", s.BookID),
		zap.Int("chapter", chapter),
		zap.String("path", ch.Path),
		zap.Int("paragraphs", s.index.Len()))
	return nil
}

// stylesheets reads chapter stylesheets rewriting image references relative
// to the stylesheet location.
func (c *Controller) stylesheets(src Source, root, chapterPath string, hrefs []string) [][]byte {
	var out [][]byte
	for _, href := range hrefs {
		name := resource.Resolve(path.Dir(chapterPath), href)
		data, err := src.ReadFile(name)
		if err != nil {
			c.log.Warn("Unable to read chapter stylesheet", zap.String("href", href), zap.Error(err))
			continue
		}
		if c.settings.Rewriter != nil {
			linker := c.settings.Rewriter.ForChapter(root, name)
			data, err = css.RewriteURLs(data, func(ref string) (string, bool) {
				if !resource.HasImageSuffix(ref, c.settings.Normalize.ImageSuffixes) {
					return "", false
				}
				return linker.Link(ref), true
			}, c.log)
			if err != nil {
				c.log.Warn("Unable to process chapter stylesheet", zap.String("href", href), zap.Error(err))
				continue
			}
		}
		out = append(out, data)
	}
	return out
}

// Normalize rebuilds paragraph index and page from chapter markup, all
// highlights are dropped.
func (c *Controller) Normalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	return c.normalize(s)
}

func (c *Controller) normalize(s *Session) error {
	p, err := s.normalize()
	if err != nil {
		return err
	}
	s.swap(p)
	c.state = StateIdle
	return nil
}

// RenderBookmark puts stored bookmark on the current page.
func (c *Controller) RenderBookmark(r bookmark.Range) ([]bookmark.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return nil, err
	}
	p := s.current()
	regions, err := p.render(s, r)
	if err != nil {
		c.log.Error("Unable to render bookmark", zap.Stringer("range", r), zap.Error(err))
		return nil, err
	}
	s.swap(p)
	return regions, nil
}

// AddBookmarkAt bookmarks whole paragraph.
func (c *Controller) AddBookmarkAt(ctx context.Context, paragraph int) (bookmark.Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return bookmark.Range{}, err
	}
	n, err := s.index.ParagraphLen(paragraph)
	if err != nil {
		r := bookmark.Range{BookID: s.BookID,
			Start: bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph},
			End:   bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph}}
		return bookmark.Range{}, &bookmark.MalformedRangeError{Range: r, Reason: "paragraph is not rendered", Err: err}
	}
	return c.add(ctx, s, bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph}, bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph, Offset: n})
}

// AddRange bookmarks arbitrary text of the open chapter.
func (c *Controller) AddRange(ctx context.Context, start, end bookmark.Position) (bookmark.Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return bookmark.Range{}, err
	}
	return c.add(ctx, s, start, end)
}

// AddSentence bookmarks n-th sentence (starting with 1) of the paragraph.
func (c *Controller) AddSentence(ctx context.Context, paragraph, n int) (bookmark.Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return bookmark.Range{}, err
	}
	b, err := s.index.Paragraph(paragraph)
	if err != nil {
		return bookmark.Range{}, err
	}
	span, err := c.settings.Sentences.Sentence(b.Text(), n)
	if err != nil {
		return bookmark.Range{}, fmt.Errorf("paragraph %d: %w", paragraph, err)
	}
	return c.add(ctx, s,
		bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph, Offset: span.Start},
		bookmark.Position{Chapter: s.Chapter, Paragraph: paragraph, Offset: span.End})
}

// add stores range and renders it with confirmed id. Lock is held for the
// whole operation, refresh cannot observe stale list.
func (c *Controller) add(ctx context.Context, s *Session, start, end bookmark.Position) (bookmark.Range, error) {
	r := bookmark.Range{BookID: s.BookID, Start: start, End: end, CreatedAt: c.settings.Now()}
	if err := r.Validate(s.length); err != nil {
		c.log.Error("Refusing to store bookmark", zap.Stringer("range", r), zap.Error(err))
		return bookmark.Range{}, err
	}

	c.state = StateAdding
	id, err := c.requests.create(ctx, r)
	if err != nil {
		c.state = StateIdle
		c.notify(common.NotificationTypeErr, "Unable to add bookmark", err)
		return bookmark.Range{}, err
	}
	r.MarkID = id

	p := s.current()
	if _, err := p.render(s, r); err != nil {
		c.state = StateIdle
		c.log.Error("Unable to render new bookmark", zap.Stringer("range", r), zap.Error(err))
		return r, err
	}
	s.swap(p)
	c.state = StateHighlighted

	c.log.Debug("Bookmark added", zap.Stringer("range", r))
	return r, nil
}

// RefreshBookmarks renders all stored bookmarks of the chapter on a fresh
// page. On failure current page and registry stay as they were.
func (c *Controller) RefreshBookmarks(ctx context.Context, bookID string, chapter int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	if bookID != s.BookID || chapter != s.Chapter {
		return fmt.Errorf("chapter %d of book %s is not open", chapter, bookID)
	}
	return c.refresh(ctx, s)
}

func (c *Controller) refresh(ctx context.Context, s *Session) error {
	c.state = StateListing
	ranges, err := c.requests.list(ctx, s.BookID, s.Chapter)
	if err != nil {
		c.state = StateIdle
		c.notify(common.NotificationTypeErr, "Unable to load bookmarks", err)
		return err
	}

	p, err := s.normalize()
	if err != nil {
		c.state = StateIdle
		return err
	}
	seen := make(map[bookmark.MarkID]bool, len(ranges))
	for _, r := range ranges {
		if seen[r.MarkID] {
			c.state = StateIdle
			err := &bookmark.RegistryConsistencyError{MarkID: r.MarkID, Reason: "mark listed twice"}
			c.log.Error("Bookmark refresh aborted", zap.Stringer("range", r), zap.Error(err))
			return err
		}
		seen[r.MarkID] = true
		if _, err := p.render(s, r); err != nil {
			c.state = StateIdle
			c.log.Error("Bookmark refresh aborted", zap.Stringer("range", r), zap.Error(err))
			return err
		}
	}
	s.swap(p)
	c.state = StateRendered

	c.log.Debug("Bookmarks refreshed",
		zap.String("book", s.BookID),
		zap.Int("chapter", s.Chapter),
		zap.Int("bookmarks", len(ranges)),
		zap.Int("highlights", s.reg.Len()))
	return nil
}

// DeleteBookmark removes bookmark owning the highlight. Repository deletion
// is not awaited, chapter is normalized again and remaining bookmarks are
// refreshed.
func (c *Controller) DeleteBookmark(ctx context.Context, highlightID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	mark, ok := s.reg.GetKey(highlightID)
	if !ok {
		err := &bookmark.RegistryConsistencyError{HighlightID: highlightID, Reason: "highlight is not registered"}
		c.log.Error("Unable to delete bookmark", zap.Error(err))
		return err
	}

	c.state = StateDeleting
	s.reg.Delete(mark)
	c.requests.remove(ctx, mark)

	if err := c.normalize(s); err != nil {
		return err
	}
	return c.refresh(ctx, s)
}

// Release leaves rendering mode. It does nothing when there is no page or
// page was already released.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.page.Release()
	}
}

// Dispatch handles gesture on the page: double click on paragraph adds a
// bookmark, click on delete control removes one. Double click on delete
// control does not reach the paragraph.
func (c *Controller) Dispatch(ctx context.Context, ev view.Event) error {
	switch {
	case ev.OnControl && ev.Gesture == view.Click:
		return c.DeleteBookmark(ctx, ev.Highlight)
	case ev.OnControl:
		c.log.Debug("Gesture stopped at delete control", zap.Stringer("gesture", ev.Gesture))
		return nil
	case ev.Gesture == view.DoubleClick:
		_, err := c.AddBookmarkAt(ctx, ev.Paragraph)
		return err
	}
	return nil
}

// Page serializes current page.
func (c *Controller) Page() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return nil, err
	}
	return s.page.Bytes()
}

// Close waits for submitted repository requests and releases the page.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.session != nil {
		c.session.page.Release()
		c.session = nil
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.requests.close()
	return nil
}
