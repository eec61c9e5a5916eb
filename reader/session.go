package reader

import (
	"fmt"

	"rdmark/bookmark"
	"rdmark/content"
	"rdmark/utils/debug"
	"rdmark/view"
)

// Session is everything known about a single open chapter. Raw markup is
// never modified, every normalization starts from it.
type Session struct {
	BookID  string
	Chapter int
	Path    string
	Label   string

	raw         []byte
	opts        content.Options
	pageOpts    view.Options
	index       *content.ParagraphIndex
	page        *view.Page
	reg         *bookmark.Registry
	renderer    *bookmark.Renderer
	newID       func() string
	marks       []bookmark.Range
	highlighted map[bookmark.MarkID][]bookmark.Region
}

// pass is normalized chapter with its own registry, built aside and
// swapped into session when complete.
type pass struct {
	index       *content.ParagraphIndex
	page        *view.Page
	reg         *bookmark.Registry
	renderer    *bookmark.Renderer
	marks       []bookmark.Range
	highlighted map[bookmark.MarkID][]bookmark.Region
}

func (s *Session) normalize() (*pass, error) {
	index, err := content.Normalize(s.raw, s.opts)
	if err != nil {
		return nil, fmt.Errorf("unable to normalize chapter %d: %w", s.Chapter, err)
	}
	return s.build(index), nil
}

// build renders index on a new page without any bookmarks.
func (s *Session) build(index *content.ParagraphIndex) *pass {
	reg := bookmark.NewRegistry()
	return &pass{
		index:       index,
		page:        view.NewPage(index, s.pageOpts),
		reg:         reg,
		renderer:    bookmark.NewRenderer(reg, s.newID),
		highlighted: make(map[bookmark.MarkID][]bookmark.Region),
	}
}

func (s *Session) swap(p *pass) {
	released := s.page != nil && s.page.Released()
	s.index, s.page, s.reg, s.renderer = p.index, p.page, p.reg, p.renderer
	s.marks, s.highlighted = p.marks, p.highlighted
	if released {
		s.page.Release()
	}
}

func (s *Session) current() *pass {
	return &pass{
		index:       s.index,
		page:        s.page,
		reg:         s.reg,
		renderer:    s.renderer,
		marks:       s.marks,
		highlighted: s.highlighted,
	}
}

// render puts bookmark on the page of the pass. Range which does not belong
// to the chapter is malformed.
func (p *pass) render(s *Session, r bookmark.Range) ([]bookmark.Region, error) {
	if r.BookID != s.BookID || r.Start.Chapter != s.Chapter || r.End.Chapter != s.Chapter {
		return nil, &bookmark.MalformedRangeError{Range: r,
			Reason: fmt.Sprintf("range does not belong to chapter %d of book %s", s.Chapter, s.BookID)}
	}
	regions, err := p.renderer.RenderRange(r, p.page.Text)
	if err != nil {
		return nil, err
	}
	for _, region := range regions {
		if err := p.page.Apply(region); err != nil {
			return nil, err
		}
	}
	p.marks = append(p.marks, r)
	p.highlighted[r.MarkID] = append(p.highlighted[r.MarkID], regions...)
	return regions, nil
}

func (s *Session) length(_, paragraph int) (int, error) {
	return s.index.ParagraphLen(paragraph)
}

// Index returns current paragraph index.
func (s *Session) Index() *content.ParagraphIndex {
	return s.index
}

// Page returns current page.
func (s *Session) Page() *view.Page {
	return s.page
}

// Registry returns current highlight registry.
func (s *Session) Registry() *bookmark.Registry {
	return s.reg
}

// Marks returns bookmarks rendered on current page in render order.
func (s *Session) Marks() []bookmark.Range {
	return append([]bookmark.Range(nil), s.marks...)
}

// Regions returns highlighted regions rendered for the bookmark.
func (s *Session) Regions(mark bookmark.MarkID) []bookmark.Region {
	return append([]bookmark.Region(nil), s.highlighted[mark]...)
}

// Raw returns chapter markup as read from the book.
func (s *Session) Raw() []byte {
	return s.raw
}

func (s *Session) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Session book[%s] chapter[%d] path[%s]", s.BookID, s.Chapter, s.Path)
	tw.TextBlock(1, "Label", s.Label)
	tw.Line(1, "Raw: %d bytes", len(s.raw))
	tw.Line(1, "Released: %t", s.page.Released())

	tw.Line(1, "Bookmarks: %d", len(s.marks))
	for _, r := range s.marks {
		tw.Line(2, "%s", r)
		for _, region := range s.highlighted[r.MarkID] {
			tw.Line(3, "Highlight[%s] paragraph[%d]", region.Highlight.ID, region.Paragraph)
			tw.TextBlock(4, "Text", region.Highlighted)
		}
	}

	ids := make([]string, 0, s.reg.Len())
	for _, mark := range s.reg.Marks() {
		ids = append(ids, s.reg.Get(mark)...)
	}
	tw.Line(1, "Registry: %d", len(ids))
	for _, id := range debug.Sorted(ids) {
		mark, _ := s.reg.GetKey(id)
		tw.Line(2, "%s -> %d", id, mark)
	}
	tw.Line(1, "%s", s.index)
	return tw.String()
}
