// Package bookmark keeps bookmark ranges and turns them into highlighted
// regions of paragraph text.
package bookmark

import (
	"context"
	"fmt"
	"time"
)

// MarkID is durable bookmark identity assigned by repository, zero means
// bookmark was not stored yet.
type MarkID int64

// Position addresses a character in chapter text. Offset is measured in
// characters of paragraph rendered text, 0 <= Offset <= length.
type Position struct {
	Chapter   int `json:"chapter"`
	Paragraph int `json:"paragraph"`
	Offset    int `json:"offset"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Chapter, p.Paragraph, p.Offset)
}

// after reports if p follows o in document order.
func (p Position) after(o Position) bool {
	if p.Chapter != o.Chapter {
		return p.Chapter > o.Chapter
	}
	if p.Paragraph != o.Paragraph {
		return p.Paragraph > o.Paragraph
	}
	return p.Offset > o.Offset
}

// Range is a bookmark, start never follows end.
type Range struct {
	BookID    string    `json:"book_id"`
	MarkID    MarkID    `json:"mark_id"`
	Start     Position  `json:"start"`
	End       Position  `json:"end"`
	CreatedAt time.Time `json:"create_time"`
}

// SingleParagraph reports if range does not need splitting.
func (r Range) SingleParagraph() bool {
	return r.Start.Paragraph == r.End.Paragraph
}

func (r Range) String() string {
	return fmt.Sprintf("mark[%d] book[%s] %s-%s", r.MarkID, r.BookID, r.Start, r.End)
}

// SubRange is part of a bookmark confined to a single paragraph.
type SubRange struct {
	MarkID    MarkID
	Paragraph int
	Start     int
	End       int
}

// Highlight is visual instance of a sub range, identity is never stored.
type Highlight struct {
	ID    string
	Owner MarkID
}

// DeleteControl describes control attached to a highlighted region.
type DeleteControl struct {
	Label string
	// StopPropagation is set when activation must not reach ancestor
	// double click handler which creates bookmarks.
	StopPropagation bool
}

// Region is rendering instruction for one highlight: paragraph text is
// Before + Highlighted + After.
type Region struct {
	Paragraph   int
	Before      string
	Highlighted string
	After       string
	Highlight   Highlight
	Delete      DeleteControl
}

// Text returns full paragraph text the region was produced from.
func (r Region) Text() string {
	return r.Before + r.Highlighted + r.After
}

// Repository persists bookmarks.
type Repository interface {
	// CreateBookmark stores range ignoring its MarkID and returns durable id.
	CreateBookmark(ctx context.Context, r Range) (MarkID, error)
	// ListBookmarks returns bookmarks starting in the chapter.
	ListBookmarks(ctx context.Context, bookID string, chapter int) ([]Range, error)
	DeleteBookmark(ctx context.Context, id MarkID) error
}

// Ordered reports if range start does not follow its end.
func (r Range) Ordered() bool {
	return !r.Start.after(r.End)
}
