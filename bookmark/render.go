package bookmark

import (
	"fmt"
	"math/rand/v2"
	"unicode/utf8"
)

const (
	highlightIDLength  = 10
	highlightIDSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// attempts to find highlight id not yet in registry
	highlightIDAttempts = 32

	DeleteLabel = "Delete"
)

// RandomHighlightID returns fresh random highlight id.
func RandomHighlightID() string {
	b := make([]byte, highlightIDLength)
	for i := range b {
		b[i] = highlightIDSymbols[rand.IntN(len(highlightIDSymbols))]
	}
	return string(b)
}

// Renderer slices paragraph text into highlighted regions and registers
// highlights.
type Renderer struct {
	reg   *Registry
	newID func() string
}

// NewRenderer returns renderer registering highlights in reg. When newID is
// nil RandomHighlightID is used.
func NewRenderer(reg *Registry, newID func() string) *Renderer {
	if newID == nil {
		newID = RandomHighlightID
	}
	return &Renderer{reg: reg, newID: newID}
}

// Render produces region for sub range of paragraph text and registers its
// highlight for the owning bookmark.
func (r *Renderer) Render(sub SubRange, text string) (Region, error) {
	runes := []rune(text)
	if sub.Start < 0 || sub.Start > sub.End || sub.End > len(runes) {
		return Region{}, &MalformedRangeError{
			Range:  Range{MarkID: sub.MarkID, Start: Position{Paragraph: sub.Paragraph, Offset: sub.Start}, End: Position{Paragraph: sub.Paragraph, Offset: sub.End}},
			Reason: fmt.Sprintf("sub range [%d,%d] does not fit paragraph length %d", sub.Start, sub.End, len(runes)),
		}
	}

	id, err := r.freshID()
	if err != nil {
		return Region{}, err
	}
	if err := r.reg.PushInto(sub.MarkID, id); err != nil {
		return Region{}, err
	}

	return Region{
		Paragraph:   sub.Paragraph,
		Before:      string(runes[:sub.Start]),
		Highlighted: string(runes[sub.Start:sub.End]),
		After:       string(runes[sub.End:]),
		Highlight:   Highlight{ID: id, Owner: sub.MarkID},
		Delete:      DeleteControl{Label: DeleteLabel, StopPropagation: true},
	}, nil
}

func (r *Renderer) freshID() (string, error) {
	for range highlightIDAttempts {
		if id := r.newID(); !r.reg.Contain(id) {
			return id, nil
		}
	}
	return "", &RegistryConsistencyError{Reason: fmt.Sprintf("unable to find unused highlight id in %d attempts", highlightIDAttempts)}
}

// TextFunc returns rendered text of a paragraph.
type TextFunc func(paragraph int) (string, error)

// RenderRange renders whole bookmark, splitting it when it spans several
// paragraphs. Range is validated before any highlight is registered and
// registry is left untouched on failure.
func (r *Renderer) RenderRange(rng Range, text TextFunc) ([]Region, error) {
	length := func(_, paragraph int) (int, error) {
		t, err := text(paragraph)
		if err != nil {
			return 0, err
		}
		return utf8.RuneCountInString(t), nil
	}

	subs, err := Split(rng, length)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		subs = []SubRange{{MarkID: rng.MarkID, Paragraph: rng.Start.Paragraph, Start: rng.Start.Offset, End: rng.End.Offset}}
	}

	known := r.reg.Get(rng.MarkID)
	regions := make([]Region, 0, len(subs))
	for _, sub := range subs {
		t, err := text(sub.Paragraph)
		if err == nil {
			var region Region
			if region, err = r.Render(sub, t); err == nil {
				regions = append(regions, region)
				continue
			}
		}
		r.rollback(rng.MarkID, known)
		return nil, err
	}
	return regions, nil
}

// rollback restores highlights of the mark to the state before rendering.
func (r *Renderer) rollback(mark MarkID, known []string) {
	r.reg.Delete(mark)
	for _, id := range known {
		// ids were registered before, cannot collide
		_ = r.reg.PushInto(mark, id)
	}
}
