package bookmark

import (
	"fmt"
)

// LengthFunc returns length of paragraph rendered text.
type LengthFunc func(chapter, paragraph int) (int, error)

// Validate checks range against current paragraph lengths.
func (r Range) Validate(length LengthFunc) error {
	malformed := func(reason string, err error) error {
		return &MalformedRangeError{Range: r, Reason: reason, Err: err}
	}

	switch {
	case r.Start.Chapter != r.End.Chapter:
		return malformed("range crosses chapter boundary", nil)
	case r.Start.after(r.End):
		return malformed("start follows end", nil)
	case r.Start.Paragraph < 1:
		return malformed(fmt.Sprintf("paragraph %d does not exist", r.Start.Paragraph), nil)
	case r.Start.Offset < 0 || r.End.Offset < 0:
		return malformed("negative offset", nil)
	}

	for p := r.Start.Paragraph; p <= r.End.Paragraph; p++ {
		l, err := length(r.Start.Chapter, p)
		if err != nil {
			return malformed(fmt.Sprintf("paragraph %d is not available", p), err)
		}
		if p == r.Start.Paragraph && r.Start.Offset > l {
			return malformed(fmt.Sprintf("start offset %d is beyond paragraph length %d", r.Start.Offset, l), nil)
		}
		if p == r.End.Paragraph && r.End.Offset > l {
			return malformed(fmt.Sprintf("end offset %d is beyond paragraph length %d", r.End.Offset, l), nil)
		}
	}
	return nil
}

// Split decomposes range spanning several paragraphs into per paragraph sub
// ranges: tail of the first paragraph, every interior paragraph in full and
// head of the last one. Single paragraph range yields nothing, it is rendered
// directly. Malformed range is rejected before anything is produced.
func Split(r Range, length LengthFunc) ([]SubRange, error) {
	if err := r.Validate(length); err != nil {
		return nil, err
	}
	if r.SingleParagraph() {
		return nil, nil
	}

	subs := make([]SubRange, 0, r.End.Paragraph-r.Start.Paragraph+1)
	for p := r.Start.Paragraph; p <= r.End.Paragraph; p++ {
		sub := SubRange{MarkID: r.MarkID, Paragraph: p}
		switch p {
		case r.Start.Paragraph:
			sub.Start = r.Start.Offset
			sub.End, _ = length(r.Start.Chapter, p)
		case r.End.Paragraph:
			sub.End = r.End.Offset
		default:
			sub.End, _ = length(r.Start.Chapter, p)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
