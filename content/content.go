// Package content turns raw chapter markup into paragraph addressable
// document.
package content

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

// block elements, anything else is rendered with "block" class.
var blockElements = []string{
	"div", "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
	"table", "thead", "tbody", "tr", "th", "td", "blockquote", "pre",
	"dl", "dt", "dd", "hr", "br", "nav", "aside",
}

// DefaultTag is used for paragraphs started by bare text.
const DefaultTag = "p"

var ErrNoParagraph = errors.New("no such paragraph")

// Attr is a single attribute of preserved inline element.
type Attr struct {
	Key, Val string
}

// Image is inline image preserved in paragraph text flow, links are already
// rewritten to loadable references.
type Image struct {
	Tag string
	// Src is rewritten reference, the same value is kept in Attrs.
	Src   string
	Attrs []Attr
}

// Attr returns value of the attribute or empty string.
func (i *Image) Attr(name string) string {
	for _, a := range i.Attrs {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Run is a piece of paragraph content: either text or an image.
type Run struct {
	Text  string
	Image *Image
}

// BlockNode is normalized paragraph.
type BlockNode struct {
	Tag string
	// Content is inline markup of the paragraph: escaped text with
	// serialized images in place.
	Content string
	IsBlock bool
	// Seq is render ordinal, paragraph id is Seq+1.
	Seq  int
	Runs []Run
}

// Text returns rendered text of the paragraph, images do not contribute.
func (b *BlockNode) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		if r.Image == nil {
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

// Len is length of rendered text in characters, all offsets into paragraph
// are measured in the same units.
func (b *BlockNode) Len() int {
	return utf8.RuneCountInString(b.Text())
}

// ID returns paragraph id.
func (b *BlockNode) ID() int {
	return b.Seq + 1
}

func isBlock(tag string) bool {
	return slices.Contains(blockElements, tag)
}

// ParagraphIndex is immutable ordered sequence of paragraphs of a single
// chapter. Paragraph ids start with 1, id 0 is never valid.
type ParagraphIndex struct {
	nodes []BlockNode
	// Stylesheets lists stylesheet links found in chapter head as written
	// in markup.
	Stylesheets []string
}

// Len returns number of paragraphs.
func (p *ParagraphIndex) Len() int {
	if p == nil {
		return 0
	}
	return len(p.nodes)
}

// Paragraph returns paragraph by id.
func (p *ParagraphIndex) Paragraph(id int) (*BlockNode, error) {
	if id < 1 || id > p.Len() {
		return nil, fmt.Errorf("paragraph %d (of %d): %w", id, p.Len(), ErrNoParagraph)
	}
	return &p.nodes[id-1], nil
}

// ParagraphLen returns length of paragraph rendered text.
func (p *ParagraphIndex) ParagraphLen(id int) (int, error) {
	b, err := p.Paragraph(id)
	if err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// Paragraphs iterates over paragraphs in order with their ids.
func (p *ParagraphIndex) Paragraphs() iter.Seq2[int, *BlockNode] {
	return func(yield func(int, *BlockNode) bool) {
		for i := range p.Len() {
			if !yield(i+1, &p.nodes[i]) {
				return
			}
		}
	}
}
