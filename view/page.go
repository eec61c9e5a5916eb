// Package view renders paragraph index into XHTML page and applies
// highlights to it.
package view

import (
	_ "embed"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/beevik/etree"

	"rdmark/bookmark"
	"rdmark/content"
)

//go:embed default.css
var DefaultStyle []byte

const (
	MainID           = "main"
	ContentID        = "content"
	OptimizeClass    = "optimize-content"
	MainPadding      = "padding: 8px"
	BlockClass       = "block"
	HighlightClass   = "bookmark"
	DeleteClass      = "delete"
	AttrParagraph    = "data-paragraph"
	AttrHighlight    = "data-highlight"
	AttrMark         = "data-mark"
	AttrStopsGesture = "data-stop-propagation"
)

// Options of a page.
type Options struct {
	Title string
	// Style replaces built-in stylesheet when not empty.
	Style []byte
	// Stylesheets are chapter stylesheets with references already rewritten.
	Stylesheets [][]byte
}

type highlight struct {
	start, end int
	region     bookmark.Region
}

type paragraph struct {
	node       *content.BlockNode
	el         *etree.Element
	text       string
	highlights []highlight
}

// Page is rendered chapter. Paragraph element id is paragraph render
// sequence, paragraph id is kept in data attribute.
type Page struct {
	doc        *etree.Document
	main       *etree.Element
	root       *etree.Element
	paragraphs []paragraph
	released   bool
}

// NewPage renders all paragraphs of the index in order.
func NewPage(index *content.ParagraphIndex, opts Options) *Page {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")
	head.CreateElement("title").SetText(opts.Title)

	style := opts.Style
	if len(style) == 0 {
		style = DefaultStyle
	}
	for _, css := range append([][]byte{style}, opts.Stylesheets...) {
		el := head.CreateElement("style")
		el.CreateAttr("type", "text/css")
		el.SetText(string(css))
	}

	body := html.CreateElement("body")
	p := &Page{doc: doc}
	p.main = body.CreateElement("div")
	p.main.CreateAttr("id", MainID)
	p.main.CreateAttr("style", MainPadding)
	p.root = p.main.CreateElement("div")
	p.root.CreateAttr("id", ContentID)
	p.root.CreateAttr("class", OptimizeClass)

	for _, b := range index.Paragraphs() {
		el := p.root.CreateElement(b.Tag)
		el.CreateAttr("id", strconv.Itoa(b.Seq))
		el.CreateAttr(AttrParagraph, strconv.Itoa(b.ID()))
		if !b.IsBlock {
			el.CreateAttr("class", BlockClass)
		}
		el.SetTail("\n")
		p.paragraphs = append(p.paragraphs, paragraph{node: b, el: el, text: b.Text()})
		p.fill(&p.paragraphs[len(p.paragraphs)-1])
	}
	return p
}

// Len returns number of rendered paragraphs.
func (p *Page) Len() int {
	return len(p.paragraphs)
}

func (p *Page) paragraph(id int) (*paragraph, error) {
	if id < 1 || id > len(p.paragraphs) {
		return nil, fmt.Errorf("paragraph %d is not rendered: %w", id, content.ErrNoParagraph)
	}
	return &p.paragraphs[id-1], nil
}

// Text returns rendered text of the paragraph.
func (p *Page) Text(id int) (string, error) {
	par, err := p.paragraph(id)
	if err != nil {
		return "", err
	}
	return par.text, nil
}

// Apply wraps highlighted part of the paragraph and attaches delete control
// to it. Region must be produced from the text the page shows.
func (p *Page) Apply(r bookmark.Region) error {
	par, err := p.paragraph(r.Paragraph)
	if err != nil {
		return err
	}
	if r.Text() != par.text {
		return fmt.Errorf("region of highlight %s does not match text of paragraph %d", r.Highlight.ID, r.Paragraph)
	}
	start := utf8.RuneCountInString(r.Before)
	par.highlights = append(par.highlights, highlight{
		start:  start,
		end:    start + utf8.RuneCountInString(r.Highlighted),
		region: r,
	})
	p.fill(par)
	return nil
}

// Highlights returns ids of applied highlights in document order.
func (p *Page) Highlights() []string {
	var out []string
	for _, par := range p.paragraphs {
		hs := slices.Clone(par.highlights)
		slices.SortStableFunc(hs, func(a, b highlight) int { return a.start - b.start })
		for _, h := range hs {
			out = append(out, h.region.Highlight.ID)
		}
	}
	return out
}

// fill rebuilds paragraph element content from its runs and highlights.
// Text covered by several highlights belongs to the one applied last,
// every highlight gets its delete control right after its end.
func (p *Page) fill(par *paragraph) {
	for len(par.el.Child) > 0 {
		par.el.RemoveChildAt(0)
	}

	bounds := []int{0}
	for _, h := range par.highlights {
		bounds = append(bounds, h.start, h.end)
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	done := make([]bool, len(par.highlights))
	controls := func(pos int) {
		for i, h := range par.highlights {
			if !done[i] && h.end == pos {
				done[i] = true
				addControl(par.el, h.region)
			}
		}
	}

	var pos int
	controls(pos)
	for _, run := range par.node.Runs {
		if run.Image != nil {
			addImage(par.el, run.Image)
			continue
		}
		runes := []rune(run.Text)
		for len(runes) > 0 {
			// next boundary after pos
			next := pos + len(runes)
			if i, _ := slices.BinarySearch(bounds, pos+1); i < len(bounds) {
				next = min(next, bounds[i])
			}
			piece := string(runes[:next-pos])
			runes = runes[next-pos:]

			if owner := covering(par.highlights, pos, next); owner >= 0 {
				span := par.el.CreateElement("span")
				span.CreateAttr("class", HighlightClass)
				span.CreateAttr(AttrHighlight, par.highlights[owner].region.Highlight.ID)
				span.CreateAttr(AttrMark, strconv.FormatInt(int64(par.highlights[owner].region.Highlight.Owner), 10))
				span.SetText(piece)
			} else {
				par.el.CreateText(piece)
			}
			pos = next
			controls(pos)
		}
	}
	for i, h := range par.highlights {
		if !done[i] {
			done[i] = true
			addControl(par.el, h.region)
		}
	}
}

// covering returns index of the last applied highlight covering [from, to).
func covering(hs []highlight, from, to int) int {
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i].start <= from && to <= hs[i].end {
			return i
		}
	}
	return -1
}

func addControl(el *etree.Element, r bookmark.Region) {
	btn := el.CreateElement("button")
	btn.CreateAttr("class", DeleteClass)
	btn.CreateAttr(AttrHighlight, r.Highlight.ID)
	if r.Delete.StopPropagation {
		btn.CreateAttr(AttrStopsGesture, "true")
	}
	btn.SetText(r.Delete.Label)
}

func addImage(el *etree.Element, img *content.Image) {
	ie := el.CreateElement(img.Tag)
	for _, a := range img.Attrs {
		ie.CreateAttr(a.Key, a.Val)
	}
}

// Release leaves rendering mode: optimization class and padding are removed.
// Calling it again does nothing.
func (p *Page) Release() {
	if p == nil || p.released {
		return
	}
	p.root.RemoveAttr("class")
	p.main.RemoveAttr("style")
	p.released = true
}

func (p *Page) Released() bool {
	return p == nil || p.released
}

// Bytes serializes page as XHTML document.
func (p *Page) Bytes() ([]byte, error) {
	return p.doc.WriteToBytes()
}
