package content

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"rdmark/resource"
)

// Linker converts link found in chapter markup into loadable reference.
type Linker interface {
	Link(target string) string
}

// Options control normalization.
type Options struct {
	// Links rewrites image references, nil keeps them intact.
	Links         Linker
	ImageSuffixes []string
	// DropTags lists paragraph tags removed from the result.
	DropTags []string
	// MergeTags lists paragraph tags appended to previous paragraph when it
	// has text.
	MergeTags []string
	Log       *zap.Logger
}

// DefaultOptions returns options matching built-in configuration.
func DefaultOptions() Options {
	return Options{
		ImageSuffixes: []string{".png", ".jpg", ".jpeg", ".gif"},
		DropTags:      []string{"aside"},
		MergeTags:     []string{"small"},
		Log:           zap.NewNop(),
	}
}

var (
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	xmlEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)
)

// Normalize builds paragraph index from raw chapter markup. It never modifies
// raw, so the same input always yields the same index.
func Normalize(raw []byte, opts Options) (*ParagraphIndex, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	r, err := decoder(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode chapter markup: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse chapter markup: %w", err)
	}

	root := findElement(doc, atom.Body)
	if root == nil {
		root = doc
	}

	n := normalizer{opts: &opts}
	for c := range root.ChildNodes() {
		if c.Type != html.ElementNode {
			continue
		}
		n.traverse(c, 1)
		n.index++
	}

	index := &ParagraphIndex{nodes: n.compact()}
	if head := findElement(doc, atom.Head); head != nil {
		index.Stylesheets = stylesheets(head)
	}

	opts.Log.Debug("Chapter normalized",
		zap.Int("slots", len(n.slots)),
		zap.Int("paragraphs", index.Len()),
		zap.Int("images", n.images),
		zap.Int("dropped", n.dropped),
		zap.Int("merged", n.merged))
	return index, nil
}

// decoder honors BOM and XML declaration, anything else is expected to be
// UTF-8 as EPUB requires.
func decoder(raw []byte) (io.Reader, error) {
	switch {
	case bytes.HasPrefix(raw, utf8BOM):
		return bytes.NewReader(raw[len(utf8BOM):]), nil
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}), bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return charset.NewReader(bytes.NewReader(raw), "")
	}
	label := "utf-8"
	if m := xmlEncoding.FindSubmatch(raw); m != nil {
		label = string(m[1])
	}
	return charset.NewReaderLabel(label, bytes.NewReader(raw))
}

type normalizer struct {
	opts *Options
	// sparse, slot is taken for every depth 1 node with text and one more
	// is skipped after each top level element
	slots []*BlockNode
	index int

	images, dropped, merged int
}

func (n *normalizer) current() *BlockNode {
	if n.index < len(n.slots) {
		return n.slots[n.index]
	}
	return nil
}

func (n *normalizer) start(tag string) {
	n.index++
	for len(n.slots) <= n.index {
		n.slots = append(n.slots, nil)
	}
	n.slots[n.index] = &BlockNode{Tag: tag}
}

func (n *normalizer) traverse(node *html.Node, depth int) {
	for c := range node.ChildNodes() {
		if ignored(c) {
			continue
		}
		if depth == 1 && len(strings.TrimSpace(textContent(c))) > 0 {
			var tag string
			if c.Type == html.ElementNode {
				tag = c.Data
			}
			n.start(tag)
		}

		switch {
		case c.Type == html.TextNode:
			n.appendText(c.Data)
		case c.Type == html.ElementNode && c.FirstChild == nil:
			n.appendLeaf(c)
		}
		n.traverse(c, depth+1)
	}
}

// appendText adds trimmed text to the current paragraph. Pieces are joined
// as is, offsets only depend on the text nodes of the markup.
func (n *normalizer) appendText(s string) {
	cur := n.current()
	if cur == nil {
		return
	}
	if t := strings.TrimSpace(s); len(t) > 0 {
		cur.appendRun(Run{Text: t})
	}
}

func (n *normalizer) appendLeaf(el *html.Node) {
	cur := n.current()
	if cur == nil {
		return
	}

	idx := referenceAttr(el)
	if idx < 0 || !resource.HasImageSuffix(el.Attr[idx].Val, n.opts.ImageSuffixes) {
		return
	}

	src := el.Attr[idx].Val
	if n.opts.Links != nil {
		src = n.opts.Links.Link(src)
	}
	img := &Image{Tag: strings.ToLower(el.Data), Attrs: make([]Attr, 0, len(el.Attr))}
	for i, a := range el.Attr {
		key := a.Key
		if len(a.Namespace) > 0 {
			key = a.Namespace + ":" + a.Key
		}
		if i == idx {
			a.Val = src
		}
		img.Attrs = append(img.Attrs, Attr{Key: key, Val: a.Val})
	}
	img.Src = src
	cur.appendRun(Run{Image: img})
	n.images++
}

func (b *BlockNode) appendRun(r Run) {
	if last := len(b.Runs) - 1; r.Image == nil && last >= 0 && b.Runs[last].Image == nil {
		b.Runs[last].Text += r.Text
		return
	}
	b.Runs = append(b.Runs, r)
}

// compact drops empty slots and applies tag policies, result is ordered by
// render sequence.
func (n *normalizer) compact() []BlockNode {
	out := make([]BlockNode, 0, len(n.slots))
	for _, b := range n.slots {
		if b == nil {
			continue
		}
		tag := strings.ToLower(b.Tag)
		if len(tag) == 0 {
			tag = DefaultTag
		}
		if slices.Contains(n.opts.DropTags, tag) {
			n.dropped++
			continue
		}
		if slices.Contains(n.opts.MergeTags, tag) && len(out) > 0 && len(out[len(out)-1].Text()) > 0 {
			prev := &out[len(out)-1]
			for _, r := range b.Runs {
				prev.appendRun(r)
			}
			n.merged++
			continue
		}
		b.Tag = tag
		b.IsBlock = isBlock(tag)
		b.Seq = len(out)
		out = append(out, *b)
	}
	for i := range out {
		out[i].Content = serialize(out[i].Runs)
	}
	return out
}

func serialize(runs []Run) string {
	var buf bytes.Buffer
	for _, r := range runs {
		if r.Image == nil {
			buf.WriteString(html.EscapeString(r.Text))
			continue
		}
		node := &html.Node{Type: html.ElementNode, Data: r.Image.Tag, DataAtom: atom.Lookup([]byte(r.Image.Tag))}
		for _, a := range r.Image.Attrs {
			node.Attr = append(node.Attr, html.Attribute{Key: a.Key, Val: a.Val})
		}
		// rendering into memory never fails
		_ = html.Render(&buf, node)
	}
	return buf.String()
}

// referenceAttr returns index of resource reference attribute, src wins over
// href which wins over SVG cross reference.
func referenceAttr(el *html.Node) int {
	found := -1
	rank := 0
	for i, a := range el.Attr {
		var r int
		switch {
		case a.Namespace == "" && a.Key == "src":
			r = 3
		case a.Namespace == "" && a.Key == "href":
			r = 2
		case a.Namespace == "xlink" && a.Key == "href", a.Namespace == "" && a.Key == "xlink:href":
			r = 1
		}
		if r > rank {
			found, rank = i, r
		}
	}
	return found
}

func ignored(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return false
	case html.ElementNode:
		return n.DataAtom == atom.Script || n.DataAtom == atom.Style
	}
	return true
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode && (d.Parent == nil || !ignored(d.Parent)) {
			sb.WriteString(d.Data)
		}
	}
	return sb.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	for d := range n.Descendants() {
		if d.Type == html.ElementNode && d.DataAtom == a {
			return d
		}
	}
	return nil
}

func stylesheets(head *html.Node) []string {
	var out []string
	for d := range head.Descendants() {
		if d.Type != html.ElementNode || d.DataAtom != atom.Link {
			continue
		}
		var rel, href string
		for _, a := range d.Attr {
			switch a.Key {
			case "rel":
				rel = strings.ToLower(a.Val)
			case "href":
				href = a.Val
			}
		}
		if len(href) > 0 && slices.Contains(strings.Fields(rel), "stylesheet") {
			out = append(out, href)
		}
	}
	return out
}
