package content

import (
	"rdmark/utils/debug"
)

// String returns readable dump of the index for manual inspection.
func (p *ParagraphIndex) String() string {
	if p == nil {
		return "<nil ParagraphIndex>"
	}
	tw := debug.NewTreeWriter()
	tw.Line(0, "Paragraphs: %d", p.Len())
	for _, href := range p.Stylesheets {
		tw.Line(1, "Stylesheet %q", href)
	}
	for id, b := range p.Paragraphs() {
		tw.Line(1, "Paragraph[%d] seq[%d] tag[%s] block[%t] len[%d]", id, b.Seq, b.Tag, b.IsBlock, b.Len())
		for _, r := range b.Runs {
			if r.Image != nil {
				tw.Line(2, "Image <%s> %q", r.Image.Tag, r.Image.Src)
				continue
			}
			tw.TextBlock(2, "Text", r.Text)
		}
	}
	return tw.String()
}
