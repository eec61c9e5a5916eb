package epub

import (
	"path"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

type tocEntry struct {
	label string
	path  string
}

// loadTOC reads navigation document of EPUB 3 or NCX of EPUB 2, flattened in
// reading order. Books without usable navigation give nothing.
func (b *Book) loadTOC(spine *etree.Element) []tocEntry {
	for _, item := range b.Manifest {
		if !hasProperty(item.Properties, "nav") {
			continue
		}
		entries, err := b.readNav(item.Path)
		if err != nil {
			b.log.Warn("Unable to read navigation document", zap.String("path", item.Path), zap.Error(err))
			break
		}
		if len(entries) > 0 {
			return entries
		}
	}

	ncx, ok := b.itemByID(spine.SelectAttrValue("toc", ""))
	if !ok {
		idx := slices.IndexFunc(b.Manifest, func(i Item) bool { return i.MediaType == mimetypeNCX })
		if idx < 0 {
			return nil
		}
		ncx = &b.Manifest[idx]
	}
	entries, err := b.readNCX(ncx.Path)
	if err != nil {
		b.log.Warn("Unable to read NCX", zap.String("path", ncx.Path), zap.Error(err))
		return nil
	}
	return entries
}

func (b *Book) readNav(name string) ([]tocEntry, error) {
	doc, err := b.readXML(name)
	if err != nil {
		return nil, err
	}
	var nav *etree.Element
	for el := range doc.FindElementsSeq("//nav") {
		if hasProperty(el.SelectAttrValue("epub:type", ""), "toc") {
			nav = el
			break
		}
	}
	if nav == nil {
		return nil, nil
	}

	var entries []tocEntry
	for a := range nav.FindElementsSeq(".//a[@href]") {
		entries = append(entries, tocEntry{
			label: collapse(textOf(a)),
			path:  resolveHref(path.Dir(name), a.SelectAttrValue("href", "")),
		})
	}
	return entries, nil
}

func (b *Book) readNCX(name string) ([]tocEntry, error) {
	doc, err := b.readXML(name)
	if err != nil {
		return nil, err
	}
	navMap := doc.FindElement("//navMap")
	if navMap == nil {
		return nil, nil
	}

	var entries []tocEntry
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for np := range el.SelectElementsSeq("navPoint") {
			if content := np.SelectElement("content"); content != nil {
				var label string
				if text := np.FindElement("navLabel/text"); text != nil {
					label = collapse(text.Text())
				}
				entries = append(entries, tocEntry{
					label: label,
					path:  resolveHref(path.Dir(name), content.SelectAttrValue("src", "")),
				})
			}
			walk(np)
		}
	}
	walk(navMap)
	return entries, nil
}

// buildChapters maps table of contents on reading order. Entry pointing into
// already listed document or outside of reading order is skipped. Without
// table of contents every spine document is a chapter.
func (b *Book) buildChapters(entries []tocEntry) []Chapter {
	var chapters []Chapter
	if len(entries) == 0 {
		for i, p := range b.Spine {
			chapters = append(chapters, Chapter{Index: i, Path: p, Spine: i})
		}
		return chapters
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		spine := slices.Index(b.Spine, e.path)
		if spine < 0 {
			b.log.Debug("Table of contents entry is not in reading order", zap.String("path", e.path))
			continue
		}
		if seen[e.path] {
			continue
		}
		seen[e.path] = true
		chapters = append(chapters, Chapter{Index: len(chapters), Label: e.label, Path: e.path, Spine: spine})
	}
	return chapters
}

func textOf(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range el.Child {
		switch v := t.(type) {
		case *etree.CharData:
			sb.WriteString(v.Data)
		case *etree.Element:
			sb.WriteString(textOf(v))
		}
	}
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
