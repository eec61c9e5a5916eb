// Package resource maps links found in book markup to files extracted under
// the book resource root and to references a rendered page can load.
package resource

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rdmark/common"
)

// schemes which may prefix links inside chapter markup.
var linkSchemes = []string{"epub://", "file://"}

// Rewriter joins resource paths according to configured separator style and
// produces loadable references.
type Rewriter struct {
	style  common.PathStyle
	scheme common.ResourceScheme
}

func NewRewriter(style common.PathStyle, scheme common.ResourceScheme) *Rewriter {
	return &Rewriter{style: style, scheme: scheme}
}

// Rewrite produces absolute resource path for link relative to the book
// resource root. Scheme prefix is removed and path may not escape the root.
func (r *Rewriter) Rewrite(root, rel string) string {
	sep := r.style.Separator(os.PathSeparator)

	rel = StripScheme(rel)
	rel = strings.TrimLeft(path.Clean("/"+filepath.ToSlash(rel)), "/")

	root = strings.TrimRight(root, `/\`)
	if len(rel) == 0 {
		return root
	}
	if sep != '/' {
		rel = strings.ReplaceAll(rel, "/", string(sep))
	}
	return root + string(sep) + rel
}

// Loadable converts absolute path into reference for the rendered page.
func (r *Rewriter) Loadable(abs string) string {
	switch r.scheme {
	case common.ResourceSchemeAsset:
		return "asset://localhost/" + url.PathEscape(abs)
	default:
		p := strings.ReplaceAll(abs, `\`, "/")
		if !strings.HasPrefix(p, "/") {
			// drive letter
			p = "/" + p
		}
		return (&url.URL{Scheme: "file", Path: p}).String()
	}
}

// ForChapter binds rewriter to a chapter of a book, so links may be resolved
// relative to the chapter location inside the book.
func (r *Rewriter) ForChapter(root, chapterPath string) *ChapterLinker {
	return &ChapterLinker{rw: r, root: root, dir: path.Dir(chapterPath)}
}

// ChapterLinker rewrites links of a single chapter.
type ChapterLinker struct {
	rw   *Rewriter
	root string
	dir  string
}

// Link returns loadable reference for link as found in chapter markup.
func (c *ChapterLinker) Link(link string) string {
	return c.rw.Loadable(c.rw.Rewrite(c.root, Resolve(c.dir, link)))
}

// Resolve makes link relative to the book root, links with scheme are
// considered to be rooted already.
func Resolve(dir, link string) string {
	if stripped := StripScheme(link); stripped != link {
		return stripped
	}
	if i := strings.IndexAny(link, "#?"); i >= 0 {
		link = link[:i]
	}
	if strings.HasPrefix(link, "/") || dir == "." || len(dir) == 0 {
		return link
	}
	return path.Join(dir, link)
}

func StripScheme(link string) string {
	for _, s := range linkSchemes {
		if len(link) >= len(s) && strings.EqualFold(link[:len(s)], s) {
			return link[len(s):]
		}
	}
	return link
}

// HasImageSuffix checks link target against list of image suffixes, case
// insensitive.
func HasImageSuffix(link string, suffixes []string) bool {
	if i := strings.IndexAny(link, "#?"); i >= 0 {
		link = link[:i]
	}
	link = strings.ToLower(link)
	for _, s := range suffixes {
		if strings.HasSuffix(link, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
