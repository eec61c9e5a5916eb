// Package epub reads EPUB books: metadata, reading order and chapter markup.
package epub

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"

	"rdmark/archive"
)

const (
	containerPath = "META-INF/container.xml"
	mimetypeNCX   = "application/x-dtbncx+xml"
)

var (
	ErrNoChapter = errors.New("no such chapter")

	errStopWalk = errors.New("stop walk")
)

// Item is a manifest entry, Path is relative to the book root.
type Item struct {
	ID         string
	Path       string
	MediaType  string
	Properties string
}

// IsImage reports if item is declared as image.
func (i *Item) IsImage() bool {
	return strings.HasPrefix(i.MediaType, "image/")
}

// Chapter is a readable unit of the book. Index is 0 based position in the
// table of contents.
type Chapter struct {
	Index int
	Label string
	Path  string
	// Spine is position of chapter document in reading order.
	Spine int
}

// Metadata carries Dublin Core values, repeated elements are joined with
// comma.
type Metadata struct {
	Title       string
	Creator     string
	Date        string
	Publisher   string
	Language    language.Tag
	Subject     string
	Description string
}

// Book is opened EPUB file.
type Book struct {
	// ID is derived from file content, the same book always gets the same
	// id regardless of its location.
	ID   string
	Hash string
	Path string
	Metadata

	Manifest []Item
	Spine    []string
	Chapters []Chapter
	// Cover is path of the cover image, empty when book has none.
	Cover string

	container *archive.Container
	opfPath   string
	log       *zap.Logger
}

// Open reads book structure. Chapter markup is read on demand, so book must
// be closed when no longer needed.
func Open(name string, log *zap.Logger) (*Book, error) {
	hash, err := fileHash(name)
	if err != nil {
		return nil, err
	}
	c, err := archive.Open(name)
	if err != nil {
		return nil, err
	}

	b := &Book{
		ID:        BookID(hash),
		Hash:      hash,
		Path:      name,
		container: c,
		log:       log.Named("epub"),
	}
	if err := b.load(); err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to load book (%s): %w", name, err)
	}
	b.log.Debug("Book opened",
		zap.String("id", b.ID),
		zap.String("title", b.Title),
		zap.Int("manifest", len(b.Manifest)),
		zap.Int("spine", len(b.Spine)),
		zap.Int("chapters", len(b.Chapters)))
	return b, nil
}

// BookID returns book identity for content hash.
func BookID(hash string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:sha256:"+hash)).String()
}

func fileHash(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", fmt.Errorf("unable to open book: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("unable to read book (%s): %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b *Book) Close() error {
	return b.container.Close()
}

// BookID returns book identity, same as ID.
func (b *Book) BookID() string {
	return b.ID
}

// ReadFile returns content of a file in the book.
func (b *Book) ReadFile(name string) ([]byte, error) {
	return b.container.ReadFile(name)
}

// Chapter returns chapter by 0 based index.
func (b *Book) Chapter(index int) (*Chapter, error) {
	if index < 0 || index >= len(b.Chapters) {
		return nil, fmt.Errorf("chapter %d (of %d): %w", index, len(b.Chapters), ErrNoChapter)
	}
	return &b.Chapters[index], nil
}

// ChapterMarkup returns raw markup of the chapter as stored in the book.
func (b *Book) ChapterMarkup(index int) ([]byte, error) {
	ch, err := b.Chapter(index)
	if err != nil {
		return nil, err
	}
	return b.container.ReadFile(ch.Path)
}

// Item finds manifest entry by path.
func (b *Book) Item(p string) (*Item, bool) {
	for i := range b.Manifest {
		if b.Manifest[i].Path == p {
			return &b.Manifest[i], true
		}
	}
	return nil, false
}

func (b *Book) itemByID(id string) (*Item, bool) {
	for i := range b.Manifest {
		if b.Manifest[i].ID == id {
			return &b.Manifest[i], true
		}
	}
	return nil, false
}

func (b *Book) readXML(name string) (*etree.Document, error) {
	data, err := b.container.ReadFile(name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	return doc, nil
}

func (b *Book) load() error {
	opfPath, err := b.packagePath()
	if err != nil {
		return err
	}
	b.opfPath = opfPath

	opf, err := b.readXML(b.opfPath)
	if err != nil {
		return err
	}
	pkg := opf.Root()
	if pkg == nil || pkg.Tag != "package" {
		return fmt.Errorf("%s is not a package document", b.opfPath)
	}

	b.loadMetadata(pkg.SelectElement("metadata"))
	b.loadManifest(pkg.SelectElement("manifest"))

	spine := pkg.SelectElement("spine")
	if spine == nil {
		return fmt.Errorf("%s has no spine", b.opfPath)
	}
	for ref := range spine.SelectElementsSeq("itemref") {
		item, ok := b.itemByID(ref.SelectAttrValue("idref", ""))
		if !ok {
			b.log.Warn("Spine references unknown manifest item", zap.String("idref", ref.SelectAttrValue("idref", "")))
			continue
		}
		b.Spine = append(b.Spine, item.Path)
	}
	if len(b.Spine) == 0 {
		return errors.New("book has empty reading order")
	}

	b.Cover = b.findCover(pkg)
	b.Chapters = b.buildChapters(b.loadTOC(spine))
	return nil
}

// packagePath reads package document location from container.xml. Books
// with missing or broken container get the first .opf entry of the archive.
func (b *Book) packagePath() (string, error) {
	doc, err := b.readXML(containerPath)
	if err == nil {
		if rootfile := doc.FindElement("//rootfiles/rootfile[@full-path]"); rootfile != nil {
			return rootfile.SelectAttrValue("full-path", ""), nil
		}
		err = fmt.Errorf("%s does not point to package document", containerPath)
	}

	var found string
	walkErr := b.container.Walk("", func(f *zip.File) error {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			found = f.Name
			return errStopWalk
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		return "", walkErr
	}
	if len(found) == 0 {
		return "", err
	}
	b.log.Warn("Unusable container, using first package document found",
		zap.String("container", b.container.Name()), zap.String("package", found), zap.NamedError("reason", err))
	return found, nil
}

func (b *Book) loadMetadata(md *etree.Element) {
	if md == nil {
		return
	}
	values := func(tag string) string {
		var out []string
		for el := range md.SelectElementsSeq(tag) {
			if t := strings.TrimSpace(el.Text()); len(t) > 0 {
				out = append(out, t)
			}
		}
		return strings.Join(out, ",")
	}
	b.Title = values("title")
	b.Creator = values("creator")
	b.Date = values("date")
	b.Publisher = values("publisher")
	b.Subject = values("subject")
	b.Description = values("description")

	b.Language = language.Und
	if el := md.SelectElement("language"); el != nil {
		tag, err := language.Parse(strings.TrimSpace(el.Text()))
		if err != nil {
			b.log.Warn("Unable to parse book language", zap.String("language", el.Text()), zap.Error(err))
		} else {
			b.Language = tag
		}
	}
}

func (b *Book) loadManifest(manifest *etree.Element) {
	if manifest == nil {
		return
	}
	for el := range manifest.SelectElementsSeq("item") {
		href := el.SelectAttrValue("href", "")
		if len(href) == 0 {
			continue
		}
		b.Manifest = append(b.Manifest, Item{
			ID:         el.SelectAttrValue("id", ""),
			Path:       resolveHref(path.Dir(b.opfPath), href),
			MediaType:  el.SelectAttrValue("media-type", ""),
			Properties: el.SelectAttrValue("properties", ""),
		})
	}
}

// findCover looks for EPUB 3 cover-image property first, then for EPUB 2
// cover meta.
func (b *Book) findCover(pkg *etree.Element) string {
	for _, item := range b.Manifest {
		if item.IsImage() && hasProperty(item.Properties, "cover-image") {
			return item.Path
		}
	}
	if md := pkg.SelectElement("metadata"); md != nil {
		for meta := range md.SelectElementsSeq("meta") {
			if meta.SelectAttrValue("name", "") != "cover" {
				continue
			}
			if item, ok := b.itemByID(meta.SelectAttrValue("content", "")); ok && item.IsImage() {
				return item.Path
			}
		}
	}
	return ""
}

// resolveHref turns manifest or toc reference into path relative to the book
// root, fragment is dropped.
func resolveHref(dir, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	return strings.TrimPrefix(path.Clean(path.Join("/", dir, href)), "/")
}

func hasProperty(props, name string) bool {
	for p := range strings.FieldsSeq(props) {
		if p == name {
			return true
		}
	}
	return false
}
