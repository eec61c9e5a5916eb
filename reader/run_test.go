package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"

	"rdmark/common"
	"rdmark/config"
	"rdmark/epub"
	"rdmark/state"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

var bookFiles = []struct {
	name, data string
}{
	{"mimetype", "application/epub+zip"},
	{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
	{"OEBPS/content.opf", `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>Author</dc:creator>
    <dc:language>en</dc:language>
    <meta name="cover" content="pic"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="Text/ch01.xhtml" media-type="application/xhtml+xml"/>
    <item id="pic" href="Images/pic.png" media-type="image/png"/>
    <item id="css" href="Styles/style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx"><itemref idref="c1"/></spine>
</package>`},
	{"OEBPS/toc.ncx", `<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1"><navMap>
  <navPoint id="n1" playOrder="1"><navLabel><text>Chapter One</text></navLabel><content src="Text/ch01.xhtml"/></navPoint>
</navMap></ncx>`},
	{"OEBPS/Text/ch01.xhtml", `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>One</title>
<link rel="stylesheet" type="text/css" href="../Styles/style.css"/></head>
<body><div>
<h1>Chapter One</h1>
<p>Hello world</p>
<p>See <img src="../Images/pic.png" alt=""/> picture</p>
</div></body></html>`},
	{"OEBPS/Styles/style.css", `h1 { background: url('../Images/pic.png') }`},
	{"OEBPS/Images/pic.png", string(pngData)},
}

func writeBook(t *testing.T) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, file := range bookFiles {
		fw, err := w.Create(file.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(file.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	dir := t.TempDir()
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = testLogger(t)
	env.Cfg = &config.Config{
		Version: 1,
		Reader: config.ReaderConfig{
			DataDir:               filepath.Join(dir, "data"),
			PathStyle:             common.PathStylePosix,
			ResourceScheme:        common.ResourceSchemeFile,
			ImageSuffixes:         []string{".png", ".jpg", ".jpeg", ".gif"},
			DropTags:              []string{"aside"},
			MergeTags:             []string{"small"},
			OutputNameTemplate:    `{{ .Title }}-{{ printf "%03d" .Chapter }}`,
			FileNameTransliterate: true,
		},
		Storage: config.StorageConfig{Database: filepath.Join(dir, "reader.db")},
	}
	return ctx
}

func run(t *testing.T, ctx context.Context, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	app := &cli.Command{
		Name:     "rdmark",
		Writer:   &out,
		Commands: Commands(),
	}
	if err := app.Run(ctx, append([]string{"rdmark"}, args...)); err != nil {
		t.Fatalf("%s: error = %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestCommands(t *testing.T) {
	ctx := testContext(t)
	cfg := &state.EnvFromContext(ctx).Cfg.Reader
	src := writeBook(t)
	id := bookID(t, src)

	out := run(t, ctx, "books", "add", src)
	if out != id+"\tTest Book\n" {
		t.Fatalf("books add = %q", out)
	}
	for _, name := range []string{
		filepath.Join(cfg.BooksDir(), id+".epub"),
		filepath.Join(cfg.CoversDir(), id+".png"),
		filepath.Join(cfg.BookResourcesDir(id), "OEBPS", "Images", "pic.png"),
	} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("imported file is missing: %v", err)
		}
	}

	if out := run(t, ctx, "books", "list"); !strings.HasPrefix(out, id+"\tTest Book\tAuthor\ten\t") {
		t.Errorf("books list = %q", out)
	}
	if out := run(t, ctx, "chapters", id); !strings.Contains(out, "0\tChapter One\tOEBPS/Text/ch01.xhtml\n") {
		t.Errorf("chapters = %q", out)
	}

	if out := run(t, ctx, "mark", "add", id, "0", "2"); out != "1\t0:2:0-0:2:11\t\"Hello world\"\n" {
		t.Errorf("mark add = %q", out)
	}
	if out := run(t, ctx, "mark", "add", id, "0", "1:8", "2:5"); out != "2\t0:1:8-0:2:5\t\"One Hello\"\n" {
		t.Errorf("mark add range = %q", out)
	}

	out = run(t, ctx, "mark", "list", id, "0")
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 ||
		!strings.HasPrefix(lines[0], "1\t0:2:0-0:2:11\t") || !strings.HasPrefix(lines[1], "2\t0:1:8-0:2:5\t") {
		t.Errorf("mark list = %q", out)
	}
	// whole book is listed in reading order
	out = run(t, ctx, "mark", "list", src)
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[0], "2\t") {
		t.Errorf("mark list for book = %q", out)
	}

	dst := t.TempDir()
	run(t, ctx, "render", id, "0", dst)
	page, err := os.ReadFile(filepath.Join(dst, "test-book-000.xhtml"))
	if err != nil {
		t.Fatal(err)
	}
	resources := "file://" + filepath.ToSlash(cfg.BookResourcesDir(id)) + "/OEBPS/Images/pic.png"
	for _, want := range []string{
		// later bookmark owns the overlapped part
		`data-mark="2">One</span>`,
		`data-mark="2">Hello</span>`,
		`data-mark="1"> world</span>`,
		`src="` + resources + `"`,
		`url(&quot;` + resources + `&quot;)`,
		`class="optimize-content"`,
	} {
		if !strings.Contains(string(page), want) {
			t.Errorf("rendered page does not contain %q\n%s", want, page)
		}
	}

	run(t, ctx, "mark", "delete", id, "0", "1")
	out = run(t, ctx, "mark", "list", id)
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.HasPrefix(lines[0], "2\t") {
		t.Errorf("mark list after delete = %q", out)
	}

	run(t, ctx, "render", "--release", "--overwrite", id, "0", dst)
	page, err = os.ReadFile(filepath.Join(dst, "test-book-000.xhtml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(page), `class="optimize-content"`) || strings.Contains(string(page), `data-mark="1"`) {
		t.Errorf("unexpected page after release and delete:\n%s", page)
	}
}

func bookID(t *testing.T, name string) string {
	t.Helper()
	b, err := epub.Open(name, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	return b.ID
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in        string
		paragraph int
		offset    int
		wantErr   bool
	}{
		{"3", 3, -1, false},
		{"3:0", 3, 0, false},
		{"12:45", 12, 45, false},
		{"x", 0, 0, true},
		{"3:", 0, 0, true},
		{"3:y", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, o, err := parsePosition(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePosition(%q) error = %v", tt.in, err)
			}
			if p != tt.paragraph || o != tt.offset {
				t.Errorf("parsePosition(%q) = %d, %d", tt.in, p, o)
			}
		})
	}
}

func TestBuildOutputPath(t *testing.T) {
	ctx := testContext(t)
	env := state.EnvFromContext(ctx)
	book := &epub.Book{ID: "id", Metadata: epub.Metadata{Title: "Война и мир", Creator: "Толстой"}}
	chapter := &epub.Chapter{Index: 7, Label: "Part 1"}

	tests := []struct {
		name          string
		template      string
		transliterate bool
		want          string
	}{
		{"default_template", `{{ .Title }}-{{ printf "%03d" .Chapter }}`, true, "voina-i-mir-007.xhtml"},
		{"subdirectories", `{{ .Creator }}/{{ .Label }}`, false, filepath.Join("Толстой", "Part 1.xhtml")},
		{"no_template", ``, true, "id-007.xhtml"},
		{"broken_template", `{{ .Missing`, true, "id-007.xhtml"},
		{"empty_expansion", `{{ "" }}`, true, "id-007.xhtml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Cfg.Reader.OutputNameTemplate = tt.template
			env.Cfg.Reader.FileNameTransliterate = tt.transliterate
			if got := buildOutputPath(book, chapter, "/out", env); got != filepath.Join("/out", tt.want) {
				t.Errorf("buildOutputPath() = %q, want %q", got, filepath.Join("/out", tt.want))
			}
		})
	}
}
