package view

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"rdmark/bookmark"
	"rdmark/content"
)

func index(t *testing.T, markup string) *content.ParagraphIndex {
	t.Helper()
	opts := content.DefaultOptions()
	opts.Log = zap.NewNop()
	idx, err := content.Normalize([]byte(markup), opts)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func render(t *testing.T, p *Page) string {
	t.Helper()
	data, err := p.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// region builds rendering instruction without registry.
func region(t *testing.T, p *Page, paragraph, start, end int, id string, mark bookmark.MarkID) bookmark.Region {
	t.Helper()
	text, err := p.Text(paragraph)
	if err != nil {
		t.Fatal(err)
	}
	r, err := bookmark.NewRenderer(bookmark.NewRegistry(), func() string { return id }).
		Render(bookmark.SubRange{MarkID: mark, Paragraph: paragraph, Start: start, End: end}, text)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewPage(t *testing.T) {
	p := NewPage(index(t, `<body><div><h1>Title</h1><p>Hello <b>world</b></p><span>inline</span></div></body>`),
		Options{Title: "Chapter", Stylesheets: [][]byte{[]byte("p { margin: 0 }")}})

	if p.Len() != 3 {
		t.Fatalf("Len() = %d", p.Len())
	}
	out := render(t, p)
	for _, want := range []string{
		`<title>Chapter</title>`,
		`p { margin: 0 }`,
		`span.bookmark`,
		`<div id="main" style="padding: 8px"><div id="content" class="optimize-content">`,
		`<h1 id="0" data-paragraph="1">Title</h1>`,
		`<p id="1" data-paragraph="2">Helloworld</p>`,
		`<span id="2" data-paragraph="3" class="block">inline</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page does not contain %q:\n%s", want, out)
		}
	}
}

func TestPage_Apply(t *testing.T) {
	t.Run("whole_paragraph", func(t *testing.T) {
		p := NewPage(index(t, `<body><div><p>Hello world</p></div></body>`), Options{})
		if err := p.Apply(region(t, p, 1, 0, 11, "AAAA", 3)); err != nil {
			t.Fatal(err)
		}
		want := `<p id="0" data-paragraph="1"><span class="bookmark" data-highlight="AAAA" data-mark="3">Hello world</span>` +
			`<button class="delete" data-highlight="AAAA" data-stop-propagation="true">Delete</button></p>`
		if out := render(t, p); !strings.Contains(out, want) {
			t.Errorf("page:\n%s\nwant\n%s", out, want)
		}
	})

	t.Run("middle_with_image", func(t *testing.T) {
		p := NewPage(index(t, `<body><div><p>See <img src="a.png"/> the picture</p></div></body>`), Options{})
		text, _ := p.Text(1)
		if text != "Seethe picture" {
			t.Fatalf("text = %q", text)
		}
		if err := p.Apply(region(t, p, 1, 3, 6, "B", 1)); err != nil {
			t.Fatal(err)
		}
		want := `<p id="0" data-paragraph="1">See<img src="a.png"/><span class="bookmark" data-highlight="B" data-mark="1">the</span>` +
			`<button class="delete" data-highlight="B" data-stop-propagation="true">Delete</button> picture</p>`
		if out := render(t, p); !strings.Contains(out, want) {
			t.Errorf("page:\n%s\nwant\n%s", out, want)
		}
	})

	t.Run("overlapping", func(t *testing.T) {
		p := NewPage(index(t, `<body><div><p>abcdef</p></div></body>`), Options{})
		if err := p.Apply(region(t, p, 1, 0, 4, "X", 1)); err != nil {
			t.Fatal(err)
		}
		if err := p.Apply(region(t, p, 1, 2, 6, "Y", 2)); err != nil {
			t.Fatal(err)
		}
		want := `<span class="bookmark" data-highlight="X" data-mark="1">ab</span>` +
			`<span class="bookmark" data-highlight="Y" data-mark="2">cd</span>` +
			`<button class="delete" data-highlight="X" data-stop-propagation="true">Delete</button>` +
			`<span class="bookmark" data-highlight="Y" data-mark="2">ef</span>` +
			`<button class="delete" data-highlight="Y" data-stop-propagation="true">Delete</button>`
		if out := render(t, p); !strings.Contains(out, want) {
			t.Errorf("page:\n%s\nwant\n%s", out, want)
		}
		if got := strings.Join(p.Highlights(), ","); got != "X,Y" {
			t.Errorf("Highlights() = %s", got)
		}
	})

	t.Run("empty_range", func(t *testing.T) {
		p := NewPage(index(t, `<body><div><p>abc</p></div></body>`), Options{})
		if err := p.Apply(region(t, p, 1, 0, 0, "Z", 1)); err != nil {
			t.Fatal(err)
		}
		want := `<p id="0" data-paragraph="1"><button class="delete" data-highlight="Z" data-stop-propagation="true">Delete</button>abc</p>`
		if out := render(t, p); !strings.Contains(out, want) {
			t.Errorf("page:\n%s\nwant\n%s", out, want)
		}
	})

	t.Run("stale_region", func(t *testing.T) {
		p := NewPage(index(t, `<body><div><p>abc</p></div></body>`), Options{})
		r := region(t, p, 1, 0, 1, "S", 1)
		r.After = "changed"
		if err := p.Apply(r); err == nil {
			t.Error("Apply() accepted region for different text")
		}
		r.Paragraph = 2
		if err := p.Apply(r); err == nil {
			t.Error("Apply() accepted unknown paragraph")
		}
	})
}

func TestPage_Release(t *testing.T) {
	p := NewPage(index(t, `<body><div><p>abc</p></div></body>`), Options{})
	if p.Released() {
		t.Fatal("new page is released")
	}
	for range 2 {
		p.Release()
		out := render(t, p)
		if strings.Contains(out, OptimizeClass+`"`) || strings.Contains(out, MainPadding) {
			t.Errorf("rendering mode is still on:\n%s", out)
		}
		if !strings.Contains(out, `<div id="main"><div id="content">`) {
			t.Errorf("page structure changed:\n%s", out)
		}
	}

	var nilPage *Page
	nilPage.Release()
	if !nilPage.Released() {
		t.Error("nil page must be released")
	}
}

func TestGesture(t *testing.T) {
	if DoubleClick.String() != "doubleclick" || Click.String() != "click" || Gesture(7).String() != "unknown" {
		t.Error("unexpected gesture names")
	}
}
