package epub

import (
	"rdmark/utils/debug"
)

func (b *Book) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Book[%s] hash[%s]", b.ID, b.Hash)
	tw.TextBlock(1, "Title", b.Title)
	tw.TextBlock(1, "Creator", b.Creator)
	tw.Line(1, "Language: %s", b.Language)
	tw.Line(1, "Cover: %q", b.Cover)

	tw.Line(1, "Chapters: %d", len(b.Chapters))
	for _, ch := range b.Chapters {
		tw.Line(2, "Chapter[%d] spine[%d] path[%s] label[%s]", ch.Index, ch.Spine, ch.Path, ch.Label)
	}

	paths := make([]string, 0, len(b.Manifest))
	items := make(map[string]Item, len(b.Manifest))
	var images []string
	for _, item := range b.Manifest {
		paths = append(paths, item.Path)
		items[item.Path] = item
		if item.IsImage() {
			images = append(images, item.Path)
		}
	}
	tw.Line(1, "Manifest: %d", len(paths))
	for _, p := range debug.Sorted(paths) {
		tw.Line(2, "Item[%s] id[%s] type[%s]", p, items[p].ID, items[p].MediaType)
	}
	tw.List(1, "Images", images)
	return tw.String()
}
