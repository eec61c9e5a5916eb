package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rdmark/bookmark"
	"rdmark/epub"
)

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// AddBooks imports book files into the library.
func AddBooks(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.NArg() == 0 {
		return errors.New("no books to import have been specified")
	}
	lib, err := openLibrary(ctx, "books")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, lib.close())
	}()

	var failed int
	for _, src := range cmd.Args().Slice() {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := lib.importBook(ctx, src)
		if err != nil {
			lib.log.Error("Unable to import book", zap.String("file", src), zap.Error(err))
			failed++
			continue
		}
		fmt.Fprintf(output(cmd), "%s\t%s\n", info.ID, info.Title)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d books were not imported", failed, cmd.NArg())
	}
	return nil
}

// ListBooks prints library catalog, most recently opened first.
func ListBooks(ctx context.Context, cmd *cli.Command) (err error) {
	lib, err := openLibrary(ctx, "books")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, lib.close())
	}()

	books, err := lib.store.Books(ctx)
	if err != nil {
		return err
	}
	out := output(cmd)
	for _, b := range books {
		var opened string
		if !b.LastOpen.IsZero() {
			opened = b.LastOpen.Format(time.DateTime)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Creator, b.Language, opened)
	}
	lib.log.Debug("Books listed", zap.Int("count", len(books)))
	return nil
}

// ListChapters prints chapters of the book.
func ListChapters(ctx context.Context, cmd *cli.Command) (err error) {
	lib, book, err := openSource(ctx, cmd, "chapters")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, book.Close())
		err = multierr.Append(err, lib.close())
	}()

	if lib.env.Rpt != nil {
		lib.env.Rpt.StoreData("book.txt", []byte(book.String()))
	}

	out := output(cmd)
	fmt.Fprintf(out, "%s\t%s\n", book.ID, book.Title)
	for _, ch := range book.Chapters {
		fmt.Fprintf(out, "%d\t%s\t%s\n", ch.Index, ch.Label, ch.Path)
	}
	return nil
}

// Render writes chapter with all its bookmarks highlighted.
func Render(ctx context.Context, cmd *cli.Command) (err error) {
	lib, book, err := openSource(ctx, cmd, "render")
	if err != nil {
		return err
	}
	ctrl := lib.controller(book)
	defer func() {
		err = multierr.Append(err, ctrl.Close())
		err = multierr.Append(err, book.Close())
		err = multierr.Append(err, lib.close())
	}()

	chapter, err := openChapter(ctx, cmd, ctrl, book)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(2)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.NArg() > 3 {
		lib.log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[3:]))
	}

	if cmd.Bool("release") {
		ctrl.Release()
	}
	data, err := ctrl.Page()
	if err != nil {
		return err
	}

	name := buildOutputPath(book, chapter, dst, lib.env)
	if _, err := os.Stat(name); err == nil && !cmd.Bool("overwrite") {
		return fmt.Errorf("output file already exists: %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("unable to write rendered chapter: %w", err)
	}
	storeSession(lib, ctrl.Session())
	lib.log.Info("Chapter rendered",
		zap.String("book", book.ID),
		zap.Int("chapter", chapter.Index),
		zap.Int("bookmarks", len(ctrl.Session().Marks())),
		zap.String("file", name))
	return nil
}

// AddMark stores bookmark. START and END are PARAGRAPH[:OFFSET], single
// paragraph without offset is bookmarked as a whole.
func AddMark(ctx context.Context, cmd *cli.Command) (err error) {
	lib, book, err := openSource(ctx, cmd, "mark")
	if err != nil {
		return err
	}
	ctrl := lib.controller(book)
	defer func() {
		err = multierr.Append(err, ctrl.Close())
		err = multierr.Append(err, book.Close())
		err = multierr.Append(err, lib.close())
	}()

	chapter, err := openChapter(ctx, cmd, ctrl, book)
	if err != nil {
		return err
	}

	startArg := cmd.Args().Get(2)
	if len(startArg) == 0 {
		return errors.New("bookmark start has not been specified")
	}
	start, startOffset, err := parsePosition(startArg)
	if err != nil {
		return err
	}

	var r bookmark.Range
	switch endArg, sentence := cmd.Args().Get(3), cmd.Int("sentence"); {
	case sentence > 0:
		r, err = ctrl.AddSentence(ctx, start, sentence)
	case len(endArg) == 0 && startOffset < 0:
		r, err = ctrl.AddBookmarkAt(ctx, start)
	default:
		if startOffset < 0 {
			startOffset = 0
		}
		end, endOffset := start, -1
		if len(endArg) > 0 {
			if end, endOffset, err = parsePosition(endArg); err != nil {
				return err
			}
		}
		if endOffset < 0 {
			if endOffset, err = ctrl.Session().Index().ParagraphLen(end); err != nil {
				return err
			}
		}
		r, err = ctrl.AddRange(ctx,
			bookmark.Position{Chapter: chapter.Index, Paragraph: start, Offset: startOffset},
			bookmark.Position{Chapter: chapter.Index, Paragraph: end, Offset: endOffset})
	}
	if err != nil {
		return err
	}

	s := ctrl.Session()
	fmt.Fprintf(output(cmd), "%d\t%s\t%s\n", r.MarkID, positions(r), regionsText(s.Regions(r.MarkID)))
	storeSession(lib, s)
	return nil
}

// ListMarks prints bookmarks of the chapter with their text, or all
// bookmarks of the book when chapter is not specified.
func ListMarks(ctx context.Context, cmd *cli.Command) (err error) {
	lib, book, err := openSource(ctx, cmd, "mark")
	if err != nil {
		return err
	}
	ctrl := lib.controller(book)
	defer func() {
		err = multierr.Append(err, ctrl.Close())
		err = multierr.Append(err, book.Close())
		err = multierr.Append(err, lib.close())
	}()

	out := output(cmd)
	if len(cmd.Args().Get(1)) == 0 {
		marks, err := lib.store.BookBookmarks(ctx, book.ID)
		if err != nil {
			return err
		}
		for _, r := range marks {
			fmt.Fprintf(out, "%d\t%s\t%s\n", r.MarkID, positions(r), r.CreatedAt.Format(time.DateTime))
		}
		return nil
	}

	if _, err := openChapter(ctx, cmd, ctrl, book); err != nil {
		return err
	}
	s := ctrl.Session()
	for _, r := range s.Marks() {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", r.MarkID, positions(r), r.CreatedAt.Format(time.DateTime), regionsText(s.Regions(r.MarkID)))
	}
	storeSession(lib, s)
	return nil
}

// DeleteMark removes bookmark through its first highlight on the chapter
// page, the same way delete control does.
func DeleteMark(ctx context.Context, cmd *cli.Command) (err error) {
	lib, book, err := openSource(ctx, cmd, "mark")
	if err != nil {
		return err
	}
	ctrl := lib.controller(book)
	defer func() {
		err = multierr.Append(err, ctrl.Close())
		err = multierr.Append(err, book.Close())
		err = multierr.Append(err, lib.close())
	}()

	chapter, err := openChapter(ctx, cmd, ctrl, book)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(cmd.Args().Get(2), 10, 64)
	if err != nil {
		return fmt.Errorf("unable to parse bookmark id: %w", err)
	}

	ids := ctrl.Session().Registry().Get(bookmark.MarkID(id))
	if len(ids) == 0 {
		return fmt.Errorf("bookmark %d is not found in chapter %d", id, chapter.Index)
	}
	if err := ctrl.DeleteBookmark(ctx, ids[0]); err != nil {
		return err
	}
	lib.log.Info("Bookmark deleted", zap.Int64("mark", id), zap.Int("remaining", len(ctrl.Session().Marks())))
	storeSession(lib, ctrl.Session())
	return nil
}

func openSource(ctx context.Context, cmd *cli.Command, name string) (*library, *epub.Book, error) {
	source := cmd.Args().Get(0)
	if len(source) == 0 {
		return nil, nil, errors.New("no book has been specified")
	}
	lib, err := openLibrary(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	book, err := lib.open(ctx, source)
	if err != nil {
		return nil, nil, multierr.Append(err, lib.close())
	}
	return lib, book, nil
}

// openChapter opens chapter given as second argument and renders its
// bookmarks.
func openChapter(ctx context.Context, cmd *cli.Command, ctrl *Controller, book *epub.Book) (*epub.Chapter, error) {
	index, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return nil, fmt.Errorf("unable to parse chapter index: %w", err)
	}
	chapter, err := book.Chapter(index)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Open(ctx, book, index); err != nil {
		return nil, err
	}
	if err := ctrl.RefreshBookmarks(ctx, book.ID, index); err != nil {
		return nil, err
	}
	return chapter, nil
}

// parsePosition parses PARAGRAPH[:OFFSET], missing offset is returned as -1.
func parsePosition(s string) (paragraph, offset int, err error) {
	p, o, found := strings.Cut(s, ":")
	if paragraph, err = strconv.Atoi(p); err != nil {
		return 0, 0, fmt.Errorf("unable to parse paragraph of %q: %w", s, err)
	}
	if !found {
		return paragraph, -1, nil
	}
	if offset, err = strconv.Atoi(o); err != nil {
		return 0, 0, fmt.Errorf("unable to parse offset of %q: %w", s, err)
	}
	return paragraph, offset, nil
}

func positions(r bookmark.Range) string {
	return r.Start.String() + "-" + r.End.String()
}

func regionsText(regions []bookmark.Region) string {
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		parts = append(parts, r.Highlighted)
	}
	return strconv.Quote(strings.Join(parts, " "))
}

func storeSession(lib *library, s *Session) {
	if lib.env.Rpt == nil || s == nil {
		return
	}
	lib.env.Rpt.StoreData(fmt.Sprintf("chapter-%03d/raw.xhtml", s.Chapter), s.Raw())
	lib.env.Rpt.StoreData(fmt.Sprintf("chapter-%03d/session.txt", s.Chapter), []byte(s.String()))
}
