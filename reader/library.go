package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rdmark/archive"
	"rdmark/content"
	"rdmark/content/text"
	"rdmark/epub"
	"rdmark/resource"
	"rdmark/state"
	"rdmark/store"
	"rdmark/view"
)

// library binds configured storage and data directories for the command
// being executed.
type library struct {
	env   *state.LocalEnv
	store *store.Store
	log   *zap.Logger
}

func openLibrary(ctx context.Context, name string) (*library, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)
	log := env.Logger(name)

	env.DefaultStyle = view.DefaultStyle
	if path := env.Cfg.Reader.StylesheetPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read page stylesheet from %q: %w", path, err)
		}
		env.DefaultStyle = data
	}

	st, err := store.Open(env.Cfg.Storage.Database, log)
	if err != nil {
		return nil, err
	}
	return &library{env: env, store: st, log: log}, nil
}

func (l *library) close() error {
	return l.store.Close()
}

// open finds book either by file name or by id of imported book.
func (l *library) open(ctx context.Context, source string) (*epub.Book, error) {
	if fi, err := os.Stat(source); err == nil && fi.Mode().IsRegular() {
		return epub.Open(source, l.log)
	}

	info, err := l.store.Book(ctx, source)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, fmt.Errorf("source %q is neither a book file nor id of imported book", source)
		}
		return nil, err
	}
	book, err := epub.Open(info.FilePath, l.log)
	if err != nil {
		return nil, err
	}
	if err := l.store.TouchBook(ctx, info.ID); err != nil {
		l.log.Warn("Unable to update book open time", zap.String("id", info.ID), zap.Error(err))
	}
	return book, nil
}

// importBook copies book into the library extracting its cover and images.
func (l *library) importBook(ctx context.Context, src string) (info store.BookInfo, err error) {
	book, err := epub.Open(src, l.log)
	if err != nil {
		return store.BookInfo{}, err
	}
	defer func() {
		err = multierr.Append(err, book.Close())
	}()

	cfg := &l.env.Cfg.Reader
	if err := os.MkdirAll(cfg.BooksDir(), 0755); err != nil {
		return store.BookInfo{}, fmt.Errorf("unable to create library directory: %w", err)
	}
	dst := filepath.Join(cfg.BooksDir(), book.ID+".epub")
	if err := archive.Repack(src, dst); err != nil {
		return store.BookInfo{}, err
	}

	cover, err := book.ExtractCover(cfg.CoversDir())
	if err != nil {
		l.log.Warn("Unable to extract cover", zap.String("book", book.ID), zap.Error(err))
	}
	count, err := book.ExtractResources(cfg.BookResourcesDir(book.ID))
	if err != nil {
		l.log.Warn("Unable to extract resources", zap.String("book", book.ID), zap.Error(err))
	}

	info = store.BookInfo{
		ID:          book.ID,
		FilePath:    dst,
		CoverPath:   cover,
		Title:       book.Title,
		Creator:     book.Creator,
		Date:        book.Date,
		Publisher:   book.Publisher,
		Language:    book.Language.String(),
		Subject:     book.Subject,
		Description: book.Description,
		LastOpen:    time.Now(),
	}
	if err := l.store.SaveBook(ctx, info); err != nil {
		return store.BookInfo{}, err
	}
	l.log.Info("Book imported",
		zap.String("id", info.ID),
		zap.String("title", info.Title),
		zap.String("file", dst),
		zap.Int("resources", count))
	return info, nil
}

// controller returns controller configured for the book.
func (l *library) controller(book *epub.Book) *Controller {
	cfg := &l.env.Cfg.Reader

	opts := content.DefaultOptions()
	opts.ImageSuffixes = cfg.ImageSuffixes
	opts.DropTags = cfg.DropTags
	opts.MergeTags = cfg.MergeTags
	opts.Log = l.log

	return NewController(l.store, Settings{
		Rewriter:     resource.NewRewriter(cfg.PathStyle, cfg.ResourceScheme),
		ResourceRoot: cfg.BookResourcesDir,
		Normalize:    opts,
		Style:        l.env.DefaultStyle,
		Sentences:    text.NewSplitter(book.Language, l.log),
	}, l.log)
}
