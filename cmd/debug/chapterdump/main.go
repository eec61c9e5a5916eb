// chapterdump opens an EPUB file and writes readable dumps of its structure
// and of the paragraph index built for every chapter, the same one bookmarks
// are addressed against.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"rdmark/cmd/debug/internal/dumputil"
	"rdmark/common"
	"rdmark/content"
	"rdmark/epub"
	"rdmark/resource"
)

func main() {
	all := flag.Bool("all", false, "enable all dump flags (-book, -chapters)")
	book := flag.Bool("book", false, "dump book structure into <file>-book.txt")
	chapters := flag.Bool("chapters", false, "dump paragraph index of every chapter into <file>-chapter-NNN.txt")
	chapter := flag.Int("chapter", -1, "dump paragraph index of a single chapter only")
	root := flag.String("root", "", "rewrite image links relative to resource `DIR` as -chapters output would show them when rendered")
	verbose := flag.Bool("verbose", false, "log normalization details to stderr")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: chapterdump [-all] [-book] [-chapters] [-chapter N] [-root DIR] [-verbose] [-overwrite] <file.epub> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Reads EPUB file and dumps its structure and normalized chapters.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}
	if *all {
		*book = true
		*chapters = true
	}
	if *chapter >= 0 {
		*chapters = true
	}
	if !*book && !*chapters {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "prepare log: %v\n", err)
			os.Exit(1)
		}
	}

	b, err := epub.Open(inPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", inPath, err)
		os.Exit(1)
	}
	defer b.Close()

	if *book {
		if err := dumputil.WriteOutput(inPath, outDir, "-book.txt", []byte(b.String()), *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "dump book: %v\n", err)
			os.Exit(1)
		}
	}
	if !*chapters {
		return
	}

	opts := content.DefaultOptions()
	opts.Log = log
	rw := resource.NewRewriter(common.PathStylePosix, common.ResourceSchemeFile)

	var failed int
	for _, ch := range b.Chapters {
		if *chapter >= 0 && ch.Index != *chapter {
			continue
		}
		if err := dumpChapter(b, ch, rw, *root, opts, inPath, outDir, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "dump chapter %d (%s): %v\n", ch.Index, ch.Path, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func dumpChapter(b *epub.Book, ch epub.Chapter, rw *resource.Rewriter, root string, opts content.Options, inPath, outDir string, overwrite bool) error {
	raw, err := b.ChapterMarkup(ch.Index)
	if err != nil {
		return err
	}
	if len(root) > 0 {
		opts.Links = rw.ForChapter(root, ch.Path)
	}
	index, err := content.Normalize(raw, opts)
	if err != nil {
		return err
	}
	data := fmt.Sprintf("Chapter[%d] path[%s] label[%q]\n%s", ch.Index, ch.Path, ch.Label, index)
	return dumputil.WriteOutput(inPath, outDir, fmt.Sprintf("-chapter-%03d.txt", ch.Index), []byte(data), overwrite)
}
