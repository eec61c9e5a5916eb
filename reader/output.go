package reader

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"rdmark/config"
	"rdmark/epub"
	"rdmark/state"
)

const pageExt = ".xhtml"

// Values is a struct that holds variables we make available for template
// expansion.
type Values struct {
	Context  string
	BookID   string
	Title    string
	Creator  string
	Language string
	Chapter  int
	Label    string
}

// buildOutputPath returns file name for rendered chapter inside dst, either
// default one or expanded from configured template.
func buildOutputPath(book *epub.Book, chapter *epub.Chapter, dst string, env *state.LocalEnv) string {
	defaultName := fmt.Sprintf("%s-%03d", book.ID, chapter.Index)

	tmpl := env.Cfg.Reader.OutputNameTemplate
	if tmpl == "" {
		return filepath.Join(dst, config.CleanFileName(defaultName)+pageExt)
	}
	expanded, err := expandTemplate(book, chapter, config.OutputNameTemplateFieldName, tmpl)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return filepath.Join(dst, config.CleanFileName(defaultName)+pageExt)
	}

	parts := []string{dst}
	for segment := range strings.SplitSeq(filepath.ToSlash(expanded), "/") {
		if len(strings.TrimSpace(segment)) == 0 {
			continue
		}
		if env.Cfg.Reader.FileNameTransliterate {
			segment = slug.Make(segment)
		}
		parts = append(parts, config.CleanFileName(segment))
	}
	if len(parts) == 1 {
		return filepath.Join(dst, config.CleanFileName(defaultName)+pageExt)
	}
	parts[len(parts)-1] += pageExt
	return filepath.Join(parts...)
}

func expandTemplate(book *epub.Book, chapter *epub.Chapter, name config.TemplateFieldName, field string) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:  string(name),
		BookID:   book.ID,
		Title:    book.Title,
		Creator:  book.Creator,
		Language: book.Language.String(),
		Chapter:  chapter.Index,
		Label:    chapter.Label,
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
