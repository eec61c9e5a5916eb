// Package css rewrites resource references found in stylesheets.
package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// LinkFunc maps reference found in stylesheet to its replacement, returning
// false keeps reference unchanged.
type LinkFunc func(ref string) (string, bool)

// RewriteURLs copies stylesheet replacing url() references. Inline data and
// fragment only references are never passed to link. Everything else is kept
// byte for byte.
func RewriteURLs(data []byte, link LinkFunc, log *zap.Logger) ([]byte, error) {
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var out bytes.Buffer
	out.Grow(len(data))

	var rewritten int
	for {
		tt, text := lexer.Next()
		switch tt {
		case css.ErrorToken:
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("unable to tokenize stylesheet: %w", err)
			}
			log.Debug("Stylesheet processed", zap.Int("bytes", len(data)), zap.Int("rewritten", rewritten))
			return out.Bytes(), nil
		case css.URLToken:
			ref := urlValue(text)
			if skipRef(ref) {
				break
			}
			if repl, ok := link(ref); ok {
				out.WriteString(`url("`)
				out.WriteString(quoteEscaper.Replace(repl))
				out.WriteString(`")`)
				rewritten++
				continue
			}
		case css.BadURLToken:
			log.Debug("Malformed url in stylesheet", zap.ByteString("token", text))
		}
		out.Write(text)
	}
}

// urlValue extracts reference from url token: url( "ref" ) or url(ref).
func urlValue(tok []byte) string {
	s := string(tok)
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ")")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}

func skipRef(ref string) bool {
	return len(ref) == 0 || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "data:")
}
