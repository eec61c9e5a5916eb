// Package text provides language aware helpers for paragraph text.
package text

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Span is a sentence position inside paragraph text, in characters.
type Span struct {
	Start, End int
}

type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter returns sentence splitter for the language or nil when there
// is no suitable model. Nil splitter treats whole text as a single sentence.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, confidence := lang.Base()
	if confidence == language.No {
		log.Warn("Unable to determine language base, turning off sentence splitting", zap.Stringer("tag", lang))
		return nil
	}
	if enBase, _ := language.English.Base(); base != enBase {
		log.Warn("Unable to find suitable sentence tokenizer model, turning off sentence splitting", zap.Stringer("language", lang))
		return nil
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentences tokenizer data", zap.Stringer("tag", lang), zap.Error(err))
		return nil
	}
	return &Splitter{tokenizer}
}

// Spans returns sentences of the text. Whitespace between sentences belongs
// to neither of them.
func (s *Splitter) Spans(in string) []Span {
	whole := []Span{{0, utf8.RuneCountInString(in)}}
	if s == nil {
		return whole
	}

	var (
		spans  []Span
		cursor int
	)
	for _, sentence := range s.Tokenize(in) {
		piece := strings.TrimSpace(sentence.Text)
		if len(piece) == 0 {
			continue
		}
		i := strings.Index(in[cursor:], piece)
		if i < 0 {
			continue
		}
		start := cursor + i
		cursor = start + len(piece)
		spans = append(spans, Span{utf8.RuneCountInString(in[:start]), utf8.RuneCountInString(in[:cursor])})
	}
	if len(spans) == 0 {
		return whole
	}
	return spans
}

// Sentence returns n-th (starting with 1) sentence of the text.
func (s *Splitter) Sentence(in string, n int) (Span, error) {
	spans := s.Spans(in)
	if n < 1 || n > len(spans) {
		return Span{}, fmt.Errorf("sentence %d is out of range, text has %d", n, len(spans))
	}
	return spans[n-1], nil
}
