package text

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"
)

func TestSplitter_Spans(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))

	t.Run("english", func(t *testing.T) {
		s := NewSplitter(language.English, log)
		if s == nil {
			t.Fatal("expected english splitter")
		}
		in := "Hello there. How are you today? I am fine."
		spans := s.Spans(in)
		if len(spans) != 3 {
			t.Fatalf("Spans() = %v, want 3 sentences", spans)
		}
		if spans[0] != (Span{0, 12}) {
			t.Errorf("first sentence = %v, want {0 12}", spans[0])
		}
		last := spans[len(spans)-1]
		if last.End != len([]rune(in)) {
			t.Errorf("last sentence must end with text, got %v", last)
		}
		for i := 1; i < len(spans); i++ {
			if spans[i].Start <= spans[i-1].End-1 {
				t.Errorf("sentences overlap: %v", spans)
			}
		}
	})

	t.Run("unsupported_language", func(t *testing.T) {
		s := NewSplitter(language.Russian, log)
		if s != nil {
			t.Fatal("expected no splitter")
		}
		in := "Привет. Как дела?"
		if spans := s.Spans(in); len(spans) != 1 || spans[0] != (Span{0, 17}) {
			t.Errorf("Spans() = %v, want whole text", spans)
		}
	})

	t.Run("empty", func(t *testing.T) {
		s := NewSplitter(language.AmericanEnglish, log)
		if spans := s.Spans(""); len(spans) != 1 || spans[0] != (Span{}) {
			t.Errorf("Spans() = %v", spans)
		}
	})
}

func TestSplitter_Sentence(t *testing.T) {
	var s *Splitter
	if _, err := s.Sentence("text", 2); err == nil {
		t.Error("expected out of range error")
	}
	span, err := s.Sentence("text", 1)
	if err != nil || span != (Span{0, 4}) {
		t.Errorf("Sentence() = %v, %v", span, err)
	}
}
