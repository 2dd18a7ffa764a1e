// Package text splits prose into sentences and words for captions and
// short descriptions.
package text

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter returns English sentence splitter. When tokenizer could not be
// built nil is returned, nil splitter treats whole input as one sentence.
func NewSplitter(log *zap.Logger) *Splitter {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentences tokenizer data, turning off sentence splitting", zap.Error(err))
		return nil
	}
	return &Splitter{tok}
}

// Split returns slice of sentences.
// For memory-efficient streaming, use Sentences iterator instead.
func (s *Splitter) Split(in string) []string {
	var res []string
	for sentence := range s.Sentences(in) {
		res = append(res, sentence)
	}
	return res
}

// Sentences returns an iterator over sentences. Tokenizer attaches trailing
// spaces to the next sentence, they are moved back to the current one so
// joined output is identical to the input.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			yield(in)
			return
		}

		tokens := s.Tokenize(in)
		for i := 0; i < len(tokens)-1; i++ {
			text := tokens[i].Text
			next := tokens[i+1].Text
			for idx, sym := range next {
				if !unicode.IsSpace(sym) {
					text += next[:idx]
					tokens[i+1].Text = next[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		if len(tokens) > 0 {
			yield(tokens[len(tokens)-1].Text)
		}
	}
}

// Words returns an iterator over non-empty words.
func (*Splitter) Words(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for w := range strings.FieldsFuncSeq(in, isSeparator) {
			if !yield(w) {
				return
			}
		}
	}
}

// Summary returns leading sentences of in which fit into limit runes. When
// even the first sentence is too long it is cut on word boundary and
// ellipsis is appended. Whitespace is collapsed. limit <= 0 means first
// sentence only.
func (s *Splitter) Summary(in string, limit int) string {
	in = strings.Join(strings.Fields(in), " ")
	if in == "" {
		return ""
	}

	var b strings.Builder
	for sentence := range s.Sentences(in) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if b.Len() == 0 {
			if limit > 0 && utf8.RuneCountInString(sentence) > limit {
				return s.cut(sentence, limit)
			}
			b.WriteString(sentence)
			if limit <= 0 {
				break
			}
			continue
		}
		if utf8.RuneCountInString(b.String())+1+utf8.RuneCountInString(sentence) > limit {
			break
		}
		b.WriteByte(' ')
		b.WriteString(sentence)
	}
	return b.String()
}

func (s *Splitter) cut(sentence string, limit int) string {
	var (
		b     strings.Builder
		count int
	)
	for w := range s.Words(sentence) {
		n := utf8.RuneCountInString(w)
		if b.Len() > 0 {
			n++
		}
		// room for ellipsis
		if count+n+1 > limit {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		count += n
	}
	if b.Len() == 0 {
		r := []rune(sentence)
		return string(r[:max(limit-1, 0)]) + "…"
	}
	return strings.TrimRight(b.String(), ",;:—–-") + "…"
}

func isSeparator(r rune) bool {
	if r == 0xA0 {
		// NBSP glues words
		return false
	}
	return unicode.IsSpace(r)
}
