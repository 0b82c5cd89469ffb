package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default chunking policy for content records.
const (
	DefaultMaxTokens = 500
	DefaultOverlap   = 50
)

// Span is one chunk of a source text. CharStart and CharEnd are byte
// offsets into the text that was chunked (half-open).
type Span struct {
	Text      string
	CharStart int
	CharEnd   int
}

// Config controls the chunking behaviour.
type Config struct {
	MaxTokens int // Maximum whitespace-delimited words per chunk.
	Overlap   int // Word overlap seeded into the next chunk.
}

// Chunker splits text using a fixed Config.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with the default policy and the overlap
// is clamped below MaxTokens so word windows always advance.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxTokens {
		cfg.Overlap = cfg.MaxTokens - 1
	}
	return &Chunker{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

// Chunk splits text with the chunker's policy. See Chunk.
func (c *Chunker) Chunk(text string) []Span {
	return chunk(text, c.cfg.MaxTokens, c.cfg.Overlap)
}

// Chunk splits text into ordered, possibly overlapping spans of roughly
// maxTokens words. Text at or under the budget comes back as a single span
// covering the whole input, whitespace-only text included; empty text
// yields no spans. Longer text is cut on sentence boundaries and sentences
// that alone exceed the budget are cut on word boundaries.
//
// A chunk is seeded with the trailing sentences of the previous one (up to
// overlap words) and the next sentence is added without rechecking the
// budget. Such a chunk may exceed maxTokens by up to overlap words and may
// start where the previous chunk starts.
func Chunk(text string, maxTokens, overlap int) []Span {
	return New(Config{MaxTokens: maxTokens, Overlap: overlap}).Chunk(text)
}

func chunk(text string, maxTokens, overlap int) []Span {
	if text == "" {
		return nil
	}
	if EstimateTokens(text) <= maxTokens {
		return []Span{{Text: text, CharStart: 0, CharEnd: len(text)}}
	}

	var (
		spans      []Span
		current    []sentence
		currentLen int
	)

	for _, s := range splitSentences(text) {
		sentLen := EstimateTokens(s.text)

		if sentLen > maxTokens {
			if len(current) > 0 {
				spans = append(spans, joinSentences(current))
				current = nil
				currentLen = 0
			}
			spans = append(spans, splitByWords(s.text, s.start, maxTokens, overlap)...)
			continue
		}

		if currentLen+sentLen > maxTokens && len(current) > 0 {
			spans = append(spans, joinSentences(current))
			current, currentLen = overlapTail(current, overlap)
		}

		current = append(current, s)
		currentLen += sentLen
	}

	if len(current) > 0 {
		spans = append(spans, joinSentences(current))
	}
	return spans
}

// EstimateTokens approximates the token count of text as its number of
// whitespace-delimited words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// ---------------------------------------------------------------------------
// Sentences
// ---------------------------------------------------------------------------

type sentence struct {
	text  string
	start int
	end   int
}

// splitSentences cuts text after '.', '?' or '!' when the next rune is not
// a letter or digit (so "2.2-3700" stays whole). Offsets exclude leading
// and trailing whitespace.
func splitSentences(text string) []sentence {
	var out []sentence
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		seg := strings.TrimRightFunc(text[start:end], unicode.IsSpace)
		if seg != "" {
			out = append(out, sentence{text: seg, start: start, end: start + len(seg)})
		}
		start = -1
	}

	for i, r := range text {
		if start < 0 && !unicode.IsSpace(r) {
			start = i
		}
		if r != '.' && r != '?' && r != '!' {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}
		emit(end)
	}
	emit(len(text))
	return out
}

// joinSentences renders consecutive sentences as one span. The text is the
// sentences joined with a single space; offsets run from the first
// sentence's start to the last sentence's end.
func joinSentences(ss []sentence) Span {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.text
	}
	return Span{
		Text:      strings.Join(parts, " "),
		CharStart: ss[0].start,
		CharEnd:   ss[len(ss)-1].end,
	}
}

// overlapTail returns the longest suffix of ss whose word count fits in
// overlap, in original order, together with that word count.
func overlapTail(ss []sentence, overlap int) ([]sentence, int) {
	n := 0
	i := len(ss)
	for i > 0 {
		l := EstimateTokens(ss[i-1].text)
		if n+l > overlap {
			break
		}
		n += l
		i--
	}
	tail := make([]sentence, len(ss)-i)
	copy(tail, ss[i:])
	return tail, n
}

// ---------------------------------------------------------------------------
// Word windows
// ---------------------------------------------------------------------------

type word struct {
	start, end int
}

// splitByWords force-splits a sentence with no usable boundary into
// windows of maxTokens words, each window starting overlap words before the
// previous one ended. base is the sentence's offset in the chunked text.
func splitByWords(text string, base, maxTokens, overlap int) []Span {
	words := wordOffsets(text)
	if len(words) == 0 {
		return nil
	}

	var spans []Span
	start := 0
	for start < len(words) {
		end := min(start+maxTokens, len(words))
		from, to := words[start].start, words[end-1].end
		spans = append(spans, Span{
			Text:      text[from:to],
			CharStart: base + from,
			CharEnd:   base + to,
		})
		if end >= len(words) {
			break
		}
		start = end - overlap
	}
	return spans
}

func wordOffsets(text string) []word {
	var words []word
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{start, len(text)})
	}
	return words
}
