package embed

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	defaultLocalDim = 384
	minNgram        = 3
	maxNgram        = 6
)

// LocalModelName is the model name recorded for vectors from LocalEmbedder.
const LocalModelName = "local-ngram-v1"

var (
	seedIndex = []byte("lexgraph-ngram-idx-v1::")
	seedSign  = []byte("lexgraph-ngram-sgn-v1::")
)

// ErrEmptyInput is returned by the local backend for blank text.
var ErrEmptyInput = errors.New("embed: input cannot be empty")

// LocalEmbedder is a deterministic, offline embedder. Each word is split
// into character n-grams which are hashed into the vector (feature hashing
// with a random sign); word vectors are averaged and L2-normalised. Words
// that share subwords land near each other, which is enough for smoke
// tests and air-gapped builds.
type LocalEmbedder struct {
	dim int
}

// NewLocal returns a LocalEmbedder of the given size (default 384).
func NewLocal(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = defaultLocalDim
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) Dimensions() int { return e.dim }
func (e *LocalEmbedder) Model() string   { return LocalModelName }

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedOne embeds text. Stopwords are ignored unless the text has nothing
// else.
func (e *LocalEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(strings.ToLower(text))
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	words := tokens[:0:0]
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; !skip {
			words = append(words, tok)
		}
	}
	if len(words) == 0 {
		words = tokens
	}

	vec := make([]float32, e.dim)
	for _, w := range words {
		e.addWord(vec, w)
	}
	scale := 1 / float32(len(words))
	for i := range vec {
		vec[i] *= scale
	}
	l2Normalize(vec)
	return vec, nil
}

// addWord hashes the bounded word "<w>" and each of its n-grams into vec.
func (e *LocalEmbedder) addWord(vec []float32, word string) {
	bounded := "<" + word + ">"
	runes := []rune(bounded)

	e.addFeature(vec, bounded)
	for n := minNgram; n <= maxNgram && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			e.addFeature(vec, string(runes[i:i+n]))
		}
	}
}

func (e *LocalEmbedder) addFeature(vec []float32, feature string) {
	idx := int(stableHash(seedIndex, feature) % uint64(e.dim))
	if stableHash(seedSign, feature)%2 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func tokenize(s string) []string {
	var (
		tokens []string
		b      strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func stableHash(seed []byte, token string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte(token))
	return h.Sum64()
}

func l2Normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "this": {}, "those": {}, "to": {}, "was": {}, "were": {}, "which": {},
	"who": {}, "will": {}, "with": {},
}
