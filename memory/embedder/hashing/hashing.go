// Package hashing provides a deterministic, offline embedder.
//
// Texts are split into lowercase word tokens, each token is cut to a short
// stem and hashed into a fixed number of buckets (feature hashing). Texts
// sharing words therefore land close to each other, which is enough for
// development and tests without a model download.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so stores can switch embedders
// without re-creating the collection.
const DefaultDimensions = 384

// stemLength cuts tokens so that "prefers" and "preferences" share a bucket.
const stemLength = 6

// Embedder generates embeddings by feature hashing.
type Embedder struct {
	dimensions int
}

// New creates a hashing embedder. dims <= 0 selects DefaultDimensions.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed returns a unit vector for text. Identical text always yields the
// identical vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, tok := range tokenize(text) {
		h := hashString(stem(tok))
		idx := int(h % uint64(e.dimensions))
		if h>>63 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	// Opposite-signed tokens in one bucket can cancel out entirely.
	if isZero(vec) {
		fillFromSeed(vec, hashString(text))
	}
	return memory.Normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stem(tok string) string {
	runes := []rune(tok)
	if len(runes) <= stemLength {
		return tok
	}
	return string(runes[:stemLength])
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// fillFromSeed covers texts whose tokens leave no trace (punctuation only,
// or buckets that cancel) with a pseudo-random vector derived from the
// whole text.
func fillFromSeed(vec []float32, seed uint64) {
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
}
