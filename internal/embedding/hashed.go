package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// HashedModel is the model name reported by the offline provider
const HashedModel = "hashed-tf"

// HashedProvider is the offline hashed-term-frequency scheme. It needs no
// network and the same text always yields the same vector.
type HashedProvider struct {
	dims int
}

var _ Provider = (*HashedProvider)(nil)

// NewHashedProvider creates an offline provider producing dims-length vectors
func NewHashedProvider(dims int) *HashedProvider {
	if dims <= 0 {
		dims = DefaultConfig().Dimensions
	}
	return &HashedProvider{dims: dims}
}

// Model returns the offline model name including its dimensionality
func (p *HashedProvider) Model() string {
	return fmt.Sprintf("%s-%d", HashedModel, p.dims)
}

// Dimensions returns the vector length
func (p *HashedProvider) Dimensions() int {
	return p.dims
}

// Embed computes the hashed vector for text. Empty or token-free input yields the zero vector.
func (p *HashedProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return p.vector(text), nil
}

// EmbedBatch computes vectors for each text; no batching concerns apply offline
func (p *HashedProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *HashedProvider) vector(text string) []float32 {
	acc := make([]float64, p.dims)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return make([]float32, p.dims)
	}

	freq := make(map[string]int, len(tokens))
	maxFreq := 0
	for _, tok := range tokens {
		freq[tok]++
		if freq[tok] > maxFreq {
			maxFreq = freq[tok]
		}
	}

	// Accumulate in sorted term order so float sums are bit-for-bit repeatable
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	dims := uint32(p.dims)
	for _, term := range terms {
		tf := float64(freq[term]) / float64(maxFreq)
		hashes := [3]uint32{fnv1a(term), djb2(term), sdbm(term)}
		weights := [3]float64{1.0, 0.5, 0.25}
		for i, h := range hashes {
			sign := 1.0
			if h%2 == 1 {
				sign = -1.0
			}
			acc[h%dims] += sign * tf * weights[i]
		}
	}

	out := make([]float32, p.dims)
	for i, x := range acc {
		out[i] = float32(x)
	}
	return Normalize(out)
}

// Tokenize lowercases text and returns alphanumeric runs longer than two characters
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func fnv1a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func sdbm(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = uint32(s[i]) + (h << 6) + (h << 16) - h
	}
	return h
}
