// Package features is the Feature Extractor (C1): turns normalized text
// into (shingles, simhash, minhash bands) deterministically, plus the
// Jaccard/Hamming similarity primitives computed over those features.
package features

import (
	"crypto/md5"
	"fmt"
	"hash/fnv"
	"strings"
)

// Config controls every tunable in feature extraction; zero-value fields
// fall back to the spec defaults via WithDefaults.
type Config struct {
	SimHashBitSize      int
	MinHashPermutations int
	MinHashBands        int
	MinHashRowsPerBand  int
	ShingleSize         int
}

// WithDefaults fills any zero field with the spec's default.
func (c Config) WithDefaults() Config {
	if c.SimHashBitSize == 0 {
		c.SimHashBitSize = 64
	}
	if c.MinHashPermutations == 0 {
		c.MinHashPermutations = 128
	}
	if c.MinHashBands == 0 {
		c.MinHashBands = 20
	}
	if c.MinHashRowsPerBand == 0 {
		c.MinHashRowsPerBand = 6
	}
	if c.ShingleSize == 0 {
		c.ShingleSize = 5
	}
	return c
}

// Extractor computes features with a fixed configuration. It holds no
// mutable state and is safe for concurrent use by any number of request
// handlers and worker goroutines.
type Extractor struct {
	cfg Config
}

// New creates an Extractor. cfg is completed with WithDefaults.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg.WithDefaults()}
}

// Features is the output of ExtractFeatures: everything downstream
// clustering logic needs.
type Features struct {
	SimHash          string
	MinHashSignature []string
	Shingles         []string
}

// normalize trims and lowercases, per spec §4.1 — no stemming, no stopword
// removal, so wording differences still register as near-duplicate signal.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Extract computes the full feature set for text. Pure and deterministic:
// Extract(x) == Extract(x) bitwise for any x.
func (e *Extractor) Extract(text string) Features {
	norm := normalize(text)
	shingles := e.shingles(norm)
	return Features{
		SimHash:          e.simHash(norm),
		MinHashSignature: e.minHashBands(shingles),
		Shingles:         shingles,
	}
}

// shingles produces character k-grams of the normalized text, k =
// ShingleSize. For n < k it returns the empty list; duplicates are kept
// (callers that need set semantics dedupe, e.g. Jaccard).
func (e *Extractor) shingles(norm string) []string {
	k := e.cfg.ShingleSize
	runes := []rune(norm)
	n := len(runes)
	if n < k {
		return []string{}
	}
	out := make([]string, 0, n-k+1)
	for i := 0; i <= n-k; i++ {
		out = append(out, string(runes[i:i+k]))
	}
	return out
}

// simHash computes a fixed-width fingerprint over the whitespace-split
// token list, weighted bit-vector style: each token's hash votes +1/-1 per
// bit, and the sign of the accumulated vote sets the output bit.
func (e *Extractor) simHash(norm string) string {
	bits := e.cfg.SimHashBitSize
	tokens := strings.Fields(norm)

	v := make([]int, bits)
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < bits; i++ {
			if (hash>>uint(i%64))&1 == 1 {
				v[i]++
			} else {
				v[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < bits && i < 64; i++ {
		if v[i] >= 0 {
			fp |= 1 << uint(i)
		}
	}

	return fmt.Sprintf("%0*x", bits/4, fp)
}

// minHashBands builds a MinHash signature over the shingle set with P
// permutations (simulated via P independently-seeded hash functions, the
// standard approach when no true random permutation family is available),
// then partitions it into bands of rows_per_band values, each band reduced
// to an 8-hex-char MD5 prefix. If bands*rowsPerBand < permutations, the
// trailing permutation values are silently dropped (see spec §9 open
// question — the source's behavior is preserved, not "fixed").
func (e *Extractor) minHashBands(shingles []string) []string {
	sig := minHashSignature(shingles, e.cfg.MinHashPermutations)

	bands := make([]string, 0, e.cfg.MinHashBands)
	for i := 0; i < e.cfg.MinHashBands; i++ {
		start := i * e.cfg.MinHashRowsPerBand
		end := start + e.cfg.MinHashRowsPerBand
		if start >= len(sig) {
			bands = append(bands, bandHash(nil))
			continue
		}
		if end > len(sig) {
			end = len(sig)
		}
		bands = append(bands, bandHash(sig[start:end]))
	}
	return bands
}

// minHashSignature computes P hash-minima over the shingle set, one per
// permutation seed. Deduplicates shingles first since MinHash operates over
// the set, not the multiset.
func minHashSignature(shingles []string, permutations int) []uint64 {
	set := dedupe(shingles)

	sig := make([]uint64, permutations)
	for seed := 0; seed < permutations; seed++ {
		var min uint64 = ^uint64(0)
		for _, s := range set {
			h := seededHash(s, seed)
			if h < min {
				min = h
			}
		}
		sig[seed] = min
	}
	return sig
}

func seededHash(shingle string, seed int) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", seed, shingle)
	return h.Sum64()
}

// bandHash hashes the comma-joined band values with MD5 and takes an
// 8-hex-char prefix, matching the source's band-signature construction.
func bandHash(values []uint64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return fmt.Sprintf("%x", sum)[:8]
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Jaccard computes |A∩B| / |A∪B| over two sets of shingles; 0.0 if the
// union is empty.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}

// Hamming returns popcount(a XOR b) for two equal-length hex-encoded
// SimHash values.
func Hamming(a, b string) (int, error) {
	ai, err := parseHex(a)
	if err != nil {
		return 0, fmt.Errorf("parsing simhash %q: %w", a, err)
	}
	bi, err := parseHex(b)
	if err != nil {
		return 0, fmt.Errorf("parsing simhash %q: %w", b, err)
	}

	xor := ai ^ bi
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count, nil
}

func parseHex(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	return v, err
}

// IsSimHashDuplicate reports whether two SimHash values are within the
// exact-duplicate Hamming threshold (3 bits, spec §4.1).
func IsSimHashDuplicate(a, b string) bool {
	d, err := Hamming(a, b)
	if err != nil {
		return false
	}
	return d <= 3
}
