package features

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeterministic(t *testing.T) {
	e := New(Config{})
	text := "Fire in Tai Po displaces dozens of residents overnight"

	a := e.Extract(text)
	b := e.Extract(text)

	assert.Equal(t, a.SimHash, b.SimHash)
	assert.Equal(t, a.MinHashSignature, b.MinHashSignature)
	assert.Equal(t, a.Shingles, b.Shingles)
}

func TestSimHashFixedWidth(t *testing.T) {
	e := New(Config{})
	f := e.Extract("hello world")
	assert.Len(t, f.SimHash, 16) // 64/4
	assert.Equal(t, strings.ToLower(f.SimHash), f.SimHash)
}

func TestShinglesBoundary(t *testing.T) {
	e := New(Config{ShingleSize: 5})

	short := e.Extract("abcd") // length 4 < k=5
	assert.Empty(t, short.Shingles)

	exact := e.Extract("abcde") // length 5 == k
	require.Len(t, exact.Shingles, 1)
	assert.Equal(t, "abcde", exact.Shingles[0])

	longer := e.Extract("abcdef") // n-k+1 = 2
	assert.Len(t, longer.Shingles, 2)
}

func TestMinHashBandCountMatchesConfig(t *testing.T) {
	e := New(Config{MinHashBands: 20, MinHashRowsPerBand: 6, MinHashPermutations: 128})
	f := e.Extract("some reasonably long piece of text to shingle over")
	assert.Len(t, f.MinHashSignature, 20)
}

func TestJaccard(t *testing.T) {
	a := []string{"ab", "bc", "cd"}
	b := []string{"bc", "cd", "de"}
	// intersection {bc,cd}=2, union {ab,bc,cd,de}=4
	assert.InDelta(t, 0.5, Jaccard(a, b), 0.0001)
}

func TestJaccardEmptyUnion(t *testing.T) {
	assert.Equal(t, 0.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard([]string{}, []string{}))
}

func TestHammingDuplicateThreshold(t *testing.T) {
	// two hex values differing in exactly 3 bits
	a := "0000000000000000"
	b := "0000000000000007" // bits 0,1,2 set -> distance 3
	d, err := Hamming(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, d)
	assert.True(t, IsSimHashDuplicate(a, b))

	c := "000000000000000f" // distance 4
	d2, err := Hamming(a, c)
	require.NoError(t, err)
	assert.Equal(t, 4, d2)
	assert.False(t, IsSimHashDuplicate(a, c))
}

func TestNearDuplicateBodiesShareJaccard(t *testing.T) {
	e := New(Config{})
	a := e.Extract("香港大埔公寓火灾 香港大埔公寓发生火灾，消防正在扑救。")
	b := e.Extract("香港大埔居民楼火灾 香港大埔公寓发生火灾，消防正在扑救。")

	score := Jaccard(a.Shingles, b.Shingles)
	assert.Greater(t, score, 0.8)
}
