package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupKeyPrefersSourceID(t *testing.T) {
	a := Publication{ID: "abc123", Title: "Some Title", Authors: "A Author"}
	b := Publication{ID: "abc123", Title: "Some Title (v2)", Authors: "A Author"}
	require.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestDedupKeyFallbackComposite(t *testing.T) {
	a := Publication{Title: "Attention Is  All You Need", Authors: "A Vaswani, N Shazeer"}
	b := Publication{Title: "attention is all you need", Authors: "a vaswani,  n shazeer"}
	c := Publication{Title: "Attention Is All You Need", Authors: "Someone Else"}

	require.Equal(t, a.DedupKey(), b.DedupKey())
	require.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestDedupKeyIDNeverCollidesWithComposite(t *testing.T) {
	withID := Publication{ID: "xyz", Title: "T", Authors: "A"}
	withoutID := Publication{Title: "T", Authors: "A"}
	require.NotEqual(t, withID.DedupKey(), withoutID.DedupKey())
}

func TestLikelySameWork(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Publication
		expected bool
	}{
		{
			name:     "same id",
			a:        Publication{ID: "x", Title: "completely"},
			b:        Publication{ID: "x", Title: "different"},
			expected: true,
		},
		{
			name:     "near identical titles",
			a:        Publication{Title: "Attention Is All You Need"},
			b:        Publication{Title: "Attention is all you need."},
			expected: true,
		},
		{
			name:     "unrelated titles",
			a:        Publication{Title: "Attention Is All You Need"},
			b:        Publication{Title: "Deep Residual Learning for Image Recognition"},
			expected: false,
		},
		{
			name:     "empty titles never match",
			a:        Publication{},
			b:        Publication{},
			expected: false,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, LikelySameWork(test.a, test.b))
		})
	}
}
