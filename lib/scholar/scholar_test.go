package scholar

import (
	"os"
	"path/filepath"
	"testing"

	"pubfisher/lib/fetcher"
	"pubfisher/lib/records"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func TestQueryURLs(t *testing.T) {
	s := Source{}
	require.Equal(t,
		"https://scholar.google.com/scholar?q=attention+is+all+you+need&hl=en",
		s.KeywordQueryURL("attention is all you need"),
	)
	require.Equal(t,
		"https://scholar.google.com/scholar?cites=2960712678066186980&hl=en",
		s.CitationsQueryURL("2960712678066186980"),
	)

	mirror := Source{Host: "https://scholar.example.org/"}
	require.Equal(t,
		"https://scholar.example.org/scholar?q=x&hl=en",
		mirror.KeywordQueryURL("x"),
	)
}

func TestClassifyNormalPage(t *testing.T) {
	s := Source{}
	page := fetcher.Page{URL: "https://scholar.google.com/scholar?q=x", Body: fixture(t, "results_page.html")}
	require.Nil(t, s.Classify(page))
}

func TestClassifyCaptchaPage(t *testing.T) {
	s := Source{}
	body := fixture(t, "captcha_page.html")
	page := fetcher.Page{URL: "https://scholar.google.com/scholar?q=x&start=20", Body: body}

	chal := s.Classify(page)
	require.NotNil(t, chal)
	require.Equal(t, "https://scholar.google.com/scholar?q=x&start=20", chal.PageURL)
	require.Equal(t, body, chal.Artifact)
}

func TestClassifySorryInterstitial(t *testing.T) {
	s := Source{}
	page := fetcher.Page{URL: "https://www.google.com/sorry/index", Body: fixture(t, "sorry_page.html")}
	require.NotNil(t, s.Classify(page))
}

func TestClassifyAmbiguousPayloadIsNormal(t *testing.T) {
	s := Source{}
	testCases := [][]byte{
		[]byte("<html><body><p>nothing recognizable here</p></body></html>"),
		[]byte("{\"this\": \"is not even html\"}"),
		[]byte(""),
		{0x00, 0x01, 0xff, 0xfe},
	}
	for _, body := range testCases {
		require.Nil(t, s.Classify(fetcher.Page{URL: "u", Body: body}))
	}
}

func TestExtractResultsPage(t *testing.T) {
	s := Source{}
	page := fetcher.Page{
		URL:  "https://scholar.google.com/scholar?q=attention+is+all+you+need&hl=en",
		Body: fixture(t, "results_page.html"),
	}

	recs, next, skipped := s.Extract(page)
	require.Len(t, recs, 2)
	// the row without an author byline is dropped, not fatal
	require.Equal(t, 1, skipped)

	first := recs[0]
	require.Contains(t, first.Abstract, "dominant sequence transduction models")
	first.Abstract = ""
	diff := cmp.Diff(records.Publication{
		ID:            "FizScM-Bo20J",
		Title:         "Attention is all you need",
		Authors:       "A Vaswani, N Shazeer, N Parmar",
		Venue:         "Advances in neural information processing systems",
		Year:          2017,
		CitationCount: 98764,
		CitedByID:     "2960712678066186980",
		URL:           "https://papers.nips.cc/paper/7181-attention-is-all-you-need",
		EPrintURL:     "https://arxiv.org/pdf/1706.03762.pdf",
	}, first)
	require.Empty(t, diff)

	second := recs[1]
	// [CITATION] mark ripped out of the title
	require.Equal(t, "Neural machine translation by jointly learning to align and translate", second.Title)
	require.Empty(t, second.ID)
	require.Empty(t, second.URL)
	require.Equal(t, "D Bahdanau, K Cho, Y Bengio", second.Authors)
	require.Equal(t, 2014, second.Year)
	// "Abstract:" prefix stripped
	require.Contains(t, second.Abstract, "Neural machine translation is a recently proposed")
	require.NotContains(t, second.Abstract, "Abstract")
	require.Empty(t, second.CitedByID)

	require.Equal(t,
		"https://scholar.google.com/scholar?start=10&q=attention+is+all+you+need&hl=en",
		next,
	)
}

func TestExtractLastPageHasNoNextURL(t *testing.T) {
	s := Source{}
	page := fetcher.Page{
		URL:  "https://scholar.google.com/scholar?q=attention&start=990",
		Body: fixture(t, "last_page.html"),
	}

	recs, next, skipped := s.Extract(page)
	require.Len(t, recs, 1)
	require.Zero(t, skipped)
	require.Empty(t, next)
	require.Equal(t, "lastpage001", recs[0].ID)
	require.Equal(t, 7, recs[0].CitationCount)
}

func TestExtractAmbiguousPayload(t *testing.T) {
	s := Source{}
	recs, next, skipped := s.Extract(fetcher.Page{URL: "u", Body: []byte("<html><body>totally empty</body></html>")})
	require.Empty(t, recs)
	require.Empty(t, next)
	require.Zero(t, skipped)
}
