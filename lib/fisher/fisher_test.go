package fisher

import (
	"net/http"
	"sync"
	"testing"

	"pubfisher/lib/records"

	"github.com/stretchr/testify/require"
)

func TestSessionContinuityAcrossQueries(t *testing.T) {
	fetch := &fakeFetcher{
		script: map[string][]string{
			"q:first":    {"p0"},
			"cites:c123": {"p1"},
		},
		// the last response of the first query rotates the session token
		setOn: map[string][]*http.Cookie{
			"q:first": {{Name: "NID", Value: "rotated-by-q1"}},
		},
	}
	source := &fakeSource{results: map[string]fakeResult{
		"p0": {recs: []records.Publication{{ID: "r0", CitedByID: "c123"}}, next: ""},
		"p1": {recs: []records.Publication{rec("r1")}, next: ""},
	}}

	fisher := newTestFisher(fetch, source)

	first := fisher.LookForKeywords("first")
	got := drain(t, first)
	require.Len(t, got, 1)

	second, err := fisher.LookForCitationsOf(got[0])
	require.NoError(t, err)
	drain(t, second)

	// the second query's first request presented the token set as updated
	// by the first query's response
	require.Equal(t, []string{"", "rotated-by-q1"}, fetch.seenNID)
}

func TestTraversalsHaveIndependentDedupState(t *testing.T) {
	fetch := &fakeFetcher{script: map[string][]string{
		"q:a": {"p0"},
		"q:b": {"p0"},
	}}
	source := &fakeSource{results: map[string]fakeResult{
		"p0": {recs: []records.Publication{rec("r0")}, next: ""},
	}}

	fisher := newTestFisher(fetch, source)

	require.Len(t, drain(t, fisher.LookForKeywords("a")), 1)
	// a second traversal over the same records yields them again: dedup is
	// per traversal, not per fisher
	require.Len(t, drain(t, fisher.LookForKeywords("b")), 1)
}

func TestFishAllReturnsMostRecentQuery(t *testing.T) {
	fetch := &fakeFetcher{script: map[string][]string{
		"q:a": {"p0"},
		"q:b": {"p0"},
	}}
	source := &fakeSource{results: map[string]fakeResult{
		"p0": {recs: []records.Publication{rec("r0")}, next: ""},
	}}

	fisher := newTestFisher(fetch, source)
	require.Nil(t, fisher.FishAll())

	fisher.LookForKeywords("a")
	b := fisher.LookForKeywords("b")

	require.Same(t, b, fisher.FishAll())
	require.Equal(t, Descriptor{Kind: KindKeywords, Terms: "b"}, fisher.FishAll().Query())
}

func TestConcurrentQueryConfiguration(t *testing.T) {
	fetch := &fakeFetcher{script: map[string][]string{
		"q:a": {"p0"},
	}}
	source := &fakeSource{results: map[string]fakeResult{
		"p0": {recs: []records.Publication{rec("r0")}, next: ""},
	}}

	fisher := newTestFisher(fetch, source)

	// configuring queries and asking for the current one from different
	// goroutines must be race free (run with -race)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fisher.LookForKeywords("a")
			fisher.FishAll()
		}()
	}
	wg.Wait()

	require.NotNil(t, fisher.FishAll())
}

func TestLookForCitationsOfRequiresReference(t *testing.T) {
	fisher := newTestFisher(&fakeFetcher{}, &fakeSource{})

	_, err := fisher.LookForCitationsOf(records.Publication{Title: "uncited"})
	require.ErrorIs(t, err, ErrNoCitationRef)
}
