// Package fisher implements the resumable fishing engine: a state machine
// that walks the paginated results of a scholarly search source, keeps one
// session identity alive across pages and queries, pauses when the source
// interposes a human-verification challenge and resumes exactly where it
// stopped once the caller supplies a solution.
//
// The engine knows nothing about any concrete source. Page layout lives
// behind the Source interface, transport behind PageFetcher.
package fisher

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pubfisher/lib/fetcher"
	"pubfisher/lib/records"
	"pubfisher/lib/session"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pubfisher.lib.fisher")

// PageFetcher performs one request/response round trip under a session
// identity. Implemented by fetcher.Client; faked in tests.
type PageFetcher interface {
	Fetch(ctx context.Context, sess *session.Context, pageURL string) (fetcher.Page, error)
}

// Challenge is a human-verification prompt the source returned instead of
// results. Artifact is the presentable payload (the challenge page itself);
// Token correlates a later Resume call back to the paused traversal.
type Challenge struct {
	PageURL  string
	Artifact []byte
	Token    string
}

// Solution carries whatever state solving a challenge attached to the
// session, typically a verification cookie set after the human passed.
type Solution struct {
	Cookies []*http.Cookie
}

// Source is the layout-specific knowledge of one search engine: how to
// build query URLs, how to recognize a challenge page and how to extract
// records. Swappable per target source.
type Source interface {
	// KeywordQueryURL returns the first-page URL of a keyword search.
	KeywordQueryURL(keywords string) string
	// CitationsQueryURL returns the first-page URL of a query for
	// publications citing the work behind citedByID.
	CitationsQueryURL(citedByID string) string

	// Classify inspects a fetched page by structural markers only, never
	// HTTP status. A nil result means a normal result page; ambiguous
	// payloads must classify as normal.
	Classify(page fetcher.Page) *Challenge

	// Extract parses a normal result page. nextURL is "" on the last page.
	// Rows that fail to parse are skipped and counted, never fatal.
	Extract(page fetcher.Page) (recs []records.Publication, nextURL string, skipped int)
}

// QueryKind says what a traversal is looking for.
type QueryKind int

const (
	KindKeywords QueryKind = iota
	KindCitations
)

func (k QueryKind) String() string {
	switch k {
	case KindKeywords:
		return "keywords"
	case KindCitations:
		return "citations"
	}
	return "unknown"
}

// Descriptor is one logical query. Immutable for the life of a traversal;
// only the traversal's cursor advances.
type Descriptor struct {
	Kind  QueryKind
	Terms string
}

// Fisher binds one session identity to the queries issued through it.
// Traversals started from the same Fisher share cookie state, so the second
// query opens with whatever tokens the first query's last response set, but
// every traversal keeps its own cursor and dedup set.
type Fisher struct {
	sess      *session.Context
	fetch     PageFetcher
	source    Source
	meanDelay time.Duration

	mu      sync.Mutex
	current *Traversal
}

type Options struct {
	// Session to present to the source. A fresh anonymous one is created
	// when nil, e.g. when there is no persisted session to restore.
	Session *session.Context
	Fetcher PageFetcher
	Source  Source
	// MeanDelay is the average pause before each page fetch after the
	// first, jittered ±70%, to avoid hammering the source. Zero disables.
	MeanDelay time.Duration
}

func New(opts Options) *Fisher {
	sess := opts.Session
	if sess == nil {
		sess = session.NewContext()
	}
	return &Fisher{
		sess:      sess,
		fetch:     opts.Fetcher,
		source:    opts.Source,
		meanDelay: opts.MeanDelay,
	}
}

func (f *Fisher) Session() *session.Context {
	return f.sess
}

func (f *Fisher) newTraversal(desc Descriptor, startURL string) *Traversal {
	t := &Traversal{
		sess:   f.sess,
		fetch:  f.fetch,
		source: f.source,
		desc:   desc,
		cursor: startURL,
		seen:   map[string]bool{},
		delay:  f.meanDelay,
	}
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
	return t
}

// LookForKeywords configures a keyword query and returns its traversal.
func (f *Fisher) LookForKeywords(text string) *Traversal {
	return f.newTraversal(
		Descriptor{Kind: KindKeywords, Terms: text},
		f.source.KeywordQueryURL(text),
	)
}

// LookForCitationsOf configures a citation-chain query walking the
// publications that cite rec. Fails when rec carries no citation reference.
func (f *Fisher) LookForCitationsOf(rec records.Publication) (*Traversal, error) {
	if rec.CitedByID == "" {
		return nil, ErrNoCitationRef
	}
	return f.newTraversal(
		Descriptor{Kind: KindCitations, Terms: rec.CitedByID},
		f.source.CitationsQueryURL(rec.CitedByID),
	), nil
}

// FishAll returns the traversal of the most recently configured query, or
// nil when no query has been configured yet.
func (f *Fisher) FishAll() *Traversal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}
