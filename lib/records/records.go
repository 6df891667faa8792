// Package records defines the structured publication record yielded by a
// traversal and the dedup key contract that guarantees each record is yielded
// at most once per traversal.
package records

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// Publication is one scholarly work as described by a single result row of
// the source. Fields the source did not expose are left zero.
type Publication struct {
	// ID is the identifier the source assigned to this work
	// (the data-cid attribute on Google Scholar). May be empty.
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"`
	Venue   string `json:"venue,omitempty"`
	Year    int    `json:"year,omitempty"`

	Abstract      string `json:"abstract,omitempty"`
	CitationCount int    `json:"citation_count"`

	// CitedByID keys the source's "cited by" index and is what a
	// citation-chain query of this work starts from. May be empty when the
	// work has no recorded citations.
	CitedByID string `json:"cited_by_id,omitempty"`

	URL       string `json:"url,omitempty"`
	EPrintURL string `json:"eprint_url,omitempty"`

	// BibTeX is the raw BibTeX entry for this work, filled in only when the
	// caller asked for enrichment.
	BibTeX string `json:"bibtex,omitempty"`
}

var collapseSpace = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return collapseSpace.ReplaceAllString(s, " ")
}

// DedupKey identifies this publication within one traversal. The source's own
// identifier wins; rows the source did not tag fall back to a normalized
// title+authors composite so pagination overlap still dedupes.
func (p Publication) DedupKey() string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("%s|%s", normalize(p.Title), normalize(p.Authors))
}

// likelySameWorkThreshold is deliberately strict: JaroWinkler rates short
// strings generously, and a false merge loses a record.
const likelySameWorkThreshold = 0.95

// LikelySameWork reports whether two records plausibly describe the same
// work, e.g. a preprint and its published version surfacing in different
// traversals. Exact dedup within one traversal uses DedupKey; this is a
// fuzzy helper for callers merging across traversals.
func LikelySameWork(a, b Publication) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	at := normalize(a.Title)
	bt := normalize(b.Title)
	if at == "" || bt == "" {
		return false
	}
	return matchr.JaroWinkler(at, bt, false) >= likelySameWorkThreshold
}
