package scholar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"pubfisher/lib/fisher"
	"pubfisher/lib/records"
	"pubfisher/lib/session"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoSourceID means the record carries no source identifier, so the
	// citation-info page it would hang off does not exist.
	ErrNoSourceID = errors.New("publication has no source identifier")
	// ErrNoBibTeXLink means the citation-info page had no BibTeX export,
	// which happens for [CITATION]-only entries.
	ErrNoBibTeXLink = errors.New("citation info page offers no BibTeX link")
)

func (s Source) citationInfoURL(sourceID string) string {
	return fmt.Sprintf(
		"%s/scholar?q=info:%s:scholar.google.com/&output=cite&scirp=0&hl=en",
		s.host(), url.QueryEscape(sourceID),
	)
}

var (
	bibtexAuthorRe = regexp.MustCompile(`(?mi)^\s*author\s*=\s*[{"](.+?)[}"],?\s*$`)
	bibtexYearRe   = regexp.MustCompile(`(?mi)^\s*year\s*=\s*[{"]?(\d{4})[}"]?,?\s*$`)
)

// EnrichBibTeX fetches the BibTeX entry of pub through the given session and
// stores it on the record, updating the authors and year from the BibTeX
// fields when present, which are usually more complete than the truncated
// byline of a result row.
func (s Source) EnrichBibTeX(ctx context.Context, fetch fisher.PageFetcher, sess *session.Context, pub *records.Publication) error {
	if pub.ID == "" {
		return ErrNoSourceID
	}

	infoPage, err := fetch.Fetch(ctx, sess, s.citationInfoURL(pub.ID))
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(infoPage.Body))
	if err != nil {
		return err
	}

	href := ""
	doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if strings.TrimSpace(link.Text()) != "BibTeX" {
			return true
		}
		href = link.AttrOr("href", "")
		return false
	})
	if href == "" {
		return ErrNoBibTeXLink
	}

	base, err := url.Parse(infoPage.URL)
	if err != nil {
		return err
	}
	rel, err := url.Parse(href)
	if err != nil {
		return err
	}

	bibPage, err := fetch.Fetch(ctx, sess, base.ResolveReference(rel).String())
	if err != nil {
		return err
	}

	pub.BibTeX = strings.TrimSpace(string(bibPage.Body))
	if match := bibtexAuthorRe.FindStringSubmatch(pub.BibTeX); match != nil {
		pub.Authors = match[1]
	}
	if match := bibtexYearRe.FindStringSubmatch(pub.BibTeX); match != nil {
		pub.Year, _ = strconv.Atoi(match[1])
	}
	return nil
}
