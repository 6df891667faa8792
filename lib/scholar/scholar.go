// Package scholar holds the page-layout knowledge for Google Scholar: query
// URL construction, recognition of its human-verification pages and
// extraction of publication records from result pages. It implements
// fisher.Source; nothing outside this package knows what a result row
// looks like.
package scholar

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"pubfisher/lib/fetcher"
	"pubfisher/lib/fisher"
	"pubfisher/lib/htmlutil"
	"pubfisher/lib/records"

	"github.com/PuerkitoBio/goquery"
)

const DefaultHost = "https://scholar.google.com"

// Source targets one Google Scholar host. The zero value uses DefaultHost.
type Source struct {
	Host string
}

func (s Source) host() string {
	if s.Host == "" {
		return DefaultHost
	}
	return strings.TrimSuffix(s.Host, "/")
}

// KeywordQueryURL builds the first-page URL of a keyword search. hl=en pins
// the result language so the layout markers stay predictable.
func (s Source) KeywordQueryURL(keywords string) string {
	return fmt.Sprintf("%s/scholar?q=%s&hl=en", s.host(), url.QueryEscape(keywords))
}

// CitationsQueryURL builds the first-page URL of a "cited by" query.
func (s Source) CitationsQueryURL(citedByID string) string {
	return fmt.Sprintf("%s/scholar?cites=%s&hl=en", s.host(), url.QueryEscape(citedByID))
}

// Classify decides whether a fetched page is a verification challenge.
// Detection is structural: the captcha block Scholar serves inline
// (#gs_captcha_ccl) or the /sorry/ interstitial's recaptcha form. Status
// codes say nothing, the source returns 200 either way. Anything
// unrecognized, including unparseable bodies, classifies as a normal page
// and simply extracts zero records.
func (s Source) Classify(page fetcher.Page) *fisher.Challenge {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil
	}

	isChallenge := doc.Find("#gs_captcha_ccl").Length() > 0 ||
		doc.Find("#captcha-form").Length() > 0 ||
		doc.Find("form#gs_captcha_f").Length() > 0 ||
		doc.Find(".g-recaptcha").Length() > 0

	if !isChallenge {
		return nil
	}
	return &fisher.Challenge{
		PageURL:  page.URL,
		Artifact: page.Body,
	}
}

// Extract parses a normal result page into publication records plus the URL
// of the next results page ("" on the last page). A row that fails to parse
// is counted and skipped; one bad row never costs the rest of the page.
func (s Source) Extract(page fetcher.Page) ([]records.Publication, string, int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, "", 0
	}

	var recs []records.Publication
	skipped := 0
	doc.Find("div.gs_or").Each(func(_ int, row *goquery.Selection) {
		rec, ok := publicationFromRow(row)
		if !ok {
			skipped++
			return
		}
		recs = append(recs, rec)
	})

	return recs, s.nextPageURL(doc, page.URL), skipped
}

// nextPageURL finds the link behind the "next" navigation arrow and
// resolves it against the page it appeared on.
func (s Source) nextPageURL(doc *goquery.Document, pageURL string) string {
	href, ok := doc.Find(".gs_ico_nav_next").Parent().Attr("href")
	if !ok || href == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		base, err = url.Parse(s.host())
		if err != nil {
			return ""
		}
	}
	rel, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(rel).String()
}

var (
	yearRe       = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	citesIDRe    = regexp.MustCompile(`cites=([\w-]+)`)
	citedByNumRe = regexp.MustCompile(`\d+`)
)

// cleanedText flattens every text node under a selection and normalizes the
// result.
func cleanedText(sel *goquery.Selection) string {
	var buf strings.Builder
	for _, node := range sel.Nodes {
		buf.WriteString(htmlutil.GetText(node))
	}
	return htmlutil.CleanText(buf.String())
}

func publicationFromRow(row *goquery.Selection) (records.Publication, bool) {
	var rec records.Publication

	rec.ID = row.AttrOr("data-cid", "")

	titleHeading := row.Find("h3.gs_rt")
	authorBox := row.Find("div.gs_a")
	if titleHeading.Length() == 0 || authorBox.Length() == 0 {
		return rec, false
	}

	// rip out the [CITATION]/[BOOK] marks so they don't pollute the title
	cleaned := titleHeading.Clone()
	cleaned.Find("span.gs_ctu, span.gs_ctc").Remove()
	rec.Title = cleanedText(cleaned)
	rec.URL = cleaned.Find("a").AttrOr("href", "")

	rec.Authors, rec.Venue, rec.Year = parseAuthorBox(cleanedText(authorBox))
	rec.Abstract = parseAbstract(cleanedText(row.Find("div.gs_rs")))
	rec.CitationCount, rec.CitedByID = parseCitedBy(row.Find("div.gs_fl a"))
	rec.EPrintURL = row.Find("div.gs_ggs.gs_fl a").AttrOr("href", "")

	return rec, true
}

// parseAuthorBox splits the green byline under a title, which reads like
// "A Vaswani, N Shazeer - Advances in neural information…, 2017 - papers.nips.cc".
func parseAuthorBox(text string) (authors, venue string, year int) {
	parts := strings.SplitN(text, " - ", 2)
	authors = strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return authors, "", 0
	}

	meta := parts[1]
	// drop the trailing host segment
	if idx := strings.LastIndex(meta, " - "); idx >= 0 {
		meta = meta[:idx]
	}
	if match := yearRe.FindStringSubmatch(meta); match != nil {
		year, _ = strconv.Atoi(match[1])
	}
	venue = strings.TrimSpace(strings.TrimSuffix(
		yearRe.ReplaceAllString(meta, ""), ", ",
	))
	venue = strings.TrimSuffix(venue, ",")
	return authors, venue, year
}

func parseAbstract(text string) string {
	if len(text) >= 8 && strings.EqualFold(text[:8], "abstract") {
		text = strings.TrimLeft(text[8:], " :-")
	}
	return text
}

// parseCitedBy walks the footer links of a row looking for "Cited by N",
// whose href also carries the identifier a citation-chain query needs.
func parseCitedBy(links *goquery.Selection) (count int, citedByID string) {
	links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
		text := link.Text()
		if !strings.Contains(text, "Cited by") {
			return true
		}
		if num := citedByNumRe.FindString(text); num != "" {
			count, _ = strconv.Atoi(num)
		}
		if match := citesIDRe.FindStringSubmatch(link.AttrOr("href", "")); match != nil {
			citedByID = match[1]
		}
		return false
	})
	return count, citedByID
}
