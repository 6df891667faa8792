// Package fetcher performs single page round trips against a search source.
// It owns no traversal state: the session context it is handed carries the
// identity, the URL it is handed is the cursor. Everything above (challenge
// classification, extraction, pagination) happens elsewhere.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pubfisher/lib/restyutil"
	"pubfisher/lib/session"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pubfisher.lib.fetcher")

// DefaultUserAgent is sent when the session does not pin its own. Sources
// serve a stripped page layout to unknown agents, which breaks extraction.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Page is one raw fetched response. URL is the final URL after redirects,
// which matters because relative next-page links resolve against it.
type Page struct {
	URL    string
	Status int
	Body   []byte
}

// TransportError is a connectivity or timeout failure. It is distinct from
// StatusError: the request never completed.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Err.Error())
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a completed request with a non-200 status. Challenge pages
// come back as 200, so a non-200 is never something to classify, only to
// report.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

type Client struct {
	http *resty.Client
}

type Options struct {
	// Timeout per round trip. Defaults to 30s.
	Timeout time.Duration
	// Output, when set, receives a transcript of every request/response.
	Output restyutil.Output
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("User-Agent", DefaultUserAgent)
	client.SetHeader("Accept-Language", "en-US")

	// the session rides in on the request context; the hook runs once the
	// raw *http.Request exists, which is the only point resty exposes it
	client.SetPreRequestHook(func(_ *resty.Client, req *http.Request) error {
		sess, ok := req.Context().Value(sessionKey{}).(*session.Context)
		if ok {
			sess.Apply(req)
		}
		return nil
	})

	restyutil.InstrumentClient(client, tracer, opts.Output)

	return &Client{http: client}
}

type sessionKey struct{}

// Fetch performs one GET of pageURL under the given session identity. The
// session is applied to the request and absorbs whatever cookies the
// response sets; the body is returned uninterpreted.
func (c *Client) Fetch(ctx context.Context, sess *session.Context, pageURL string) (Page, error) {
	ctx = context.WithValue(ctx, sessionKey{}, sess)

	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return Page{}, &TransportError{URL: pageURL, Err: err}
	}

	sess.AbsorbCookies(res.Cookies())

	finalURL := pageURL
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	page := Page{
		URL:    finalURL,
		Status: res.StatusCode(),
		Body:   res.Body(),
	}
	if res.StatusCode() != http.StatusOK {
		return page, &StatusError{URL: pageURL, Status: res.StatusCode()}
	}
	return page, nil
}
