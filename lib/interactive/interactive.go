// Package interactive lets a human solve a verification challenge in a real
// Chrome window. The paused traversal's session cookies are installed into
// the browser, the challenge page is opened, and once the human gets
// through, the browser's cookies are harvested back as the solution. The
// engine's non-goal of solving challenges automatically stands: all this
// does is put the prompt in front of a person.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pubfisher/lib/fisher"
	"pubfisher/lib/session"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ErrAbandoned means the browser was closed (or the context cancelled)
// before the challenge was solved.
var ErrAbandoned = errors.New("challenge abandoned before being solved")

// solvedExpression holds once none of the known challenge markers are left
// on the page, i.e. the source reloaded the result page.
const solvedExpression = `document.querySelector('#gs_captcha_ccl') === null &&
	document.querySelector('#captcha-form') === null &&
	document.querySelector('.g-recaptcha') === null`

type Options struct {
	// ExecPath points at a Chrome binary; empty means chromedp's default
	// lookup.
	ExecPath string
	// Timeout bounds the wait for the human. Zero waits until the caller's
	// context is done.
	Timeout time.Duration
}

// SolveChallenge opens chal in a visible browser under the traversal's
// session identity and blocks until the human passes the verification.
func SolveChallenge(ctx context.Context, sess *session.Context, chal *fisher.Challenge, opts Options) (fisher.Solution, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		// the whole point is that a human sees the window
		chromedp.Flag("headless", false),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	cookieParams, err := cookieParamsForURL(sess.Cookies(), chal.PageURL)
	if err != nil {
		return fisher.Solution{}, err
	}

	var solved bool
	var harvested []*network.Cookie
	err = chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, p := range cookieParams {
				if err := p.Do(ctx); err != nil {
					return fmt.Errorf("install session cookie %s: %w", p.Name, err)
				}
			}
			return nil
		}),
		chromedp.Navigate(chal.PageURL),
		chromedp.Poll(solvedExpression, &solved,
			chromedp.WithPollingInterval(time.Second)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			harvested, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fisher.Solution{}, fmt.Errorf("%w: %s", ErrAbandoned, err.Error())
	}

	return fisher.Solution{Cookies: harvestedToHTTP(harvested)}, nil
}

// cookieParamsForURL converts session cookies into browser SetCookie
// commands, defaulting the domain to the challenge page's host for cookies
// that never recorded one.
func cookieParamsForURL(cookies []*http.Cookie, pageURL string) ([]*network.SetCookieParams, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	out := make([]*network.SetCookieParams, 0, len(cookies))
	for _, cookie := range cookies {
		domain := cookie.Domain
		if domain == "" {
			domain = parsed.Hostname()
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		out = append(out, network.SetCookie(cookie.Name, cookie.Value).
			WithDomain(domain).
			WithPath(path))
	}
	return out, nil
}

func harvestedToHTTP(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		out = append(out, &http.Cookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: cookie.Domain,
			Path:   cookie.Path,
		})
	}
	return out
}
