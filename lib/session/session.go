// Package session holds the cookie and header state that makes a run of
// requests toward a search source look like one continuous browsing session.
package session

import (
	"net/http"
	"sync"
)

// Context is the identity a Fisher presents to a source. It is shared by
// every traversal the Fisher spawns, so all mutation goes through a single
// lock: cookie overwrites are not commutative and two traversals absorbing
// responses concurrently must not interleave.
//
// A zero-token Context behaves as an anonymous identity.
type Context struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	headers map[string]string
}

func NewContext() *Context {
	return &Context{
		cookies: map[string]*http.Cookie{},
		headers: map[string]string{},
	}
}

// SetHeader sets a default header sent on every request of this session,
// e.g. a fixed User-Agent carried over from a browser handover.
func (c *Context) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Apply merges the session's headers and cookies into an outbound request.
// Headers already present on the request are not clobbered.
func (c *Context) Apply(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
}

// Absorb updates the session from the cookies a response sets. Same-named
// cookies are overwritten, new ones added, cookies the response does not
// mention are kept as they are.
func (c *Context) Absorb(res *http.Response) {
	if res == nil {
		return
	}
	c.AbsorbCookies(res.Cookies())
}

func (c *Context) AbsorbCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cookie := range cookies {
		if cookie == nil || cookie.Name == "" {
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
}

// Cookies returns a snapshot of the current cookie set, for persistence or
// for handing the session over to a browser.
func (c *Context) Cookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*http.Cookie, 0, len(c.cookies))
	for _, cookie := range c.cookies {
		copied := *cookie
		out = append(out, &copied)
	}
	return out
}

// Cookie returns the value of a named cookie, or "" if the session does not
// hold it.
func (c *Context) Cookie(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cookie, ok := c.cookies[name]
	if !ok {
		return ""
	}
	return cookie.Value
}

// Headers returns a snapshot of the session's default headers.
func (c *Context) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.headers))
	for key, value := range c.headers {
		out[key] = value
	}
	return out
}
