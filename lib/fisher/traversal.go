package fisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pubfisher/lib/records"
	"pubfisher/lib/session"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State of a traversal. Transitions:
//
//	Idle → Fetching → Extracting → Idle | Exhausted
//	Fetching → Paused            (challenge presented)
//	Paused → Idle                (resume; same page is re-fetched)
//	any non-terminal → Abandoned (cancel, or transport failure)
type State int

const (
	StateIdle State = iota
	StateFetching
	StateExtracting
	StatePaused
	StateExhausted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StatePaused:
		return "paused"
	case StateExhausted:
		return "exhausted"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

var (
	// ErrStaleResumeToken is returned by Resume when the token does not
	// match the active pause: the traversal already advanced, was never
	// paused, or was cancelled and restarted. State is left untouched.
	ErrStaleResumeToken = errors.New("resume token does not match the paused traversal")
	// ErrTraversalAbandoned is returned by Resume after Cancel. Not an
	// error in the operational sense, just a refusal to advance.
	ErrTraversalAbandoned = errors.New("traversal has been abandoned")
	// ErrNoCitationRef is returned when a citation-chain query is started
	// from a record the source gave no citation reference for.
	ErrNoCitationRef = errors.New("publication has no citation reference")
)

// Traversal is one run of the page-walking state machine for a single
// query: a lazy, forward-only, non-restartable sequence of publication
// records. Pull records with Next; when Next returns false, State and Err
// say why the sequence stopped: exhausted, paused on a challenge, cancelled,
// or failed in transport.
type Traversal struct {
	mu     sync.Mutex
	sess   *session.Context
	fetch  PageFetcher
	source Source

	desc    Descriptor
	cursor  string
	seen    map[string]bool
	buf     []records.Publication
	state   State
	pending *Challenge
	skipped int
	pages   int
	err     error
	delay   time.Duration
}

// Query returns the immutable descriptor this traversal was started with.
func (t *Traversal) Query() Descriptor {
	return t.desc
}

func (t *Traversal) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err reports the failure that terminated the sequence, if any.
func (t *Traversal) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Skipped counts result rows dropped because they failed to parse. Purely
// observational; a skipped row never aborts a page.
func (t *Traversal) Skipped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped
}

// PendingChallenge returns the challenge blocking this traversal, or nil
// when it is not paused.
func (t *Traversal) PendingChallenge() *Challenge {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePaused {
		return nil
	}
	return t.pending
}

// Next yields the next record of the sequence. ok is false when no further
// record can be produced right now; inspect State and Err to distinguish a
// finished sequence from a paused or failed one. A paused traversal yields
// again after Resume.
func (t *Traversal) Next(ctx context.Context) (rec records.Publication, ok bool) {
	for {
		t.mu.Lock()
		if len(t.buf) > 0 {
			rec = t.buf[0]
			t.buf = t.buf[1:]
			t.mu.Unlock()
			return rec, true
		}

		switch t.state {
		case StateExhausted, StateAbandoned, StatePaused:
			t.mu.Unlock()
			return records.Publication{}, false
		}
		if t.err != nil {
			t.mu.Unlock()
			return records.Publication{}, false
		}
		if t.cursor == "" {
			t.state = StateExhausted
			t.mu.Unlock()
			return records.Publication{}, false
		}

		t.state = StateFetching
		cursor := t.cursor
		pagesFetched := t.pages
		t.mu.Unlock()

		if pagesFetched > 0 {
			if err := t.sleepBetweenPages(ctx); err != nil {
				t.abandon(err)
				return records.Publication{}, false
			}
			// a cancel that landed during the delay must stop the fetch:
			// no request goes out once the traversal is abandoned
			t.mu.Lock()
			if t.state == StateAbandoned {
				t.mu.Unlock()
				return records.Publication{}, false
			}
			t.mu.Unlock()
		}

		ctx, span := tracer.Start(ctx, "traversal:page", trace.WithAttributes(
			attribute.String("query.kind", t.desc.Kind.String()),
			attribute.String("cursor", cursor),
		))
		page, fetchErr := t.fetch.Fetch(ctx, t.sess, cursor)
		span.End()

		t.mu.Lock()
		t.pages++
		if t.state == StateAbandoned {
			// cancelled mid-flight: the response is discarded unprocessed
			t.mu.Unlock()
			return records.Publication{}, false
		}
		if fetchErr != nil {
			t.err = fmt.Errorf("traversal fetch: %w", fetchErr)
			t.state = StateAbandoned
			t.mu.Unlock()
			return records.Publication{}, false
		}

		if chal := t.source.Classify(page); chal != nil {
			chal.Token = newResumeToken()
			t.pending = chal
			t.state = StatePaused
			slog.InfoContext(ctx, "traversal paused on challenge",
				"url", chal.PageURL,
				"token", chal.Token,
			)
			t.mu.Unlock()
			return records.Publication{}, false
		}

		t.state = StateExtracting
		recs, nextURL, skipped := t.source.Extract(page)
		t.skipped += skipped
		if skipped > 0 {
			slog.WarnContext(ctx, "skipped unparseable result rows",
				"count", skipped,
				"url", page.URL,
			)
		}

		for _, r := range recs {
			key := r.DedupKey()
			if t.seen[key] {
				continue
			}
			t.seen[key] = true
			t.buf = append(t.buf, r)
		}
		t.cursor = nextURL
		t.state = StateIdle
		t.mu.Unlock()
		// an empty page with more pages left loops around and fetches on
	}
}

// Resume supplies the solution of the pending challenge and lets the
// sequence advance again. The page that challenged is re-fetched, not
// skipped; if it challenges again the traversal simply pauses again.
func (t *Traversal) Resume(token string, solution Solution) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateAbandoned {
		return ErrTraversalAbandoned
	}
	if t.state != StatePaused || t.pending == nil || t.pending.Token != token {
		return ErrStaleResumeToken
	}

	t.sess.AbsorbCookies(solution.Cookies)
	t.pending = nil
	t.state = StateIdle
	return nil
}

// Cancel abandons the traversal: no further requests are issued, a pending
// challenge can no longer be resumed, and an in-flight fetch has its result
// discarded. Idempotent.
func (t *Traversal) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateAbandoned || t.state == StateExhausted {
		return
	}
	t.state = StateAbandoned
	t.pending = nil
	t.buf = nil
	t.seen = nil
}

func (t *Traversal) abandon(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateAbandoned {
		return
	}
	t.err = err
	t.state = StateAbandoned
}

// sleepBetweenPages waits the configured mean delay jittered by ±70%, the
// same spread a human-paced browser session shows.
func (t *Traversal) sleepBetweenPages(ctx context.Context) error {
	if t.delay <= 0 {
		return nil
	}

	jitter := int(float64(t.delay.Milliseconds()) * 0.7)
	offset := 0
	if jitter > 0 {
		if v, err := random.IntRange(-jitter, jitter); err == nil {
			offset = v
		}
	}
	wait := t.delay + time.Duration(offset)*time.Millisecond

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newResumeToken() string {
	token, err := random.String(16)
	if err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to
		// a constant rather than propagate an error nobody can act on
		return "resume"
	}
	return token
}
