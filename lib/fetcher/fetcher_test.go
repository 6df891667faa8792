package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pubfisher/lib/session"

	"github.com/stretchr/testify/require"
)

func TestFetchAppliesAndAbsorbsSession(t *testing.T) {
	var gotCookie, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("NID"); err == nil {
			gotCookie = c.Value
		}
		gotAgent = r.Header.Get("User-Agent")
		http.SetCookie(w, &http.Cookie{Name: "NID", Value: "updated"})
		http.SetCookie(w, &http.Cookie{Name: "GSP", Value: "fresh"})
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	sess := session.NewContext()
	sess.SetHeader("User-Agent", "pinned-agent")
	sess.AbsorbCookies([]*http.Cookie{{Name: "NID", Value: "initial"}})

	client := NewClient(Options{})
	page, err := client.Fetch(context.Background(), sess, server.URL+"/scholar?q=x")
	require.NoError(t, err)

	require.Equal(t, "initial", gotCookie)
	require.Equal(t, "pinned-agent", gotAgent)
	require.Equal(t, []byte("<html>ok</html>"), page.Body)
	require.Equal(t, http.StatusOK, page.Status)

	// response cookies overwrite and add
	require.Equal(t, "updated", sess.Cookie("NID"))
	require.Equal(t, "fresh", sess.Cookie("GSP"))
}

func TestFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{})
	_, err := client.Fetch(context.Background(), session.NewContext(), server.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(Options{Timeout: time.Second})
	_, err := client.Fetch(context.Background(), session.NewContext(), server.URL)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
