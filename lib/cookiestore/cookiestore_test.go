package cookiestore

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"pubfisher/lib/session"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cookies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour * 24 * 180).Truncate(time.Second)
	sess := session.NewContext()
	sess.SetHeader("User-Agent", "handover-agent")
	sess.AbsorbCookies([]*http.Cookie{
		{Name: "NID", Value: "abc", Domain: ".google.com", Path: "/", Expires: expires},
		{Name: "GSP", Value: "xyz"},
	})

	require.NoError(t, store.Save(ctx, "default", sess))

	restored, err := store.Load(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, "abc", restored.Cookie("NID"))
	require.Equal(t, "xyz", restored.Cookie("GSP"))
	require.Equal(t, "handover-agent", restored.Headers()["User-Agent"])

	// the restored session behaves like the in-process one
	req, err := http.NewRequest("GET", "https://scholar.google.com/scholar?q=x", nil)
	require.NoError(t, err)
	restored.Apply(req)
	cookie, err := req.Cookie("NID")
	require.NoError(t, err)
	require.Equal(t, "abc", cookie.Value)
}

func TestSaveReplacesPreviousState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := session.NewContext()
	first.AbsorbCookies([]*http.Cookie{
		{Name: "NID", Value: "old"},
		{Name: "STALE", Value: "gone-after-resave"},
	})
	require.NoError(t, store.Save(ctx, "default", first))

	second := session.NewContext()
	second.AbsorbCookies([]*http.Cookie{{Name: "NID", Value: "new"}})
	require.NoError(t, store.Save(ctx, "default", second))

	restored, err := store.Load(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, "new", restored.Cookie("NID"))
	require.Empty(t, restored.Cookie("STALE"))
}

func TestLoadUnknownProfileIsAnonymous(t *testing.T) {
	store := openTestStore(t)

	restored, err := store.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	require.Empty(t, restored.Cookies())
	require.Empty(t, restored.Headers())
}

func TestProfilesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := session.NewContext()
	a.AbsorbCookies([]*http.Cookie{{Name: "NID", Value: "profile-a"}})
	require.NoError(t, store.Save(ctx, "a", a))

	b, err := store.Load(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, b.Cookie("NID"))
}
