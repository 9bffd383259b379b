package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/affirm/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	snapshots map[string]map[string]models.CachedResponse
	putErr    error
}

func newMemStore() *memStore {
	return &memStore{snapshots: map[string]map[string]models.CachedResponse{}}
}

func (s *memStore) SnapshotNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.snapshots))
	for name := range s.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) PutSnapshot(ctx context.Context, name string, entries []models.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	snap := map[string]models.CachedResponse{}
	for _, e := range entries {
		snap[e.Key] = e
	}
	s.snapshots[name] = snap
	return nil
}

func (s *memStore) PutEntry(ctx context.Context, name string, entry models.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return errors.New("no such snapshot")
	}
	snap[entry.Key] = entry
	return nil
}

func (s *memStore) GetEntry(ctx context.Context, name, key string) (models.CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.snapshots[name][key]
	return entry, ok, nil
}

func (s *memStore) DeleteSnapshot(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, name)
	return nil
}

var testAssets = []string{"./", "./index.html", "./style.css", "./data/affirmations.json"}

// origin serves a small application and counts requests per path. Paths in failing answer 404.
type origin struct {
	*httptest.Server
	hits    sync.Map
	failing sync.Map
	total   atomic.Int64
}

func newOrigin(t *testing.T) *origin {
	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.total.Add(1)
		n, _ := o.hits.LoadOrStore(r.URL.Path, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		if _, fail := o.failing.Load(r.URL.Path); fail {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html>shell</html>")
		case "/style.css":
			io.WriteString(w, "body{}")
		case "/data/affirmations.json":
			io.WriteString(w, `{"categories":{"faith":"Faith"},"affirmations":[]}`)
		case "/extra.txt":
			io.WriteString(w, "extra")
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(o.Close)
	return o
}

func (o *origin) url(t *testing.T) *url.URL {
	u, err := url.Parse(o.URL + "/")
	require.NoError(t, err)
	return u
}

func newManager(t *testing.T, store Store, o *origin, version string) *Manager {
	return New(store, Options{Version: version, Origin: o.url(t), Assets: testAssets})
}

func get(t *testing.T, m *Manager, rawURL string, header map[string]string) (*http.Response, string, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := m.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body), nil
}

func TestOpen_InstallsAndActivates(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	m := newManager(t, store, o, "v1")

	require.NoError(t, m.Open(context.Background()))
	assert.Equal(t, StateActive, m.State())

	names, _ := store.SnapshotNames(context.Background())
	assert.Equal(t, []string{"v1"}, names)
	assert.Len(t, store.snapshots["v1"], len(testAssets))

	body, ok, err := m.Body(context.Background(), "./data/affirmations.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(body), "Faith")
}

func TestOpen_ReusesInstalledSnapshot(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	require.NoError(t, newManager(t, store, o, "v1").Open(context.Background()))
	before := o.total.Load()

	m := newManager(t, store, o, "v1")
	require.NoError(t, m.Open(context.Background()))
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, before, o.total.Load(), "an installed version must not be fetched again")
}

func TestVersionRollover(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	ctx := context.Background()

	v1 := newManager(t, store, o, "v1")
	require.NoError(t, v1.Open(ctx))

	v2 := newManager(t, store, o, "v2")
	require.NoError(t, v2.Install(ctx))
	assert.Equal(t, StateInstalled, v2.State())

	// Both exist until the new version activates and v1 keeps serving.
	names, _ := store.SnapshotNames(ctx)
	assert.Equal(t, []string{"v1", "v2"}, names)
	resp, _, err := get(t, v1, o.URL+"/style.css", nil)
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get(CacheHeader))

	require.NoError(t, v2.Activate(ctx))
	names, _ = store.SnapshotNames(ctx)
	assert.Equal(t, []string{"v2"}, names)
	assert.Equal(t, StateActive, v2.State())
}

func TestInstall_FailureStoresNothing(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	ctx := context.Background()

	v1 := newManager(t, store, o, "v1")
	require.NoError(t, v1.Open(ctx))

	o.failing.Store("/style.css", true)
	v2 := newManager(t, store, o, "v2")
	err := v2.Install(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInstallFailed))
	assert.Equal(t, StateIdle, v2.State())

	names, _ := store.SnapshotNames(ctx)
	assert.Equal(t, []string{"v1"}, names, "the previous version must be untouched")

	err = v2.Activate(ctx)
	assert.True(t, errors.Is(err, ErrNotInstalled))

	resp, _, err := get(t, v1, o.URL+"/index.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get(CacheHeader))
}

func TestOpen_FailedUpgradeKeepsServingPreviousVersion(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, newManager(t, store, o, "v1").Open(ctx))
	o.Close()

	// A new process on the next version, started while offline.
	v2 := newManager(t, store, o, "v2")
	err := v2.Open(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInstallFailed))
	assert.Equal(t, StateIdle, v2.State())

	names, _ := store.SnapshotNames(ctx)
	assert.Equal(t, []string{"v1"}, names)

	resp, body, err := get(t, v2, o.URL+"/style.css", nil)
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get(CacheHeader))
	assert.Equal(t, "body{}", body)

	resp, body, err = get(t, v2, o.URL+"/some/page", map[string]string{"Sec-Fetch-Dest": "document"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Header.Get(CacheHeader))
	assert.Equal(t, "<html>shell</html>", body)

	data, ok, err := v2.Body(ctx, "./data/affirmations.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "Faith")
}

func TestInstall_StoreFailureRevertsState(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	store.putErr = errors.New("disk full")

	m := newManager(t, store, o, "v1")
	err := m.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
}

func TestInstall_NoOrigin(t *testing.T) {
	m := New(newMemStore(), Options{Version: "v1"})
	err := m.Install(context.Background())
	assert.True(t, errors.Is(err, ErrNoOrigin))
}

func TestRoundTrip_ServesCacheFirst(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, newMemStore(), o, "v1")
	require.NoError(t, m.Open(context.Background()))
	o.Close()

	resp, body, err := get(t, m, o.URL+"/index.html", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>shell</html>", body)
}

func TestRoundTrip_StoresSameOriginSuccess(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, newMemStore(), o, "v1")
	require.NoError(t, m.Open(context.Background()))

	resp, body, err := get(t, m, o.URL+"/extra.txt", nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get(CacheHeader))
	assert.Equal(t, "extra", body)
	m.Wait()

	o.Close()
	resp, body, err = get(t, m, o.URL+"/extra.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get(CacheHeader))
	assert.Equal(t, "extra", body)
}

func TestRoundTrip_DoesNotStoreOthers(t *testing.T) {
	o := newOrigin(t)
	other := newOrigin(t)
	store := newMemStore()
	m := newManager(t, store, o, "v1")
	require.NoError(t, m.Open(context.Background()))

	resp, _, err := get(t, m, o.URL+"/teapot", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	_, _, err = get(t, m, other.URL+"/extra.txt", nil)
	require.NoError(t, err)
	m.Wait()

	assert.Len(t, store.snapshots["v1"], len(testAssets))
}

func TestRoundTrip_OfflineNavigationFallback(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, newMemStore(), o, "v1")
	require.NoError(t, m.Open(context.Background()))
	o.Close()

	resp, body, err := get(t, m, o.URL+"/some/deep/page", map[string]string{"Accept": "text/html,application/xhtml+xml"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Header.Get(CacheHeader))
	assert.Equal(t, "<html>shell</html>", body)

	_, _, err = get(t, m, o.URL+"/api/thing.json", map[string]string{"Accept": "application/json"})
	assert.Error(t, err, "non-navigation requests are not given the shell")
}

func TestRoundTrip_IdlePassesThrough(t *testing.T) {
	o := newOrigin(t)
	store := newMemStore()
	m := newManager(t, store, o, "v1")

	_, body, err := get(t, m, o.URL+"/extra.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "extra", body)
	m.Wait()
	assert.Empty(t, store.snapshots)
}

func TestHandler_ProxiesThroughCache(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, newMemStore(), o, "v1")
	require.NoError(t, m.Open(context.Background()))
	o.Close()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shell"))

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "State(42)", State(42).String())
}
