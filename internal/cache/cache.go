// Package cache keeps a versioned local snapshot of the application assets and serves
// outgoing requests from it before going to the network.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

var (
	ErrInstallFailed = errors.New("cache install failed")
	ErrNotInstalled  = errors.New("cache version is not installed")
	ErrNoOrigin      = errors.New("no origin configured")
)

// Store is the snapshot persistence the manager needs.
type Store interface {
	SnapshotNames(ctx context.Context) ([]string, error)
	PutSnapshot(ctx context.Context, name string, entries []models.CachedResponse) error
	PutEntry(ctx context.Context, name string, entry models.CachedResponse) error
	GetEntry(ctx context.Context, name, key string) (models.CachedResponse, bool, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

type State int

const (
	StateIdle State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	// Version names the snapshot this manager installs and serves from.
	Version string
	// Origin is the application's own origin. Relative assets resolve against it and only
	// responses from it are stored opportunistically.
	Origin *url.URL
	// Assets overrides constants.InstallAssets.
	Assets []string
	// Transport performs network requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// WriteTimeout bounds each background store of a network response.
	WriteTimeout time.Duration
}

type Manager struct {
	store        Store
	version      string
	origin       *url.URL
	assets       []string
	next         http.RoundTripper
	writeTimeout time.Duration

	mu     sync.RWMutex
	state  State
	active string

	pending sync.WaitGroup
}

func New(store Store, opts Options) *Manager {
	m := &Manager{
		store:        store,
		version:      opts.Version,
		origin:       opts.Origin,
		assets:       opts.Assets,
		next:         opts.Transport,
		writeTimeout: opts.WriteTimeout,
	}
	if m.version == "" {
		m.version = constants.CacheVersion
	}
	if m.assets == nil {
		m.assets = constants.InstallAssets
	}
	if m.next == nil {
		m.next = http.DefaultTransport
	}
	if m.writeTimeout == 0 {
		m.writeTimeout = 5 * time.Second
	}
	return m
}

func (m *Manager) Version() string {
	return m.version
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) activeSnapshot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Open brings the manager to the active state. An already installed snapshot for this
// version is activated as-is; otherwise the version is installed first. When installation
// fails the manager stays idle but keeps serving the newest snapshot already in the store,
// which is left untouched.
func (m *Manager) Open(ctx context.Context) error {
	names, err := m.store.SnapshotNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	installed := false
	for _, name := range names {
		if name == m.version {
			installed = true
			break
		}
	}

	if installed {
		m.setState(StateInstalled)
	} else if err := m.Install(ctx); err != nil {
		if len(names) > 0 {
			m.serveFrom(names[len(names)-1])
		}
		return err
	}
	return m.Activate(ctx)
}

// serveFrom keeps answering from a surviving snapshot of another version.
func (m *Manager) serveFrom(name string) {
	m.mu.Lock()
	m.active = name
	m.mu.Unlock()
	logger.Info("Serving previous cache snapshot", "name", name, "version", m.version)
}

// Install fetches every asset and stores them as the snapshot for this version. Any failed
// asset aborts the install and nothing is written, so a partially cached version never exists.
func (m *Manager) Install(ctx context.Context) error {
	if m.origin == nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, ErrNoOrigin)
	}

	m.mu.Lock()
	prev := m.state
	m.state = StateInstalling
	m.mu.Unlock()

	entries, err := m.fetchAssets(ctx)
	if err == nil {
		err = m.store.PutSnapshot(ctx, m.version, entries)
	}
	if err != nil {
		m.setState(prev)
		logger.Warn("Cache install aborted", "version", m.version, "error", err)
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	m.setState(StateInstalled)
	logger.Info("Cache installed", "version", m.version, "assets", len(entries))
	return nil
}

func (m *Manager) fetchAssets(ctx context.Context) ([]models.CachedResponse, error) {
	entries := make([]models.CachedResponse, 0, len(m.assets))
	for _, asset := range m.assets {
		u, err := m.resolve(asset)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := m.next.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%s: unexpected status %d", asset, resp.StatusCode)
		}
		entries = append(entries, models.CachedResponse{
			Key:      requestKey(u),
			Status:   resp.StatusCode,
			Header:   resp.Header.Clone(),
			Body:     body,
			StoredAt: time.Now(),
		})
	}
	return entries, nil
}

// Activate deletes every snapshot except this version's and starts serving from it.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInstalled {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotInstalled, state)
	}
	m.state = StateActivating
	m.mu.Unlock()

	var errs []error
	names, err := m.store.SnapshotNames(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list snapshots: %w", err))
	}
	for _, name := range names {
		if name == m.version {
			continue
		}
		if err := m.store.DeleteSnapshot(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete stale snapshot %s: %w", name, err))
			continue
		}
		logger.Info("Deleted stale cache snapshot", "name", name)
	}

	m.mu.Lock()
	m.active = m.version
	m.state = StateActive
	m.mu.Unlock()

	return errors.Join(errs...)
}

// Status describes the manager and the snapshots in the store.
type Status struct {
	Version   string
	State     State
	Snapshots []string
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	names, err := m.store.SnapshotNames(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Version: m.version, State: m.State(), Snapshots: names}, nil
}

// Body returns the stored body of asset from the current snapshot.
func (m *Manager) Body(ctx context.Context, asset string) ([]byte, bool, error) {
	u, err := m.resolve(asset)
	if err != nil {
		return nil, false, err
	}
	name := m.activeSnapshot()
	if name == "" {
		name = m.version
	}
	entry, ok, err := m.store.GetEntry(ctx, name, requestKey(u))
	if err != nil || !ok {
		return nil, ok, err
	}
	return entry.Body, true, nil
}

// Wait blocks until background writes of network responses have finished.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// Client returns an http.Client whose requests go through the manager.
func (m *Manager) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: m, Timeout: timeout}
}

func (m *Manager) resolve(asset string) (*url.URL, error) {
	ref, err := url.Parse(asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset %q: %w", asset, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if m.origin == nil {
		return nil, ErrNoOrigin
	}
	return m.origin.ResolveReference(ref), nil
}

func (m *Manager) sameOrigin(u *url.URL) bool {
	if m.origin == nil {
		return false
	}
	return u.Scheme == m.origin.Scheme && u.Host == m.origin.Host
}

// requestKey identifies a stored response: the absolute URL without its fragment.
func requestKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}
