package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

// CacheHeader is set on responses served from a snapshot.
const CacheHeader = "X-Affirm-Cache"

// RoundTrip serves req from the active snapshot when it holds a match and otherwise goes to
// the network. Successful same-origin GET responses are stored in the background. When the
// network fails for a page navigation, the cached root document is returned instead.
func (m *Manager) RoundTrip(req *http.Request) (*http.Response, error) {
	active := m.activeSnapshot()
	cacheable := active != "" && req.Method == http.MethodGet

	if cacheable {
		entry, ok, err := m.store.GetEntry(req.Context(), active, requestKey(req.URL))
		if err != nil {
			logger.Warn("Cache lookup failed", "url", req.URL.String(), "error", err)
		} else if ok {
			return entryResponse(entry, req, "hit"), nil
		}
	}

	resp, err := m.next.RoundTrip(req)
	if err != nil {
		if cacheable && isNavigation(req) {
			if fallback, ok := m.rootDocument(req.Context(), active); ok {
				logger.Debug("Serving cached root document while offline", "url", req.URL.String())
				return entryResponse(fallback, req, "fallback"), nil
			}
		}
		return nil, err
	}

	if !cacheable || resp.StatusCode != http.StatusOK || !m.sameOrigin(req.URL) {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	m.storeAsync(active, models.CachedResponse{
		Key:      requestKey(req.URL),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now(),
	})
	return resp, nil
}

func (m *Manager) storeAsync(snapshot string, entry models.CachedResponse) {
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
		defer cancel()
		if err := m.store.PutEntry(ctx, snapshot, entry); err != nil {
			logger.Warn("Failed to cache response", "key", entry.Key, "error", err)
		}
	}()
}

func (m *Manager) rootDocument(ctx context.Context, snapshot string) (models.CachedResponse, bool) {
	u, err := m.resolve(constants.RootDocumentPath)
	if err != nil {
		return models.CachedResponse{}, false
	}
	entry, ok, err := m.store.GetEntry(ctx, snapshot, requestKey(u))
	if err != nil {
		logger.Warn("Root document lookup failed", "error", err)
		return models.CachedResponse{}, false
	}
	return entry, ok
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" || req.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func entryResponse(entry models.CachedResponse, req *http.Request, source string) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(CacheHeader, source)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Status, http.StatusText(entry.Status)),
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

var forwardedHeaders = []string{"Accept", "Accept-Language", "Content-Type", "Sec-Fetch-Dest", "Sec-Fetch-Mode", "User-Agent"}

// Handler serves the application shell on a local address, proxying every request to the
// origin through the manager so it keeps working offline.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.origin == nil {
			http.Error(w, ErrNoOrigin.Error(), http.StatusServiceUnavailable)
			return
		}

		target, err := m.resolve("./" + strings.TrimPrefix(r.URL.Path, "/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		target.RawQuery = r.URL.RawQuery

		var body io.Reader
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			body = r.Body
		}
		out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, h := range forwardedHeaders {
			if v := r.Header.Get(h); v != "" {
				out.Header.Set(h, v)
			}
		}

		resp, err := m.RoundTrip(out)
		if err != nil {
			logger.Warn("Upstream request failed", "url", target.String(), "error", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Debug("Response copy interrupted", "error", err)
		}
	})
}
