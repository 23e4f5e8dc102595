/*

Per-request fetch strategies. The Transport intercepts outbound requests
and dispatches by URL class:

  - network-first for documents and anything unclassified, with a
    synthesized offline page for documents when both network and cache fail
  - cache-first for static assets
  - freshness-checked cache for API requests, with serve-stale on network
    failure; health checks are always network-first with a synthesized
    offline JSON body as the fallback

While the worker is not Active the transport is a transparent pass-through.

*/

package offline

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// apiFreshness is how recent a cached API response's Date header must be
// for the cached copy to be served without hitting the network.
const apiFreshness = 5 * time.Minute

const offlinePage = `<!DOCTYPE html><html><head><title>Offline</title></head>` +
	`<body><h1>You are offline</h1><p>Reconnect to load live pool data.</p></body></html>`

// Transport is the interception layer. It wraps a base transport and
// applies the worker's fetch strategies per request.
type Transport struct {
	worker *Worker
	base   http.RoundTripper
}

// NewTransport builds the interception transport. base nil means
// http.DefaultTransport.
func NewTransport(w *Worker, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{worker: w, base: base}
}

type requestClass int

const (
	classDefault requestClass = iota
	classDocument
	classStatic
	classAPI
)

var apiPathPrefixes = []string{
	"/pools", "/ohlcv", "/advanced-lp-strategy", "/test-pool-id",
	"/range-comparison-chart", "/liquidity-distribution",
	"/test-any-pool", "/find-active-pools", "/health", "/api/",
}

var staticExtensions = map[string]bool{
	".js": true, ".css": true, ".png": true, ".svg": true,
	".ico": true, ".woff": true, ".woff2": true, ".map": true,
}

func classify(req *http.Request) requestClass {
	p := req.URL.Path
	if strings.HasPrefix(p, "/static/") || staticExtensions[path.Ext(p)] {
		return classStatic
	}
	for _, prefix := range apiPathPrefixes {
		if strings.HasPrefix(p, prefix) {
			return classAPI
		}
	}
	if p == "/" || path.Ext(p) == ".html" ||
		strings.Contains(req.Header.Get("Accept"), "text/html") {
		return classDocument
	}
	return classDefault
}

func isHealthPath(p string) bool {
	return strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/api/health")
}

// isQueueablePath matches the write endpoints whose failed POSTs are queued
// for background sync.
func isQueueablePath(p string) bool {
	return strings.HasSuffix(p, "/save-analysis") || strings.HasSuffix(p, "/share")
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.worker == nil || t.worker.State() != Active {
		return t.base.RoundTrip(req)
	}

	if req.Method == http.MethodPost && isQueueablePath(req.URL.Path) {
		return t.worker.postWithQueue(req, t.base)
	}
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	switch classify(req) {
	case classStatic:
		return t.worker.cacheFirst(req, t.base)
	case classAPI:
		return t.worker.apiStrategy(req, t.base)
	case classDocument:
		return t.worker.networkFirst(req, t.base, true)
	default:
		return t.worker.networkFirst(req, t.base, false)
	}
}

// networkFirst tries the live network, writing successes through to the
// dynamic bucket. On failure it falls back to the bucket, then (for
// documents only) to a synthesized offline page.
func (w *Worker) networkFirst(req *http.Request, base http.RoundTripper, isDocument bool) (*http.Response, error) {
	resp, err := base.RoundTrip(req)
	if err == nil {
		return w.writeThrough(w.dynamic, req, resp)
	}

	if stored, ok := w.bucketGet(w.dynamic, req.URL.String()); ok {
		w.log.Debug().Str("url", req.URL.String()).Msg("Network failed, serving cached copy")
		return storedToResponse(stored, req), nil
	}
	if isDocument {
		return synthesized(req, http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlinePage)), nil
	}
	return nil, err
}

// cacheFirst serves the persisted copy when present, otherwise fetches and
// stores. A network failure with no cached copy propagates.
func (w *Worker) cacheFirst(req *http.Request, base http.RoundTripper) (*http.Response, error) {
	if stored, ok := w.bucketGet(w.static, req.URL.String()); ok {
		return storedToResponse(stored, req), nil
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	return w.writeThrough(w.static, req, resp)
}

// apiStrategy implements the freshness-checked API path. Health checks skip
// the cache entirely and synthesize an offline body on failure.
func (w *Worker) apiStrategy(req *http.Request, base http.RoundTripper) (*http.Response, error) {
	url := req.URL.String()

	if isHealthPath(req.URL.Path) {
		resp, err := base.RoundTrip(req)
		if err == nil {
			return resp, nil
		}
		body := []byte(`{"status":"offline","error":"backend unreachable"}`)
		return synthesized(req, http.StatusServiceUnavailable, "application/json", body), nil
	}

	stored, cached := w.bucketGet(w.dynamic, url)
	if cached && w.isFresh(stored, url) {
		return storedToResponse(stored, req), nil
	}

	resp, err := base.RoundTrip(req)
	if err == nil {
		return w.writeThrough(w.dynamic, req, resp)
	}

	// Serve-stale: an expired copy beats no data at all.
	if cached {
		w.log.Debug().Str("url", url).Msg("Network failed, serving stale API response")
		return storedToResponse(stored, req), nil
	}
	return nil, err
}

// postWithQueue forwards a write request; if the network is down the
// request is queued in the dynamic bucket for background sync and the
// caller gets an Accepted response.
func (w *Worker) postWithQueue(req *http.Request, base http.RoundTripper) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	resp, err := base.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	key := queuedKeyPrefix + uuid.NewString()
	queued := &StoredResponse{
		Method:   req.Method,
		URL:      req.URL.String(),
		Body:     body,
		StoredAt: w.now(),
	}
	if putErr := w.dynamic.Put(key, queued); putErr != nil {
		w.log.Error().Err(putErr).Str("url", req.URL.String()).Msg("Failed to queue write request")
		return nil, err
	}

	w.log.Info().Str("url", req.URL.String()).Msg("Write request queued for background sync")
	return synthesized(req, http.StatusAccepted, "application/json", []byte(`{"queued":true}`)), nil
}

// writeThrough stores a successful response and returns an equivalent
// response with a fresh body reader. Storage failures are logged and the
// live response still flows to the caller.
func (w *Worker) writeThrough(bucket BucketStore, req *http.Request, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		stored := &StoredResponse{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			StoredAt:   w.now(),
		}
		if err := bucket.Put(req.URL.String(), stored); err != nil {
			w.log.Warn().Err(err).Str("url", req.URL.String()).Msg("Cache write failed, continuing")
		}
	}
	return resp, nil
}

// bucketGet wraps BucketStore.Get with swallow-and-log error semantics: a
// failing storage read is a miss, never an error.
func (w *Worker) bucketGet(bucket BucketStore, key string) (*StoredResponse, bool) {
	stored, ok, err := bucket.Get(key)
	if err != nil {
		w.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		return nil, false
	}
	return stored, ok
}

// isFresh checks the stored response's Date header against the freshness
// window. A missing or unparseable Date makes the entry permanently stale;
// that degradation is logged once per URL.
func (w *Worker) isFresh(stored *StoredResponse, url string) bool {
	date, err := http.ParseTime(stored.Header.Get("Date"))
	if err != nil {
		w.mu.Lock()
		warned := w.dateWarned[url]
		w.dateWarned[url] = true
		w.mu.Unlock()
		if !warned {
			w.log.Warn().Str("url", url).Msg("Cached response has no usable Date header, always treated as stale")
		}
		return false
	}
	return w.now().Sub(date) <= apiFreshness
}

func storedToResponse(stored *StoredResponse, req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(stored.StatusCode),
		StatusCode:    stored.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        stored.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(stored.Body)),
		ContentLength: int64(len(stored.Body)),
		Request:       req,
	}
}

func synthesized(req *http.Request, status int, contentType string, body []byte) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
