/*

Offline worker lifecycle. A worker version moves through

	Installing -> WaitingToActivate -> Active -> Redundant

Install pre-populates the static bucket from a fixed manifest; the writes
are committed only after every asset fetched, so a single failure leaves
nothing behind and the previous worker version keeps serving. Activation
rotates persisted buckets: anything whose name is not one of the two
current versioned bucket names is deleted.

*/

package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/saucerview/saucerview/internal/logger"
)

// State is the worker lifecycle state.
type State int

const (
	Installing State = iota
	WaitingToActivate
	Active
	Redundant
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case WaitingToActivate:
		return "waiting-to-activate"
	case Active:
		return "active"
	case Redundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// analysisKey is the well-known dynamic-bucket key the CacheAnalysis
// command writes to.
const analysisKey = "saucerview:last-analysis"

const (
	staticBucketPrefix  = "saucerview-static-"
	dynamicBucketPrefix = "saucerview-dynamic-"
)

// Config wires a worker. All dependencies are injected; the worker holds
// no module-level state.
type Config struct {
	// Version names the bucket generation, e.g. "v2".
	Version string
	// StaticManifest lists the URLs pre-fetched during install.
	StaticManifest []string
	// Buckets is the persistent bucket backend.
	Buckets BucketManager
	// Base is the transport used for real network calls.
	Base http.RoundTripper
}

// Worker owns the offline buckets and implements the per-request fetch
// strategies (see strategy.go) and background sync (see sync.go).
type Worker struct {
	mu       sync.Mutex
	state    State
	version  string
	manifest []string
	buckets  BucketManager
	base     http.RoundTripper

	static  BucketStore
	dynamic BucketStore

	subscribers []chan Event

	// URLs already warned about for a missing/invalid Date header, so the
	// freshness degradation is logged once per URL instead of per read.
	dateWarned map[string]bool

	log zerolog.Logger
	now func() time.Time
}

// NewWorker creates a worker in the Installing state.
func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("offline worker requires a cache version")
	}
	if cfg.Buckets == nil {
		return nil, fmt.Errorf("offline worker requires a bucket manager")
	}
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}

	w := &Worker{
		state:      Installing,
		version:    cfg.Version,
		manifest:   cfg.StaticManifest,
		buckets:    cfg.Buckets,
		base:       base,
		dateWarned: make(map[string]bool),
		log:        logger.GetForComponent("offline_worker"),
		now:        time.Now,
	}

	var err error
	if w.static, err = cfg.Buckets.Open(w.staticBucketName()); err != nil {
		return nil, fmt.Errorf("failed to open static bucket: %w", err)
	}
	if w.dynamic, err = cfg.Buckets.Open(w.dynamicBucketName()); err != nil {
		return nil, fmt.Errorf("failed to open dynamic bucket: %w", err)
	}
	return w, nil
}

func (w *Worker) staticBucketName() string  { return staticBucketPrefix + w.version }
func (w *Worker) dynamicBucketName() string { return dynamicBucketPrefix + w.version }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Install fetches every manifest asset and commits them to the static
// bucket all-or-nothing. Any single fetch failure marks this worker
// version redundant and leaves the bucket untouched.
func (w *Worker) Install(ctx context.Context) error {
	w.mu.Lock()
	if w.state != Installing {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("install not allowed from state %s", state)
	}
	w.mu.Unlock()

	type fetched struct {
		url  string
		resp *StoredResponse
	}
	staged := make([]fetched, 0, len(w.manifest))

	for _, url := range w.manifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return w.failInstall(url, err)
		}
		resp, err := w.base.RoundTrip(req)
		if err != nil {
			return w.failInstall(url, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return w.failInstall(url, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return w.failInstall(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		staged = append(staged, fetched{url: url, resp: &StoredResponse{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			StoredAt:   w.now(),
		}})
	}

	// All assets fetched; commit.
	for _, f := range staged {
		if err := w.static.Put(f.url, f.resp); err != nil {
			return w.failInstall(f.url, err)
		}
	}

	w.mu.Lock()
	w.state = WaitingToActivate
	w.mu.Unlock()

	w.log.Info().
		Int("assets", len(staged)).
		Str("bucket", w.staticBucketName()).
		Msg("Offline worker installed")
	return nil
}

func (w *Worker) failInstall(url string, err error) error {
	w.mu.Lock()
	w.state = Redundant
	w.mu.Unlock()
	w.log.Error().Err(err).Str("url", url).Msg("Offline worker install failed, version is redundant")
	return fmt.Errorf("install failed fetching %s: %w", url, err)
}

// Activate transitions the worker to Active and rotates stale buckets:
// every persisted bucket not matching the two current names is removed.
func (w *Worker) Activate() error {
	w.mu.Lock()
	if w.state != WaitingToActivate {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("activate not allowed from state %s", state)
	}
	w.state = Active
	w.mu.Unlock()

	names, err := w.buckets.List()
	if err != nil {
		w.log.Warn().Err(err).Msg("Could not list buckets for rotation")
		return nil
	}
	for _, name := range names {
		if name == w.staticBucketName() || name == w.dynamicBucketName() {
			continue
		}
		if err := w.buckets.Remove(name); err != nil {
			w.log.Warn().Err(err).Str("bucket", name).Msg("Failed to remove stale bucket")
			continue
		}
		w.log.Info().Str("bucket", name).Msg("Removed stale cache bucket")
	}

	w.log.Info().Str("version", w.version).Msg("Offline worker active")
	return nil
}

// Handle processes one command from the application side.
func (w *Worker) Handle(cmd Command) error {
	switch c := cmd.(type) {
	case SkipWaiting:
		return w.Activate()
	case CacheAnalysis:
		stored := &StoredResponse{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       c.Payload,
			StoredAt:   w.now(),
		}
		if err := w.dynamic.Put(analysisKey, stored); err != nil {
			// Storage failures never crash the caller; the payload is simply
			// not available offline.
			w.log.Warn().Err(err).Msg("Failed to persist analysis payload")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// CachedAnalysis reads back the payload stored by the CacheAnalysis command.
func (w *Worker) CachedAnalysis() ([]byte, bool) {
	stored, ok, err := w.dynamic.Get(analysisKey)
	if err != nil || !ok {
		return nil, false
	}
	return stored.Body, true
}

// Subscribe registers an event listener. The returned function cancels the
// subscription. Slow subscribers drop events rather than blocking the worker.
func (w *Worker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, sub := range w.subscribers {
			if sub == ch {
				w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Broadcast fans an event out to every subscriber without blocking.
func (w *Worker) Broadcast(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}
