/*

Background sync. Failed write requests are parked in the dynamic bucket
under queued: keys; a sync pass replays every one of them unconditionally.
Delivery is at-least-once with no ordering guarantee across entries and no
backoff: a failed replay simply stays queued for the next pass.

*/

package offline

import (
	"bytes"
	"context"
	"net/http"
	"strings"
)

const queuedKeyPrefix = "queued:"

// Sync replays every queued write request. Successful replays are removed
// from the queue and announced to subscribers as SyncSuccess events.
// Returns the number of entries replayed successfully.
func (w *Worker) Sync(ctx context.Context) (int, error) {
	keys, err := w.dynamic.Keys()
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, queuedKeyPrefix) {
			continue
		}
		stored, ok := w.bucketGet(w.dynamic, key)
		if !ok {
			continue
		}

		req, err := http.NewRequestWithContext(ctx, stored.Method, stored.URL, bytes.NewReader(stored.Body))
		if err != nil {
			w.log.Warn().Err(err).Str("url", stored.URL).Msg("Dropping unreplayable queued request")
			if delErr := w.dynamic.Delete(key); delErr != nil {
				w.log.Warn().Err(delErr).Str("key", key).Msg("Failed to drop queued request")
			}
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.base.RoundTrip(req)
		if err != nil {
			w.log.Debug().Err(err).Str("url", stored.URL).Msg("Queued request replay failed, will retry next sync")
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			w.log.Debug().Int("status", resp.StatusCode).Str("url", stored.URL).Msg("Queued request rejected, will retry next sync")
			continue
		}

		if err := w.dynamic.Delete(key); err != nil {
			w.log.Warn().Err(err).Str("key", key).Msg("Replayed but failed to dequeue, may replay again")
		}
		w.Broadcast(SyncSuccess{URL: stored.URL})
		replayed++
	}

	if replayed > 0 {
		w.log.Info().Int("replayed", replayed).Msg("Background sync pass complete")
	}
	return replayed, nil
}

// QueuedCount reports how many write requests are waiting for replay.
func (w *Worker) QueuedCount() int {
	keys, err := w.dynamic.Keys()
	if err != nil {
		return 0
	}
	count := 0
	for _, key := range keys {
		if strings.HasPrefix(key, queuedKeyPrefix) {
			count++
		}
	}
	return count
}
