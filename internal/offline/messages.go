/*

Message protocol between the application and the offline worker. The
commands and the single event are a closed set of types so handlers can
match them exhaustively instead of switching on untyped payloads.

*/

package offline

import "encoding/json"

// Command is a request sent to the worker.
type Command interface{ isCommand() }

// SkipWaiting forces a worker that finished installing to activate
// immediately instead of waiting.
type SkipWaiting struct{}

func (SkipWaiting) isCommand() {}

// CacheAnalysis persists an analysis payload under a well-known key so it
// can be read back while offline.
type CacheAnalysis struct {
	Payload json.RawMessage `json:"payload"`
}

func (CacheAnalysis) isCommand() {}

// Event is a notification emitted by the worker.
type Event interface{ isEvent() }

// SyncSuccess reports that a queued write request was replayed successfully
// during a background sync pass.
type SyncSuccess struct {
	URL string `json:"url"`
}

func (SyncSuccess) isEvent() {}
