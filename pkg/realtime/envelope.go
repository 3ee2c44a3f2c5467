// Package realtime keeps the local store reconciled with backend push
// events. It opens one websocket channel per watched table, translates
// inbound change envelopes into store mutations, supervises reconnection
// with jittered exponential backoff, and exposes connection health.
package realtime

import (
	"encoding/json"
	"errors"
)

// Event types carried by change envelopes.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Envelope is the wire format of one change event: the event type plus the
// new and/or old row as raw JSON.
type Envelope struct {
	EventType string          `json:"eventType"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}

// Handler applies one envelope to the local store. Returning ErrStaleRow
// counts the event as a stale drop rather than a failure.
type Handler func(Envelope) error

// ErrStaleRow signals that an UPDATE carried a row older than the cached one
// and was deliberately not applied.
var ErrStaleRow = errors.New("realtime: stale row")

// filterMessage narrows server-side delivery; sent immediately after a
// channel opens.
type filterMessage struct {
	Type   string `json:"type"`
	Filter string `json:"filter"`
}
