package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer is a minimal realtime endpoint: it upgrades connections under
// /{table}, hands each to the test, and keeps reading until the peer drops.
type feedServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	srv      *httptest.Server

	mu       sync.Mutex
	conns    chan *websocket.Conn
	inbound  chan []byte
	dials    atomic.Int32
	rejectWS atomic.Bool
}

func newFeedServer(t *testing.T) *feedServer {
	fs := &feedServer{
		t:       t,
		conns:   make(chan *websocket.Conn, 8),
		inbound: make(chan []byte, 8),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fs.rejectWS.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.dials.Add(1)
		fs.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fs.inbound <- data
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *feedServer) baseURL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *feedServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a client connection")
		return nil
	}
}

func (fs *feedServer) send(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func fastBackoff() Backoff {
	return Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2.0}
}

func rawRow(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSubscribeDispatchesEnvelopes(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	received := make(chan Envelope, 4)
	unsub, err := r.Subscribe(context.Background(), "claims", func(env Envelope) error {
		received <- env
		return nil
	}, "")
	require.NoError(t, err)
	defer unsub()

	conn := fs.nextConn(t)
	fs.send(t, conn, Envelope{EventType: EventInsert, New: rawRow(t, map[string]any{"id": 1})})

	select {
	case env := <-received:
		assert.Equal(t, EventInsert, env.EventType)
	case <-time.After(5 * time.Second):
		t.Fatal("envelope never reached the handler")
	}

	health := r.Health()
	assert.True(t, health.Connected)
	assert.Equal(t, 1, health.Channels)
	assert.False(t, health.LastEventAt.IsZero())
}

func TestSubscribeSendsFilterOnOpen(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	unsub, err := r.Subscribe(context.Background(), "claims", func(Envelope) error { return nil }, "status=needs-review")
	require.NoError(t, err)
	defer unsub()

	fs.nextConn(t)
	select {
	case data := <-fs.inbound:
		var msg struct {
			Type   string `json:"type"`
			Filter string `json:"filter"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "filter", msg.Type)
		assert.Equal(t, "status=needs-review", msg.Filter)
	case <-time.After(5 * time.Second):
		t.Fatal("filter message never arrived")
	}
}

func TestReconnectRestoresChannel(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	received := make(chan Envelope, 4)
	unsub, err := r.Subscribe(context.Background(), "claims", func(env Envelope) error {
		received <- env
		return nil
	}, "")
	require.NoError(t, err)
	defer unsub()

	first := fs.nextConn(t)
	first.Close()

	// The channel must come back on its own and keep dispatching.
	second := fs.nextConn(t)
	fs.send(t, second, Envelope{EventType: EventUpdate, New: rawRow(t, map[string]any{"id": 2})})

	select {
	case env := <-received:
		assert.Equal(t, EventUpdate, env.EventType)
	case <-time.After(5 * time.Second):
		t.Fatal("no dispatch after reconnect")
	}

	assert.GreaterOrEqual(t, fs.dials.Load(), int32(2))
	assert.Equal(t, []string{"claims"}, r.Tables(), "the channel set survives the reconnect")
}

func TestDialFailureRetriesUntilServerReturns(t *testing.T) {
	fs := newFeedServer(t)
	fs.rejectWS.Store(true)

	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	unsub, err := r.Subscribe(context.Background(), "payments", func(Envelope) error { return nil }, "")
	require.NoError(t, err)
	defer unsub()

	time.Sleep(50 * time.Millisecond)
	fs.rejectWS.Store(false)

	conn := fs.nextConn(t)
	require.NotNil(t, conn)
	assert.Eventually(t, func() bool { return r.Health().Connected }, 5*time.Second, 10*time.Millisecond)
}

func TestStaleRowDoesNotStopTheStream(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	var calls atomic.Int32
	unsub, err := r.Subscribe(context.Background(), "claims", func(env Envelope) error {
		if calls.Add(1) == 1 {
			return ErrStaleRow
		}
		return nil
	}, "")
	require.NoError(t, err)
	defer unsub()

	conn := fs.nextConn(t)
	fs.send(t, conn, Envelope{EventType: EventUpdate, New: rawRow(t, map[string]any{"id": 1})})
	fs.send(t, conn, Envelope{EventType: EventUpdate, New: rawRow(t, map[string]any{"id": 2})})

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), fs.dials.Load(), "a stale drop never tears the connection down")
}

func TestResubscribeReplacesChannel(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	defer r.Close()

	_, err := r.Subscribe(context.Background(), "claims", func(Envelope) error { return nil }, "")
	require.NoError(t, err)
	fs.nextConn(t)

	unsub, err := r.Subscribe(context.Background(), "claims", func(Envelope) error { return nil }, "")
	require.NoError(t, err)
	fs.nextConn(t)

	assert.Equal(t, 1, r.Health().Channels, "same (table, filter) replaces, never duplicates")

	unsub()
	assert.Equal(t, 0, r.Health().Channels)
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	fs := newFeedServer(t)
	r := New(Config{BaseURL: fs.baseURL(), Backoff: fastBackoff()})
	r.Close()

	_, err := r.Subscribe(context.Background(), "claims", func(Envelope) error { return nil }, "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 1 * time.Second, Multiplier: 2.0}

	for attempt, want := range []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	} {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(float64(want)*0.75), "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Duration(float64(want)*1.25), "attempt %d", attempt)
	}

	// Far past the cap the delay never exceeds Max.
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, b.Delay(10), 1*time.Second)
	}
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	d := b.Delay(0)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, time.Duration(float64(DefaultBackoff.Base)*1.25))
}
