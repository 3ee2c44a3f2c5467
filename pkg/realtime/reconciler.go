package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelhealth/claimdeck/pkg/logging"
)

// ErrClosed is returned by Subscribe after the reconciler has been shut down.
var ErrClosed = errors.New("realtime: reconciler closed")

// Health is the connection state surfaced to the dashboard header.
type Health struct {
	Connected   bool
	LastEventAt time.Time
	Channels    int
}

// Config wires a Reconciler.
type Config struct {
	// BaseURL is the realtime endpoint root; channels attach at
	// {BaseURL}/{table}.
	BaseURL string
	Backoff Backoff
	Logger  *logging.Logger
	// Dialer is overridable for tests; nil uses websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Reconciler owns one websocket channel per watched (table, filter) pair.
// Each channel supervises itself: on transport error it reconnects with
// jittered exponential backoff and re-sends its filter, so the set of open
// channels after a disconnect is exactly the set before it.
type Reconciler struct {
	cfg    Config
	log    *logging.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	channels  map[channelKey]*channel
	live      int
	lastEvent time.Time
	closed    bool
}

type channelKey struct {
	table  string
	filter string
}

type channel struct {
	key     channelKey
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Reconciler. Call Subscribe per watched table, Close on
// shutdown.
func New(cfg Config) *Reconciler {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Reconciler{
		cfg:      cfg,
		log:      log,
		dialer:   dialer,
		channels: make(map[channelKey]*channel),
	}
}

// Subscribe opens a supervised channel for one table, optionally narrowed by
// a server-side filter. Subscribing again for the same (table, filter)
// replaces the previous channel; the old one is closed first so no duplicate
// channels leak. The returned func unsubscribes just this channel.
func (r *Reconciler) Subscribe(ctx context.Context, table string, handler Handler, filter string) (func(), error) {
	key := channelKey{table: table, filter: filter}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	old := r.channels[key]
	delete(r.channels, key)
	r.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	chCtx, cancel := context.WithCancel(ctx)
	ch := &channel{key: key, handler: handler, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	r.channels[key] = ch
	r.mu.Unlock()

	go r.run(chCtx, ch)

	return func() { r.unsubscribe(key, ch) }, nil
}

func (r *Reconciler) unsubscribe(key channelKey, ch *channel) {
	r.mu.Lock()
	if r.channels[key] == ch {
		delete(r.channels, key)
	}
	r.mu.Unlock()
	ch.cancel()
	<-ch.done
}

// UnsubscribeAll closes every open channel.
func (r *Reconciler) UnsubscribeAll() {
	r.mu.Lock()
	channels := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.channels = make(map[channelKey]*channel)
	r.mu.Unlock()

	for _, ch := range channels {
		ch.cancel()
		<-ch.done
	}
}

// Close shuts the reconciler down; Subscribe fails afterwards.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.UnsubscribeAll()
}

// Health reports whether at least one channel is live, the timestamp of the
// last received event or transport signal, and the configured channel count.
func (r *Reconciler) Health() Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Health{
		Connected:   r.live > 0,
		LastEventAt: r.lastEvent,
		Channels:    len(r.channels),
	}
}

// Tables returns the tables with a configured channel, for diagnostics.
func (r *Reconciler) Tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.channels))
	for key := range r.channels {
		out = append(out, key.table)
	}
	return out
}

// run is the per-channel supervisor loop: dial, stream, and on any transport
// failure back off and dial again until the channel is cancelled.
func (r *Reconciler) run(ctx context.Context, ch *channel) {
	defer close(ch.done)
	log := r.log.WithTable(ch.key.table)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := r.dial(ctx, ch.key)
		if err != nil {
			r.markEvent()
			log.Warn("realtime dial failed", "attempt", attempt, "error", err)
			reconnects.WithLabelValues(ch.key.table).Inc()
			if !sleep(ctx, r.cfg.Backoff.Delay(attempt)) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		r.markLive(+1)
		log.Info("realtime channel open", "filter", ch.key.filter)

		err = r.stream(ctx, conn, ch)
		r.markLive(-1)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warn("realtime channel lost, reconnecting", "error", err)
		reconnects.WithLabelValues(ch.key.table).Inc()
		if !sleep(ctx, r.cfg.Backoff.Delay(attempt)) {
			return
		}
		attempt++
	}
}

func (r *Reconciler) dial(ctx context.Context, key channelKey) (*websocket.Conn, error) {
	u, err := url.JoinPath(r.cfg.BaseURL, key.table)
	if err != nil {
		return nil, err
	}
	conn, resp, err := r.dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if key.filter != "" {
		if err := conn.WriteJSON(filterMessage{Type: "filter", Filter: key.filter}); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// stream reads envelopes until the connection drops or the context ends.
func (r *Reconciler) stream(ctx context.Context, conn *websocket.Conn, ch *channel) error {
	// Unblock ReadMessage when the channel is cancelled.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()

	log := r.log.WithTable(ch.key.table)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn("bad envelope", "error", err)
			continue
		}
		r.markEvent()
		eventsReceived.WithLabelValues(ch.key.table, env.EventType).Inc()

		switch err := ch.handler(env); {
		case err == nil:
		case errors.Is(err, ErrStaleRow):
			staleDrops.WithLabelValues(ch.key.table).Inc()
			log.Debug("dropped stale update")
		default:
			dispatchErrors.WithLabelValues(ch.key.table).Inc()
			log.Warn("envelope dispatch failed", "event_type", env.EventType, "error", err)
		}
	}
}

func (r *Reconciler) markLive(delta int) {
	r.mu.Lock()
	r.live += delta
	r.lastEvent = time.Now()
	r.mu.Unlock()
	openChannels.Add(float64(delta))
}

func (r *Reconciler) markEvent() {
	r.mu.Lock()
	r.lastEvent = time.Now()
	r.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
