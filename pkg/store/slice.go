package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/logging"
)

// Slice owns one entity type's collection: the ordered record list, the
// id index, the selected pointer, the fetch request state, and the fetch
// sequence counter that rejects stale results. All seven top-level
// collections are instances of this one type.
type Slice[T any, K comparable] struct {
	mu   *sync.Mutex
	desc entity.Descriptor
	log  *logging.Logger

	idOf    func(T) K
	keyOf   func(K) string
	stampOf func(T) time.Time

	list func(context.Context) ([]T, error)
	get  func(context.Context, K) (T, error)

	records []T
	index   map[K]int

	selectedID  K
	hasSelected bool

	state    RequestState
	fetchSeq uint64

	pruners []func(K)
	emit    func(ChangeEvent)
}

// SliceConfig wires one slice instance. The list and get collaborators may be
// nil for slices that are only populated by realtime events or tests.
type SliceConfig[T any, K comparable] struct {
	Descriptor entity.Descriptor
	Logger     *logging.Logger
	ID         func(T) K
	Key        func(K) string
	Stamp      func(T) time.Time
	List       func(context.Context) ([]T, error)
	Get        func(context.Context, K) (T, error)
}

func newSlice[T any, K comparable](mu *sync.Mutex, emit func(ChangeEvent), cfg SliceConfig[T, K]) *Slice[T, K] {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Slice[T, K]{
		mu:      mu,
		desc:    cfg.Descriptor,
		log:     log.WithTable(cfg.Descriptor.Table),
		idOf:    cfg.ID,
		keyOf:   cfg.Key,
		stampOf: cfg.Stamp,
		list:    cfg.List,
		get:     cfg.Get,
		index:   make(map[K]int),
		emit:    emit,
	}
}

// Table returns the backend table this slice mirrors.
func (s *Slice[T, K]) Table() string { return s.desc.Table }

// Records returns a copy of the collection in insertion order.
func (s *Slice[T, K]) Records() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the collection size.
func (s *Slice[T, K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the record with the given id.
func (s *Slice[T, K]) Get(id K) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *Slice[T, K]) lookup(id K) (T, bool) {
	if i, ok := s.index[id]; ok {
		return s.records[i], true
	}
	var zero T
	return zero, false
}

// Selected returns the currently viewed record. The pointer is stored as an
// id and resolved through the collection on every read, so it can never
// drift out of sync with updates to the same row.
func (s *Slice[T, K]) Selected() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSelected {
		var zero T
		return zero, false
	}
	return s.lookup(s.selectedID)
}

// Select marks the record with the given id as currently viewed.
func (s *Slice[T, K]) Select(id K) {
	s.mu.Lock()
	s.selectedID = id
	s.hasSelected = true
	s.mu.Unlock()
}

// ClearSelected drops the selected pointer.
func (s *Slice[T, K]) ClearSelected() {
	s.mu.Lock()
	s.hasSelected = false
	var zero K
	s.selectedID = zero
	s.mu.Unlock()
}

// State returns the slice's fetch state.
func (s *Slice[T, K]) State() RequestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set replaces the whole collection. Used after a full fetch; there is no
// merge with previous contents.
func (s *Slice[T, K]) Set(records []T) {
	s.mu.Lock()
	s.replaceLocked(records)
	s.mu.Unlock()
	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpSet, At: time.Now()})
}

func (s *Slice[T, K]) replaceLocked(records []T) {
	s.records = make([]T, 0, len(records))
	s.index = make(map[K]int, len(records))
	for _, rec := range records {
		id := s.idOf(rec)
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = len(s.records)
		s.records = append(s.records, rec)
	}
}

// Add appends a record. Adding an id that is already present is a contract
// violation and returns ErrDuplicateID.
func (s *Slice[T, K]) Add(rec T) error {
	id := s.idOf(rec)
	s.mu.Lock()
	if _, dup := s.index[id]; dup {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s %s", ErrDuplicateID, s.desc.Table, s.keyOf(id))
	}
	s.index[id] = len(s.records)
	s.records = append(s.records, rec)
	s.mu.Unlock()
	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpAdd, Key: s.keyOf(id), Record: rec, At: time.Now()})
	return nil
}

// Update merges patch into the matching record. A missing id is a no-op, not
// an error, to tolerate out-of-order realtime delivery. The selected pointer
// resolves through the collection, so it sees the merged record immediately.
func (s *Slice[T, K]) Update(id K, patch map[string]any) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	merged, err := mergePatch(s.records[i], patch)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("merge %s %s: %w", s.desc.Table, s.keyOf(id), err)
	}
	// The id column never changes through a patch.
	if s.idOf(merged) != id {
		s.mu.Unlock()
		return fmt.Errorf("patch for %s %s would change id", s.desc.Table, s.keyOf(id))
	}
	s.records[i] = merged
	s.mu.Unlock()
	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpUpdate, Key: s.keyOf(id), Record: merged, At: time.Now()})
	return nil
}

// UpdateIfNewer applies patch only when stamp is not older than the cached
// row's update stamp. It reports whether the patch was applied. Used by the
// realtime dispatcher, which can observe replayed rows after a reconnect.
func (s *Slice[T, K]) UpdateIfNewer(id K, patch map[string]any, stamp time.Time) (bool, error) {
	if s.stampOf != nil && !stamp.IsZero() {
		s.mu.Lock()
		if rec, ok := s.lookup(id); ok && stamp.Before(s.stampOf(rec)) {
			s.mu.Unlock()
			return false, nil
		}
		s.mu.Unlock()
	}
	return true, s.Update(id, patch)
}

// Upsert replaces the record when the id exists and appends it otherwise.
func (s *Slice[T, K]) Upsert(rec T) {
	id := s.idOf(rec)
	s.mu.Lock()
	if i, ok := s.index[id]; ok {
		s.records[i] = rec
		s.mu.Unlock()
		s.emit(ChangeEvent{Table: s.desc.Table, Op: OpUpdate, Key: s.keyOf(id), Record: rec, At: time.Now()})
		return
	}
	s.index[id] = len(s.records)
	s.records = append(s.records, rec)
	s.mu.Unlock()
	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpAdd, Key: s.keyOf(id), Record: rec, At: time.Now()})
}

// Remove drops the record, clears the selected pointer if it matched, and
// prunes the id from every registered child set.
func (s *Slice[T, K]) Remove(id K) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.idOf(s.records[j])] = j
	}
	if s.hasSelected && s.selectedID == id {
		s.hasSelected = false
	}
	pruners := s.pruners
	s.mu.Unlock()

	for _, prune := range pruners {
		prune(id)
	}
	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpRemove, Key: s.keyOf(id), At: time.Now()})
}

// OnRemove registers a pruner invoked with the parent id after removal.
// Child sets register themselves here so orphaned child rows never linger.
func (s *Slice[T, K]) OnRemove(prune func(K)) {
	s.mu.Lock()
	s.pruners = append(s.pruners, prune)
	s.mu.Unlock()
}

// FetchAll loads the whole collection from the collaborator. The result is
// applied only when no newer fetch has been issued in the meantime; a slower
// fetch that loses the race is discarded wholesale, including its error.
// Failures land in the slice's request state (and are also returned for
// callers that want them); loading always clears on the winning fetch's
// completion.
func (s *Slice[T, K]) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.fetchSeq++
	token := s.fetchSeq
	s.state = RequestState{Phase: RequestLoading}
	s.mu.Unlock()

	records, err := s.list(ctx)

	s.mu.Lock()
	if token != s.fetchSeq {
		// A newer fetch was issued; this result is stale either way.
		s.mu.Unlock()
		s.log.Debug("discarding stale fetch result", "token", token)
		return nil
	}
	if err != nil {
		s.state = RequestState{Phase: RequestFailed, Err: err.Error()}
		s.mu.Unlock()
		s.log.Warn("fetch failed", "error", err)
		return err
	}
	s.replaceLocked(records)
	s.state = RequestState{Phase: RequestIdle}
	s.mu.Unlock()

	s.emit(ChangeEvent{Table: s.desc.Table, Op: OpSet, At: time.Now()})
	return nil
}

// FetchByID loads one record, upserts it, and marks it as currently viewed.
func (s *Slice[T, K]) FetchByID(ctx context.Context, id K) (T, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		var zero T
		s.log.Warn("fetch by id failed", "id", s.keyOf(id), "error", err)
		return zero, err
	}
	s.Upsert(rec)
	s.Select(s.idOf(rec))
	return rec, nil
}

// Reset clears the collection, the selected pointer, and the request state.
func (s *Slice[T, K]) Reset() {
	s.mu.Lock()
	s.records = nil
	s.index = make(map[K]int)
	s.hasSelected = false
	s.state = RequestState{}
	s.mu.Unlock()
}

// mergePatch overlays a column→value patch onto a typed record by way of its
// JSON form. Applying the same patch twice yields the same record.
func mergePatch[T any](rec T, patch map[string]any) (T, error) {
	var zero T
	raw, err := json.Marshal(rec)
	if err != nil {
		return zero, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return zero, err
	}
	for k, v := range patch {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, err
	}
	return out, nil
}
