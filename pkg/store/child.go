package store

import (
	"fmt"
	"sync"
	"time"
)

// ChildSet owns one-to-many child rows keyed by parent id (claim lines per
// claim, coverages per patient). It shares the store mutex with the slices,
// and registers itself as a pruner on its parent slice so removing a parent
// never leaves orphaned child keys behind.
type ChildSet[P comparable, K comparable, C any] struct {
	mu    *sync.Mutex
	table string

	parentOf func(C) P
	idOf     func(C) K
	keyOf    func(K) string

	byParent map[P][]C
	parents  map[K]P

	emit func(ChangeEvent)
}

func newChildSet[P comparable, K comparable, C any](
	mu *sync.Mutex,
	emit func(ChangeEvent),
	table string,
	parentOf func(C) P,
	idOf func(C) K,
	keyOf func(K) string,
) *ChildSet[P, K, C] {
	return &ChildSet[P, K, C]{
		mu:       mu,
		table:    table,
		parentOf: parentOf,
		idOf:     idOf,
		keyOf:    keyOf,
		byParent: make(map[P][]C),
		parents:  make(map[K]P),
		emit:     emit,
	}
}

// Table returns the child table name.
func (c *ChildSet[P, K, C]) Table() string { return c.table }

// Children returns a copy of the child rows for one parent.
func (c *ChildSet[P, K, C]) Children(parent P) []C {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.byParent[parent]
	out := make([]C, len(rows))
	copy(out, rows)
	return out
}

// SetChildren replaces the rows under one parent key.
func (c *ChildSet[P, K, C]) SetChildren(parent P, rows []C) {
	c.mu.Lock()
	for _, row := range rows {
		c.parents[c.idOf(row)] = parent
	}
	for _, old := range c.byParent[parent] {
		id := c.idOf(old)
		if c.parents[id] == parent {
			if !containsID(rows, c.idOf, id) {
				delete(c.parents, id)
			}
		}
	}
	copied := make([]C, len(rows))
	copy(copied, rows)
	c.byParent[parent] = copied
	c.mu.Unlock()
	c.emit(ChangeEvent{Table: c.table, Op: OpChildSet, At: time.Now()})
}

// AddChild appends a row under its parent key. Duplicate child ids are a
// contract violation, mirroring Slice.Add.
func (c *ChildSet[P, K, C]) AddChild(row C) error {
	id := c.idOf(row)
	parent := c.parentOf(row)
	c.mu.Lock()
	if _, dup := c.parents[id]; dup {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s %s", ErrDuplicateID, c.table, c.keyOf(id))
	}
	c.parents[id] = parent
	c.byParent[parent] = append(c.byParent[parent], row)
	c.mu.Unlock()
	c.emit(ChangeEvent{Table: c.table, Op: OpChildAdd, Key: c.keyOf(id), Record: row, At: time.Now()})
	return nil
}

// UpdateChild merges patch into the matching child row; missing ids no-op.
func (c *ChildSet[P, K, C]) UpdateChild(id K, patch map[string]any) error {
	c.mu.Lock()
	parent, ok := c.parents[id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	rows := c.byParent[parent]
	var merged C
	found := false
	for i, row := range rows {
		if c.idOf(row) != id {
			continue
		}
		m, err := mergePatch(row, patch)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("merge %s %s: %w", c.table, c.keyOf(id), err)
		}
		rows[i] = m
		merged = m
		found = true
		break
	}
	c.mu.Unlock()
	if found {
		c.emit(ChangeEvent{Table: c.table, Op: OpChildUpdate, Key: c.keyOf(id), Record: merged, At: time.Now()})
	}
	return nil
}

// RemoveChild drops one child row.
func (c *ChildSet[P, K, C]) RemoveChild(id K) {
	c.mu.Lock()
	parent, ok := c.parents[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.parents, id)
	rows := c.byParent[parent]
	for i, row := range rows {
		if c.idOf(row) == id {
			c.byParent[parent] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.emit(ChangeEvent{Table: c.table, Op: OpChildRemove, Key: c.keyOf(id), At: time.Now()})
}

// Prune removes every child row under the parent key. Called by the parent
// slice after a removal.
func (c *ChildSet[P, K, C]) Prune(parent P) {
	c.mu.Lock()
	rows, ok := c.byParent[parent]
	if !ok {
		c.mu.Unlock()
		return
	}
	for _, row := range rows {
		delete(c.parents, c.idOf(row))
	}
	delete(c.byParent, parent)
	c.mu.Unlock()
	c.emit(ChangeEvent{Table: c.table, Op: OpChildSet, At: time.Now()})
}

// Reset clears all child rows.
func (c *ChildSet[P, K, C]) Reset() {
	c.mu.Lock()
	c.byParent = make(map[P][]C)
	c.parents = make(map[K]P)
	c.mu.Unlock()
}

func containsID[C any, K comparable](rows []C, idOf func(C) K, id K) bool {
	for _, row := range rows {
		if idOf(row) == id {
			return true
		}
	}
	return false
}
