// Package store holds the in-memory mirror of the dashboard's entity
// collections: one generic slice per entity type, child sets for one-to-many
// rows, multi-entity selection, bulk-operation orchestration, and the global
// UI state that ties them together. All mutations run under a single
// store-level mutex; no mutation function blocks or performs I/O while
// holding it.
package store

import (
	"errors"
	"time"
)

// ChangeOp identifies the kind of mutation applied to a collection.
type ChangeOp string

const (
	OpSet         ChangeOp = "set"
	OpAdd         ChangeOp = "add"
	OpUpdate      ChangeOp = "update"
	OpRemove      ChangeOp = "remove"
	OpChildSet    ChangeOp = "child-set"
	OpChildAdd    ChangeOp = "child-add"
	OpChildUpdate ChangeOp = "child-update"
	OpChildRemove ChangeOp = "child-remove"
	OpReset       ChangeOp = "reset"
)

// ChangeEvent describes one applied mutation. Record carries a snapshot of
// the affected row (nil for set/remove/reset) so observers never have to read
// back through the store from inside a callback.
type ChangeEvent struct {
	Table  string
	Op     ChangeOp
	Key    string
	Record any
	At     time.Time
}

// Observer receives change events after the mutation has been applied and
// the store lock released. Observers must not block.
type Observer func(ChangeEvent)

var (
	// ErrDuplicateID is returned by Add when the id is already present;
	// callers holding an existing id must use Update.
	ErrDuplicateID = errors.New("store: duplicate id")

	// ErrBulkBusy is returned when a bulk operation is already executing on
	// this store.
	ErrBulkBusy = errors.New("store: bulk operation already executing")

	// ErrBulkNotArmed is returned by ExecuteBulk when no operation is armed.
	ErrBulkNotArmed = errors.New("store: no bulk operation armed")

	// ErrNoActiveType is returned when a selection operation needs an active
	// entity type and none is set.
	ErrNoActiveType = errors.New("store: no active entity type")
)
