package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/logging"
)

// BulkKind is the operation applied to every selected id.
type BulkKind string

const (
	BulkDelete BulkKind = "delete"
	BulkUpdate BulkKind = "update"
	BulkExport BulkKind = "export"
)

// BulkPhase is the bulk state machine: idle → armed → executing → idle.
type BulkPhase int

const (
	BulkIdle BulkPhase = iota
	BulkArmed
	BulkExecuting
)

type bulkState struct {
	phase BulkPhase
	kind  BulkKind
	patch map[string]any
}

// BulkResult summarizes one bulk execution. When the backend's transactional
// batch endpoint was used, Batched is true and the operation is all-or-
// nothing. Otherwise items were processed sequentially and a partial failure
// leaves the succeeded items applied; Failed carries the per-item messages.
type BulkResult struct {
	Kind      BulkKind
	Table     string
	Batched   bool
	Succeeded []string
	Failed    map[string]string
}

// AllSucceeded reports whether no item failed.
func (r BulkResult) AllSucceeded() bool { return len(r.Failed) == 0 }

// Arm puts the store in bulk mode for the given operation kind. The
// selection's active type decides which slice the operation targets. For
// BulkUpdate, patch carries the column changes applied to every item.
func (st *Store) Arm(kind BulkKind, patch map[string]any) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.selection.activeTable == "" {
		return ErrNoActiveType
	}
	if st.bulk.phase == BulkExecuting {
		return ErrBulkBusy
	}
	st.bulk = bulkState{phase: BulkArmed, kind: kind, patch: patch}
	return nil
}

// Disarm leaves bulk mode without executing.
func (st *Store) Disarm() {
	st.mu.Lock()
	if st.bulk.phase != BulkExecuting {
		st.bulk = bulkState{}
	}
	st.mu.Unlock()
}

// BulkStatus returns the current phase and armed kind.
func (st *Store) BulkStatus() (BulkPhase, BulkKind) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.bulk.phase, st.bulk.kind
}

// ExecuteBulk runs the armed operation over the current selection. Exactly
// one bulk operation may execute at a time; re-entry fails with ErrBulkBusy.
// On completion (success or partial failure) the machine returns to idle and
// the selection is cleared. Item failures are captured in the result and in
// the global error string, never panicked or swallowed.
func (st *Store) ExecuteBulk(ctx context.Context) (BulkResult, error) {
	st.mu.Lock()
	switch st.bulk.phase {
	case BulkExecuting:
		st.mu.Unlock()
		return BulkResult{}, ErrBulkBusy
	case BulkIdle:
		st.mu.Unlock()
		return BulkResult{}, ErrBulkNotArmed
	}
	kind := st.bulk.kind
	patch := st.bulk.patch
	table := st.selection.activeTable
	ids := make([]string, 0, len(st.selection.ids))
	for id := range st.selection.ids {
		ids = append(ids, id)
	}
	st.bulk.phase = BulkExecuting
	st.mu.Unlock()

	sortIDs(ids)
	result := BulkResult{Kind: kind, Table: table, Failed: map[string]string{}}
	log := st.log.WithTable(table).WithOperation("bulk_" + string(kind))

	switch kind {
	case BulkDelete:
		st.bulkDelete(ctx, table, ids, &result, log)
	case BulkUpdate:
		st.bulkUpdate(ctx, table, ids, patch, &result, log)
	case BulkExport:
		// Export is a pure function of current state; the export sink is
		// injected by the composition root.
		if st.exportHook == nil {
			for _, id := range ids {
				result.Failed[id] = "no export sink configured"
			}
		} else if err := st.exportHook(table, ids); err != nil {
			for _, id := range ids {
				result.Failed[id] = err.Error()
			}
		} else {
			result.Succeeded = ids
		}
	default:
		st.mu.Lock()
		st.bulk = bulkState{}
		st.mu.Unlock()
		return result, fmt.Errorf("unknown bulk kind %q", kind)
	}

	st.mu.Lock()
	st.bulk = bulkState{}
	st.selection.ids = make(map[string]struct{})
	if !result.AllSucceeded() {
		st.globalErr = fmt.Sprintf("bulk %s on %s: %d of %d items failed", kind, table, len(result.Failed), len(ids))
	}
	audit := st.auditHook
	st.mu.Unlock()

	if audit != nil {
		audit(result)
	}
	log.Info("bulk operation finished",
		"items", len(ids),
		"failed", len(result.Failed),
		"batched", result.Batched,
	)
	return result, nil
}

func (st *Store) bulkDelete(ctx context.Context, table string, ids []string, result *BulkResult, log *logging.Logger) {
	target, ok := st.bulkTarget(table)
	if !ok {
		for _, id := range ids {
			result.Failed[id] = fmt.Sprintf("unknown table %q", table)
		}
		return
	}

	// Prefer the backend's transactional batch endpoint: all-or-nothing,
	// one round trip.
	if bd, batched := st.client.(BatchDeleter); batched {
		result.Batched = true
		if err := bd.BatchDelete(ctx, table, ids); err != nil {
			for _, id := range ids {
				result.Failed[id] = err.Error()
			}
			log.Warn("batch delete failed", "error", err)
			return
		}
		for _, id := range ids {
			if err := target.remove(id); err != nil {
				result.Failed[id] = err.Error()
				continue
			}
			result.Succeeded = append(result.Succeeded, id)
		}
		return
	}

	// Sequential fallback: already-applied deletes stay applied on a later
	// failure; the summary reports exactly which items went through.
	for _, id := range ids {
		if err := st.client.Delete(ctx, table, id); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		if err := target.remove(id); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
}

func (st *Store) bulkUpdate(ctx context.Context, table string, ids []string, patch map[string]any, result *BulkResult, log *logging.Logger) {
	target, ok := st.bulkTarget(table)
	if !ok {
		for _, id := range ids {
			result.Failed[id] = fmt.Sprintf("unknown table %q", table)
		}
		return
	}
	for _, id := range ids {
		if _, err := st.client.Command(ctx, table, id, "update", patch); err != nil {
			log.Warn("bulk update item failed", "id", id, "error", err)
			result.Failed[id] = err.Error()
			continue
		}
		if err := target.update(id, patch); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
}

// SetExportHook injects the export sink used by BulkExport; the store
// itself never touches files.
func (st *Store) SetExportHook(hook func(table string, ids []string) error) {
	st.mu.Lock()
	st.exportHook = hook
	st.mu.Unlock()
}

// SetBulkAuditHook injects the sink that receives every completed bulk
// operation's outcome, regardless of kind.
func (st *Store) SetBulkAuditHook(hook func(BulkResult)) {
	st.mu.Lock()
	st.auditHook = hook
	st.mu.Unlock()
}

// bulkTarget adapts a typed slice to the string-keyed bulk loop.
type bulkTarget struct {
	remove func(id string) error
	update func(id string, patch map[string]any) error
}

func (st *Store) bulkTarget(table string) (bulkTarget, bool) {
	switch table {
	case entity.TablePatients:
		return uuidTarget(st.Patients), true
	case entity.TableClaims:
		return int64Target(st.Claims), true
	case entity.TablePriorAuths:
		return int64Target(st.PriorAuths), true
	case entity.TablePayments:
		return int64Target(st.Payments), true
	case entity.TableProviders:
		return int64Target(st.Providers), true
	case entity.TablePayers:
		return int64Target(st.Payers), true
	case entity.TableAdmins:
		return uuidTarget(st.Admins), true
	default:
		return bulkTarget{}, false
	}
}

func int64Target[T any](s *Slice[T, int64]) bulkTarget {
	return bulkTarget{
		remove: func(id string) error {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return fmt.Errorf("bad id %q: %w", id, err)
			}
			s.Remove(n)
			return nil
		},
		update: func(id string, patch map[string]any) error {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return fmt.Errorf("bad id %q: %w", id, err)
			}
			return s.Update(n, patch)
		},
	}
}

func uuidTarget[T any](s *Slice[T, uuid.UUID]) bulkTarget {
	return bulkTarget{
		remove: func(id string) error {
			u, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("bad id %q: %w", id, err)
			}
			s.Remove(u)
			return nil
		},
		update: func(id string, patch map[string]any) error {
			u, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("bad id %q: %w", id, err)
			}
			return s.Update(u, patch)
		},
	}
}

// sortIDs orders ids numerically when they all parse as integers, otherwise
// lexically, so per-item processing order is stable and predictable in logs.
func sortIDs(ids []string) {
	allNumeric := true
	for _, id := range ids {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			allNumeric = false
			break
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if allNumeric {
			a, _ := strconv.ParseInt(ids[i], 10, 64)
			b, _ := strconv.ParseInt(ids[j], 10, 64)
			return a < b
		}
		return ids[i] < ids[j]
	})
}
