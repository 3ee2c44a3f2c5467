package store

import "sort"

// selection is the set of ids marked for a bulk operation, scoped to exactly
// one active entity type. Ids are carried in string form so one set serves
// both integer- and uuid-keyed tables.
type selection struct {
	activeTable string
	ids         map[string]struct{}
}

// SetActiveType switches the entity type the selection applies to. The set
// is always cleared, even when the type does not change.
func (st *Store) SetActiveType(table string) {
	st.mu.Lock()
	st.selection.activeTable = table
	st.selection.ids = make(map[string]struct{})
	st.mu.Unlock()
}

// ActiveType returns the entity table the selection is scoped to.
func (st *Store) ActiveType() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.selection.activeTable
}

// ToggleSelected adds the id to the selection, or removes it if present.
func (st *Store) ToggleSelected(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.selection.activeTable == "" {
		return ErrNoActiveType
	}
	if st.selection.ids == nil {
		st.selection.ids = make(map[string]struct{})
	}
	if _, ok := st.selection.ids[id]; ok {
		delete(st.selection.ids, id)
	} else {
		st.selection.ids[id] = struct{}{}
	}
	return nil
}

// SelectAllIDs replaces the selection with the given ids.
func (st *Store) SelectAllIDs(ids []string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.selection.activeTable == "" {
		return ErrNoActiveType
	}
	st.selection.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		st.selection.ids[id] = struct{}{}
	}
	return nil
}

// ClearSelection empties the selection without changing the active type.
func (st *Store) ClearSelection() {
	st.mu.Lock()
	st.selection.ids = make(map[string]struct{})
	st.mu.Unlock()
}

// SelectedIDs returns the selected ids in sorted order.
func (st *Store) SelectedIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, 0, len(st.selection.ids))
	for id := range st.selection.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SelectionCount returns the number of selected ids.
func (st *Store) SelectionCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.selection.ids)
}
