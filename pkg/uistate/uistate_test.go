package uistate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(KeyView, "payments"))
	got, err := s.Get(KeyView)
	require.NoError(t, err)
	assert.Equal(t, "payments", got)
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(KeyView)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	s := openTestStore(t)
	err := s.Set("favorite_color", "teal")
	assert.Error(t, err)
}

func TestEmptyValueDeletesRow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyView, "claims"))
	require.NoError(t, s.Set(KeyView, ""))

	got, err := s.Get(KeyView)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetUpserts(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyView, "claims"))
	require.NoError(t, s.Set(KeyView, "providers"))

	got, err := s.Get(KeyView)
	require.NoError(t, err)
	assert.Equal(t, "providers", got)
}

func TestBreadcrumbsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	trail := []string{"claims", "patients", "claims"}
	require.NoError(t, s.SetBreadcrumbs(trail))

	got, err := s.Breadcrumbs()
	require.NoError(t, err)
	assert.Equal(t, trail, got)

	require.NoError(t, s.SetBreadcrumbs(nil))
	got, err = s.Breadcrumbs()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPageSizeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetPageSize(50))
	got, err := s.PageSize()
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	// Zero clears the stored preference.
	require.NoError(t, s.SetPageSize(0))
	got, err = s.PageSize()
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetView("prior-auths"))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	view, err := s2.View()
	require.NoError(t, err)
	assert.Equal(t, "prior-auths", view)
}

func TestBulkAuditTail(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordBulkAudit("ops@example.com", "delete", "claims", 3, 1, []string{"1", "2", "3", "4"}))
	require.NoError(t, s.RecordBulkAudit("", "export", "payments", 10, 0, nil))

	entries, err := s.RecentBulkAudits(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, "export", newest.Kind)
	assert.Equal(t, "payments", newest.Entity)
	assert.Equal(t, 10, newest.Succeeded)

	oldest := entries[1]
	assert.Equal(t, "delete", oldest.Kind)
	assert.Equal(t, 1, oldest.Failed)
	assert.Contains(t, oldest.Payload, "\"2\"")
	assert.False(t, oldest.CreatedAt.IsZero())
}

func TestClosedStoreErrors(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	var nilStore *Store
	assert.ErrorIs(t, nilStore.Set(KeyView, "x"), ErrClosed)
	_, err := nilStore.Get(KeyView)
	assert.ErrorIs(t, err, ErrClosed)
}
