package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
)

func TestToggleSelectedRequiresActiveType(t *testing.T) {
	st := New(Config{})
	err := st.ToggleSelected("1")
	assert.ErrorIs(t, err, ErrNoActiveType)
}

func TestToggleSelectedAddsAndRemoves(t *testing.T) {
	st := New(Config{})
	st.SetActiveType(entity.TableClaims)

	require.NoError(t, st.ToggleSelected("1"))
	require.NoError(t, st.ToggleSelected("2"))
	assert.Equal(t, []string{"1", "2"}, st.SelectedIDs())

	require.NoError(t, st.ToggleSelected("1"))
	assert.Equal(t, []string{"2"}, st.SelectedIDs())
}

func TestSetActiveTypeAlwaysClearsSelection(t *testing.T) {
	st := New(Config{})
	st.SetActiveType(entity.TableClaims)
	require.NoError(t, st.ToggleSelected("1"))
	require.Equal(t, 1, st.SelectionCount())

	// Switching to a different type clears.
	st.SetActiveType(entity.TablePatients)
	assert.Equal(t, 0, st.SelectionCount())

	require.NoError(t, st.ToggleSelected("a"))
	require.Equal(t, 1, st.SelectionCount())

	// Re-setting the same type clears too.
	st.SetActiveType(entity.TablePatients)
	assert.Equal(t, 0, st.SelectionCount())
	assert.Equal(t, entity.TablePatients, st.ActiveType())
}

func TestSelectAllIDsReplacesSelection(t *testing.T) {
	st := New(Config{})
	st.SetActiveType(entity.TableClaims)
	require.NoError(t, st.ToggleSelected("9"))

	require.NoError(t, st.SelectAllIDs([]string{"1", "2", "3"}))
	assert.Equal(t, []string{"1", "2", "3"}, st.SelectedIDs())
}

func TestClearSelectionKeepsActiveType(t *testing.T) {
	st := New(Config{})
	st.SetActiveType(entity.TableClaims)
	require.NoError(t, st.ToggleSelected("1"))

	st.ClearSelection()
	assert.Equal(t, 0, st.SelectionCount())
	assert.Equal(t, entity.TableClaims, st.ActiveType())
}
