package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
)

// scriptedClient serves canned List responses in call order. Each call blocks
// until its release channel closes, which lets tests interleave two in-flight
// fetches deterministically.
type scriptedClient struct {
	mu    sync.Mutex
	calls []listCall
}

type listCall struct {
	started chan struct{}
	release chan struct{}
	data    []byte
	err     error
}

func (c *scriptedClient) script(data []byte, err error) listCall {
	call := listCall{
		started: make(chan struct{}),
		release: make(chan struct{}),
		data:    data,
		err:     err,
	}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	return call
}

func (c *scriptedClient) List(ctx context.Context, table string) ([]byte, error) {
	c.mu.Lock()
	if len(c.calls) == 0 {
		c.mu.Unlock()
		return nil, errors.New("unscripted list call")
	}
	call := c.calls[0]
	c.calls = c.calls[1:]
	c.mu.Unlock()

	close(call.started)
	<-call.release
	return call.data, call.err
}

func (c *scriptedClient) Get(ctx context.Context, table, id string) ([]byte, error) {
	return nil, errors.New("unscripted get call")
}

func (c *scriptedClient) Command(ctx context.Context, table, id, action string, payload any) ([]byte, error) {
	return nil, errors.New("unscripted command call")
}

func (c *scriptedClient) Delete(ctx context.Context, table, id string) error {
	return errors.New("unscripted delete call")
}

func testClaim(id int64, status entity.ClaimStatus) entity.Claim {
	return entity.Claim{
		ID:          id,
		ClaimNumber: "CLM-" + time.Now().Format("150405"),
		Status:      status,
		TotalCents:  12500,
		ServiceDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSliceAddDuplicateID(t *testing.T) {
	st := New(Config{})

	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))
	err := st.Claims.Add(testClaim(1, entity.ClaimSubmitted))
	require.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, 1, st.Claims.Len())
	rec, ok := st.Claims.Get(1)
	require.True(t, ok)
	assert.Equal(t, entity.ClaimDraft, rec.Status, "the original record stays untouched")
}

func TestSliceUpdateIsIdempotent(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))

	patch := map[string]any{"status": "submitted", "total_cents": float64(20000)}
	require.NoError(t, st.Claims.Update(1, patch))
	first, _ := st.Claims.Get(1)

	require.NoError(t, st.Claims.Update(1, patch))
	second, _ := st.Claims.Get(1)

	assert.Equal(t, first, second)
	assert.Equal(t, entity.ClaimSubmitted, second.Status)
	assert.Equal(t, int64(20000), second.TotalCents)
}

func TestSliceUpdateMissingIDIsNoOp(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Update(42, map[string]any{"status": "paid"}))
	assert.Equal(t, 0, st.Claims.Len())
}

func TestSliceUpdateRejectsIDChange(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))

	err := st.Claims.Update(1, map[string]any{"id": float64(99)})
	require.Error(t, err)

	_, ok := st.Claims.Get(1)
	assert.True(t, ok)
	_, ok = st.Claims.Get(99)
	assert.False(t, ok)
}

func TestSliceSelectedResolvesThroughCollection(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))
	st.Claims.Select(1)

	require.NoError(t, st.Claims.Update(1, map[string]any{"status": "needs-review"}))

	sel, ok := st.Claims.Selected()
	require.True(t, ok)
	assert.Equal(t, entity.ClaimNeedsReview, sel.Status, "the pointer sees the merged record")
}

func TestSliceRemoveClearsPointerAndPrunesChildren(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))
	require.NoError(t, st.Claims.Add(testClaim(2, entity.ClaimDraft)))
	st.Claims.Select(1)

	st.ClaimLines.SetChildren(1, []entity.ClaimLine{
		{ID: 10, ClaimID: 1, CPTCode: "99213", Units: 1, ChargeCents: 9500},
		{ID: 11, ClaimID: 1, CPTCode: "36415", Units: 1, ChargeCents: 1200},
	})
	st.ClaimLines.SetChildren(2, []entity.ClaimLine{
		{ID: 20, ClaimID: 2, CPTCode: "99214", Units: 1, ChargeCents: 15500},
	})

	st.Claims.Remove(1)

	_, ok := st.Claims.Selected()
	assert.False(t, ok, "selected pointer never outlives its record")
	assert.Empty(t, st.ClaimLines.Children(1), "child rows are pruned with the parent")
	assert.Len(t, st.ClaimLines.Children(2), 1, "sibling parents keep their rows")

	_, ok = st.Claims.Get(2)
	assert.True(t, ok)
}

func TestSliceInsertThenDeleteLeavesNoTrace(t *testing.T) {
	st := New(Config{})
	st.Claims.Upsert(testClaim(7, entity.ClaimDraft))
	st.Claims.Remove(7)

	assert.Equal(t, 0, st.Claims.Len())
	_, ok := st.Claims.Get(7)
	assert.False(t, ok)
}

func TestSliceUpsertReplacesExisting(t *testing.T) {
	st := New(Config{})
	st.Claims.Upsert(testClaim(1, entity.ClaimDraft))
	st.Claims.Upsert(testClaim(1, entity.ClaimPaid))

	assert.Equal(t, 1, st.Claims.Len())
	rec, _ := st.Claims.Get(1)
	assert.Equal(t, entity.ClaimPaid, rec.Status)
}

func TestSliceUpdateIfNewerDropsStaleRows(t *testing.T) {
	st := New(Config{})
	rec := testClaim(1, entity.ClaimSubmitted)
	rec.UpdatedAt = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Claims.Add(rec))

	applied, err := st.Claims.UpdateIfNewer(1,
		map[string]any{"status": "draft"},
		time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := st.Claims.Get(1)
	assert.Equal(t, entity.ClaimSubmitted, got.Status)

	applied, err = st.Claims.UpdateIfNewer(1,
		map[string]any{"status": "paid"},
		time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.True(t, applied)
	got, _ = st.Claims.Get(1)
	assert.Equal(t, entity.ClaimPaid, got.Status)
}

func TestFetchAllAppliesResultAndClearsLoading(t *testing.T) {
	client := &scriptedClient{}
	data, err := json.Marshal([]entity.Claim{testClaim(1, entity.ClaimDraft), testClaim(2, entity.ClaimSubmitted)})
	require.NoError(t, err)
	call := client.script(data, nil)
	close(call.release)

	st := New(Config{Client: client})
	require.NoError(t, st.Claims.FetchAll(context.Background()))

	assert.Equal(t, 2, st.Claims.Len())
	assert.Equal(t, RequestIdle, st.Claims.State().Phase)
}

func TestFetchAllFailureLandsInRequestState(t *testing.T) {
	client := &scriptedClient{}
	call := client.script(nil, errors.New("upstream maintenance window"))
	close(call.release)

	st := New(Config{Client: client})
	err := st.Claims.FetchAll(context.Background())
	require.Error(t, err)

	state := st.Claims.State()
	assert.Equal(t, RequestFailed, state.Phase)
	assert.Equal(t, "upstream maintenance window", state.Err)
	assert.Equal(t, 0, st.Claims.Len())
}

func TestFetchAllStaleResultIsDiscarded(t *testing.T) {
	client := &scriptedClient{}
	staleData, err := json.Marshal([]entity.Claim{testClaim(1, entity.ClaimDraft)})
	require.NoError(t, err)
	freshData, err := json.Marshal([]entity.Claim{testClaim(2, entity.ClaimSubmitted), testClaim(3, entity.ClaimSubmitted)})
	require.NoError(t, err)

	stale := client.script(staleData, nil)
	fresh := client.script(freshData, nil)

	st := New(Config{Client: client})

	done := make(chan error, 1)
	go func() { done <- st.Claims.FetchAll(context.Background()) }()
	<-stale.started

	// Second fetch starts while the first is still in flight and finishes
	// first, so the first result is stale by the time it lands.
	close(fresh.release)
	require.NoError(t, st.Claims.FetchAll(context.Background()))
	require.Equal(t, 2, st.Claims.Len())

	close(stale.release)
	require.NoError(t, <-done)

	assert.Equal(t, 2, st.Claims.Len(), "the stale result never overwrites the fresh one")
	_, ok := st.Claims.Get(1)
	assert.False(t, ok)
	assert.Equal(t, RequestIdle, st.Claims.State().Phase)
}

func TestFetchAllStaleErrorIsDiscardedToo(t *testing.T) {
	client := &scriptedClient{}
	freshData, err := json.Marshal([]entity.Claim{testClaim(2, entity.ClaimSubmitted)})
	require.NoError(t, err)

	stale := client.script(nil, errors.New("timeout"))
	fresh := client.script(freshData, nil)

	st := New(Config{Client: client})

	done := make(chan error, 1)
	go func() { done <- st.Claims.FetchAll(context.Background()) }()
	<-stale.started

	close(fresh.release)
	require.NoError(t, st.Claims.FetchAll(context.Background()))

	close(stale.release)
	require.NoError(t, <-done, "a stale failure is discarded wholesale")
	assert.Equal(t, RequestIdle, st.Claims.State().Phase)
	assert.Equal(t, 1, st.Claims.Len())
}

func TestResetClearsEverything(t *testing.T) {
	st := New(Config{})
	require.NoError(t, st.Claims.Add(testClaim(1, entity.ClaimDraft)))
	st.Claims.Select(1)
	st.ClaimLines.SetChildren(1, []entity.ClaimLine{{ID: 10, ClaimID: 1, CPTCode: "99213", Units: 1}})
	st.SetActiveType(entity.TableClaims)
	require.NoError(t, st.ToggleSelected("1"))
	st.SetView(ViewPayments)
	st.SetGlobalError("boom")

	st.Reset()

	assert.Equal(t, 0, st.Claims.Len())
	_, ok := st.Claims.Selected()
	assert.False(t, ok)
	assert.Empty(t, st.ClaimLines.Children(1))
	assert.Equal(t, 0, st.SelectionCount())
	assert.Equal(t, ViewClaims, st.CurrentView())
	assert.Empty(t, st.GlobalError())
	assert.Equal(t, entity.OpenClaimStatuses, st.Filters(entity.TableClaims)["status"],
		"the default open-claims filter comes back after a reset")
}

func TestConfiguredDefaultClaimStatuses(t *testing.T) {
	st := New(Config{DefaultClaimStatuses: []string{"denied"}})
	assert.Equal(t, []string{"denied"}, st.Filters(entity.TableClaims)["status"])

	st.SetFilter(entity.TableClaims, "status", []string{"paid"})
	st.Reset()
	assert.Equal(t, []string{"denied"}, st.Filters(entity.TableClaims)["status"],
		"reset restores the configured default, not the built-in one")

	st.ClearFilters(entity.TableClaims)
	assert.Equal(t, []string{"denied"}, st.Filters(entity.TableClaims)["status"])
}

func TestSetDefaultClaimStatusesAppliesLive(t *testing.T) {
	st := New(Config{})
	st.SetDefaultClaimStatuses([]string{"submitted", "in-review"})
	assert.Equal(t, []string{"submitted", "in-review"}, st.Filters(entity.TableClaims)["status"])

	st.SetDefaultClaimStatuses(nil)
	assert.Equal(t, entity.OpenClaimStatuses, st.Filters(entity.TableClaims)["status"],
		"clearing the configured default falls back to open states")
}

func TestSetBreadcrumbsReplacesTrail(t *testing.T) {
	st := New(Config{})
	st.SetView(ViewPayments)
	st.SetBreadcrumbs([]string{"claims", "claims/42", "payments"})
	assert.Equal(t, []string{"claims", "claims/42", "payments"}, st.Breadcrumbs())

	long := make([]string, 25)
	for i := range long {
		long[i] = "claims"
	}
	st.SetBreadcrumbs(long)
	assert.Len(t, st.Breadcrumbs(), 20)
}
