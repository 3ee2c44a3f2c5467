package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/logging"
	"github.com/kestrelhealth/claimdeck/pkg/pipeline"
)

// Collaborator is the network boundary the store fetches and mutates through.
// Failures surface as opaque error messages, not structured codes.
type Collaborator interface {
	List(ctx context.Context, table string) ([]byte, error)
	Get(ctx context.Context, table, id string) ([]byte, error)
	Command(ctx context.Context, table, id, action string, payload any) ([]byte, error)
	Delete(ctx context.Context, table, id string) error
}

// BatchDeleter is implemented by collaborators whose backend offers a
// transactional batch delete. Bulk deletes use it when present; otherwise
// they fall back to sequential per-item deletes with a partial-success
// summary.
type BatchDeleter interface {
	BatchDelete(ctx context.Context, table string, ids []string) error
}

// View identifies the dashboard screen currently displayed.
type View string

const (
	ViewClaims     View = "claims"
	ViewPatients   View = "patients"
	ViewPriorAuths View = "prior-auths"
	ViewPayments   View = "payments"
	ViewProviders  View = "providers"
	ViewPayers     View = "payers"
	ViewAdmin      View = "admin"
)

// Config wires a Store.
type Config struct {
	Client Collaborator
	Logger *logging.Logger

	// DefaultClaimStatuses seeds the claims status filter. Empty means the
	// open-states default.
	DefaultClaimStatuses []string
}

// Store composes the seven entity slices with global UI state, multi-entity
// selection, and bulk-operation orchestration. Construct one per session and
// thread it explicitly; there is no package-level instance.
type Store struct {
	mu     sync.Mutex
	log    *logging.Logger
	client Collaborator

	Patients   *Slice[entity.Patient, uuid.UUID]
	Claims     *Slice[entity.Claim, int64]
	PriorAuths *Slice[entity.PriorAuth, int64]
	Payments   *Slice[entity.Payment, int64]
	Providers  *Slice[entity.Provider, int64]
	Payers     *Slice[entity.Payer, int64]
	Admins     *Slice[entity.AdminUser, uuid.UUID]

	ClaimLines *ChildSet[int64, int64, entity.ClaimLine]
	Coverages  *ChildSet[uuid.UUID, int64, entity.Coverage]

	view        View
	breadcrumbs []string
	globalErr   string

	filters       map[string]pipeline.Filters
	claimStatuses []string

	selection  selection
	bulk       bulkState
	exportHook func(table string, ids []string) error
	auditHook  func(BulkResult)

	obsMu     sync.RWMutex
	observers []Observer
}

// New constructs a store with empty collections and default filters.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	st := &Store{
		log:           log,
		client:        cfg.Client,
		view:          ViewClaims,
		claimStatuses: cfg.DefaultClaimStatuses,
	}
	emit := st.dispatch

	st.Patients = newSlice(&st.mu, emit, SliceConfig[entity.Patient, uuid.UUID]{
		Descriptor: entity.PatientDescriptor,
		Logger:     log,
		ID:         func(p entity.Patient) uuid.UUID { return p.ID },
		Key:        uuidKey,
		Stamp:      func(p entity.Patient) time.Time { return p.UpdatedAt },
		List:       listAs[entity.Patient](cfg.Client, entity.TablePatients),
		Get:        getAs[entity.Patient](cfg.Client, entity.TablePatients, uuidKey),
	})
	st.Claims = newSlice(&st.mu, emit, SliceConfig[entity.Claim, int64]{
		Descriptor: entity.ClaimDescriptor,
		Logger:     log,
		ID:         func(c entity.Claim) int64 { return c.ID },
		Key:        int64Key,
		Stamp:      func(c entity.Claim) time.Time { return c.UpdatedAt },
		List:       listAs[entity.Claim](cfg.Client, entity.TableClaims),
		Get:        getAs[entity.Claim](cfg.Client, entity.TableClaims, int64Key),
	})
	st.PriorAuths = newSlice(&st.mu, emit, SliceConfig[entity.PriorAuth, int64]{
		Descriptor: entity.PriorAuthDescriptor,
		Logger:     log,
		ID:         func(a entity.PriorAuth) int64 { return a.ID },
		Key:        int64Key,
		Stamp:      func(a entity.PriorAuth) time.Time { return a.UpdatedAt },
		List:       listAs[entity.PriorAuth](cfg.Client, entity.TablePriorAuths),
		Get:        getAs[entity.PriorAuth](cfg.Client, entity.TablePriorAuths, int64Key),
	})
	st.Payments = newSlice(&st.mu, emit, SliceConfig[entity.Payment, int64]{
		Descriptor: entity.PaymentDescriptor,
		Logger:     log,
		ID:         func(p entity.Payment) int64 { return p.ID },
		Key:        int64Key,
		Stamp:      func(p entity.Payment) time.Time { return p.UpdatedAt },
		List:       listAs[entity.Payment](cfg.Client, entity.TablePayments),
		Get:        getAs[entity.Payment](cfg.Client, entity.TablePayments, int64Key),
	})
	st.Providers = newSlice(&st.mu, emit, SliceConfig[entity.Provider, int64]{
		Descriptor: entity.ProviderDescriptor,
		Logger:     log,
		ID:         func(p entity.Provider) int64 { return p.ID },
		Key:        int64Key,
		Stamp:      func(p entity.Provider) time.Time { return p.UpdatedAt },
		List:       listAs[entity.Provider](cfg.Client, entity.TableProviders),
		Get:        getAs[entity.Provider](cfg.Client, entity.TableProviders, int64Key),
	})
	st.Payers = newSlice(&st.mu, emit, SliceConfig[entity.Payer, int64]{
		Descriptor: entity.PayerDescriptor,
		Logger:     log,
		ID:         func(p entity.Payer) int64 { return p.ID },
		Key:        int64Key,
		Stamp:      func(p entity.Payer) time.Time { return p.UpdatedAt },
		List:       listAs[entity.Payer](cfg.Client, entity.TablePayers),
		Get:        getAs[entity.Payer](cfg.Client, entity.TablePayers, int64Key),
	})
	st.Admins = newSlice(&st.mu, emit, SliceConfig[entity.AdminUser, uuid.UUID]{
		Descriptor: entity.AdminDescriptor,
		Logger:     log,
		ID:         func(a entity.AdminUser) uuid.UUID { return a.ID },
		Key:        uuidKey,
		Stamp:      func(a entity.AdminUser) time.Time { return a.UpdatedAt },
		List:       listAs[entity.AdminUser](cfg.Client, entity.TableAdmins),
		Get:        getAs[entity.AdminUser](cfg.Client, entity.TableAdmins, uuidKey),
	})

	st.ClaimLines = newChildSet(&st.mu, emit, entity.TableClaimLines,
		func(l entity.ClaimLine) int64 { return l.ClaimID },
		func(l entity.ClaimLine) int64 { return l.ID },
		int64Key,
	)
	st.Coverages = newChildSet(&st.mu, emit, entity.TableCoverages,
		func(c entity.Coverage) uuid.UUID { return c.PatientID },
		func(c entity.Coverage) int64 { return c.ID },
		int64Key,
	)
	st.Claims.OnRemove(st.ClaimLines.Prune)
	st.Patients.OnRemove(st.Coverages.Prune)

	st.filters = map[string]pipeline.Filters{
		entity.TableClaims: st.defaultClaimFilters(),
	}
	return st
}

func uuidKey(id uuid.UUID) string { return id.String() }
func int64Key(id int64) string    { return strconv.FormatInt(id, 10) }

func listAs[T any](c Collaborator, table string) func(context.Context) ([]T, error) {
	return func(ctx context.Context) ([]T, error) {
		raw, err := c.List(ctx, table)
		if err != nil {
			return nil, err
		}
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", table, err)
		}
		return out, nil
	}
}

func getAs[T any, K comparable](c Collaborator, table string, key func(K) string) func(context.Context, K) (T, error) {
	return func(ctx context.Context, id K) (T, error) {
		var out T
		raw, err := c.Get(ctx, table, key(id))
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("decode %s row: %w", table, err)
		}
		return out, nil
	}
}

// Subscribe registers an observer for every applied mutation. Observers run
// on the mutating goroutine after the lock is released and must not block.
func (st *Store) Subscribe(obs Observer) {
	st.obsMu.Lock()
	st.observers = append(st.observers, obs)
	st.obsMu.Unlock()
}

func (st *Store) dispatch(ev ChangeEvent) {
	st.obsMu.RLock()
	observers := st.observers
	st.obsMu.RUnlock()
	for _, obs := range observers {
		obs(ev)
	}
}

// FetchAllCollections loads every top-level collection in parallel. Each
// slice keeps its own request state; the returned error is the first fetch
// failure, if any.
func (st *Store) FetchAllCollections(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Patients.FetchAll(ctx) })
	g.Go(func() error { return st.Claims.FetchAll(ctx) })
	g.Go(func() error { return st.PriorAuths.FetchAll(ctx) })
	g.Go(func() error { return st.Payments.FetchAll(ctx) })
	g.Go(func() error { return st.Providers.FetchAll(ctx) })
	g.Go(func() error { return st.Payers.FetchAll(ctx) })
	g.Go(func() error { return st.Admins.FetchAll(ctx) })
	return g.Wait()
}

// FetchClaimLines loads the child rows for one claim.
func (st *Store) FetchClaimLines(ctx context.Context, claimID int64) error {
	raw, err := st.client.List(ctx, fmt.Sprintf("%s/%d/%s", entity.TableClaims, claimID, entity.TableClaimLines))
	if err != nil {
		return err
	}
	var lines []entity.ClaimLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return fmt.Errorf("decode claim lines: %w", err)
	}
	st.ClaimLines.SetChildren(claimID, lines)
	return nil
}

// FetchCoverages loads the coverage rows for one patient.
func (st *Store) FetchCoverages(ctx context.Context, patientID uuid.UUID) error {
	raw, err := st.client.List(ctx, fmt.Sprintf("%s/%s/%s", entity.TablePatients, patientID, entity.TableCoverages))
	if err != nil {
		return err
	}
	var rows []entity.Coverage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("decode coverages: %w", err)
	}
	st.Coverages.SetChildren(patientID, rows)
	return nil
}

// SetView switches the dashboard view and appends a breadcrumb.
func (st *Store) SetView(v View) {
	st.mu.Lock()
	st.view = v
	st.breadcrumbs = append(st.breadcrumbs, string(v))
	if len(st.breadcrumbs) > 20 {
		st.breadcrumbs = st.breadcrumbs[len(st.breadcrumbs)-20:]
	}
	st.mu.Unlock()
}

// CurrentView returns the active view.
func (st *Store) CurrentView() View {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.view
}

// SetBreadcrumbs replaces the navigation trail, keeping the 20-entry cap.
// Used to restore a persisted trail on startup.
func (st *Store) SetBreadcrumbs(trail []string) {
	st.mu.Lock()
	if len(trail) > 20 {
		trail = trail[len(trail)-20:]
	}
	st.breadcrumbs = append([]string(nil), trail...)
	st.mu.Unlock()
}

// Breadcrumbs returns a copy of the navigation trail.
func (st *Store) Breadcrumbs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, len(st.breadcrumbs))
	copy(out, st.breadcrumbs)
	return out
}

// SetGlobalError records a store-wide error string (bulk failures land here).
func (st *Store) SetGlobalError(msg string) {
	st.mu.Lock()
	st.globalErr = msg
	st.mu.Unlock()
}

// GlobalError returns the store-wide error string.
func (st *Store) GlobalError() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.globalErr
}

// SetFilter sets one filter field for a table.
func (st *Store) SetFilter(table, field string, value any) {
	st.mu.Lock()
	if st.filters[table] == nil {
		st.filters[table] = pipeline.Filters{}
	}
	st.filters[table][field] = value
	st.mu.Unlock()
}

// ClearFilters restores a table's filters to its defaults.
func (st *Store) ClearFilters(table string) {
	st.mu.Lock()
	delete(st.filters, table)
	if table == entity.TableClaims {
		st.filters[table] = st.defaultClaimFilters()
	}
	st.mu.Unlock()
}

// SetDefaultClaimStatuses replaces the configured claims filter default and
// applies it. Empty restores the open-states default. Called on config reload.
func (st *Store) SetDefaultClaimStatuses(statuses []string) {
	st.mu.Lock()
	st.claimStatuses = append([]string(nil), statuses...)
	st.filters[entity.TableClaims] = st.defaultClaimFilters()
	st.mu.Unlock()
}

// Filters returns a copy of the active filter state for a table.
func (st *Store) Filters(table string) pipeline.Filters {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := pipeline.Filters{}
	for k, v := range st.filters[table] {
		out[k] = v
	}
	return out
}

func (st *Store) defaultClaimFilters() pipeline.Filters {
	src := st.claimStatuses
	if len(src) == 0 {
		src = entity.OpenClaimStatuses
	}
	statuses := make([]string, len(src))
	copy(statuses, src)
	return pipeline.Filters{"status": statuses}
}

// Reset clears every collection, child set, pointer, selection, filter, and
// the global UI state. Used on sign-out or tenant switch.
func (st *Store) Reset() {
	st.Patients.Reset()
	st.Claims.Reset()
	st.PriorAuths.Reset()
	st.Payments.Reset()
	st.Providers.Reset()
	st.Payers.Reset()
	st.Admins.Reset()
	st.ClaimLines.Reset()
	st.Coverages.Reset()

	st.mu.Lock()
	st.view = ViewClaims
	st.breadcrumbs = nil
	st.globalErr = ""
	st.filters = map[string]pipeline.Filters{
		entity.TableClaims: st.defaultClaimFilters(),
	}
	st.selection = selection{}
	st.bulk = bulkState{}
	st.mu.Unlock()

	st.dispatch(ChangeEvent{Op: OpReset})
}
