// Package relation derives cross-entity joins (patient→claims, claim→payer,
// claim→provider) from the normalized collections. Rather than scanning per
// call, the resolver keeps secondary id indexes that are updated
// incrementally from store change events.
package relation

import (
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/store"
)

// Resolver answers join lookups against the composed store.
type Resolver struct {
	st *store.Store

	mu              sync.RWMutex
	claimPatient    map[int64]uuid.UUID
	claimsByPatient map[uuid.UUID]map[int64]struct{}
	paymentClaim    map[int64]int64
	paymentsByClaim map[int64]map[int64]struct{}
	authPatient     map[int64]uuid.UUID
	authsByPatient  map[uuid.UUID]map[int64]struct{}
}

// New builds a resolver over st and subscribes to its change events so the
// indexes stay current without per-call rebuilds.
func New(st *store.Store) *Resolver {
	r := &Resolver{st: st}
	r.rebuildAll()
	st.Subscribe(r.onChange)
	return r
}

// ClaimsForPatient returns the patient's claims ordered by claim id.
func (r *Resolver) ClaimsForPatient(patientID uuid.UUID) []entity.Claim {
	r.mu.RLock()
	ids := sortedKeys(r.claimsByPatient[patientID])
	r.mu.RUnlock()

	out := make([]entity.Claim, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.st.Claims.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// PaymentsForClaim returns the remittances posted against one claim.
func (r *Resolver) PaymentsForClaim(claimID int64) []entity.Payment {
	r.mu.RLock()
	ids := sortedKeys(r.paymentsByClaim[claimID])
	r.mu.RUnlock()

	out := make([]entity.Payment, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.st.Payments.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// PriorAuthsForPatient returns the patient's prior authorizations.
func (r *Resolver) PriorAuthsForPatient(patientID uuid.UUID) []entity.PriorAuth {
	r.mu.RLock()
	ids := sortedKeys(r.authsByPatient[patientID])
	r.mu.RUnlock()

	out := make([]entity.PriorAuth, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.st.PriorAuths.Get(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// PayerForClaim resolves the payer the claim was billed to.
func (r *Resolver) PayerForClaim(claimID int64) (entity.Payer, bool) {
	claim, ok := r.st.Claims.Get(claimID)
	if !ok {
		return entity.Payer{}, false
	}
	return r.st.Payers.Get(claim.PayerID)
}

// ProviderForClaim resolves the rendering provider on the claim.
func (r *Resolver) ProviderForClaim(claimID int64) (entity.Provider, bool) {
	claim, ok := r.st.Claims.Get(claimID)
	if !ok {
		return entity.Provider{}, false
	}
	return r.st.Providers.Get(claim.ProviderID)
}

// PatientForClaim resolves the patient a claim belongs to.
func (r *Resolver) PatientForClaim(claimID int64) (entity.Patient, bool) {
	claim, ok := r.st.Claims.Get(claimID)
	if !ok {
		return entity.Patient{}, false
	}
	return r.st.Patients.Get(claim.PatientID)
}

func (r *Resolver) onChange(ev store.ChangeEvent) {
	switch ev.Table {
	case entity.TableClaims:
		r.applyClaim(ev)
	case entity.TablePayments:
		r.applyPayment(ev)
	case entity.TablePriorAuths:
		r.applyPriorAuth(ev)
	case "":
		if ev.Op == store.OpReset {
			r.rebuildAll()
		}
	}
}

func (r *Resolver) applyClaim(ev store.ChangeEvent) {
	switch ev.Op {
	case store.OpAdd, store.OpUpdate:
		claim, ok := ev.Record.(entity.Claim)
		if !ok {
			return
		}
		r.mu.Lock()
		r.unindexClaim(claim.ID)
		r.indexClaim(claim)
		r.mu.Unlock()
	case store.OpRemove:
		id, err := strconv.ParseInt(ev.Key, 10, 64)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.unindexClaim(id)
		r.mu.Unlock()
	case store.OpSet:
		r.mu.Lock()
		r.claimPatient = make(map[int64]uuid.UUID)
		r.claimsByPatient = make(map[uuid.UUID]map[int64]struct{})
		for _, c := range r.st.Claims.Records() {
			r.indexClaim(c)
		}
		r.mu.Unlock()
	}
}

func (r *Resolver) applyPayment(ev store.ChangeEvent) {
	switch ev.Op {
	case store.OpAdd, store.OpUpdate:
		p, ok := ev.Record.(entity.Payment)
		if !ok {
			return
		}
		r.mu.Lock()
		r.unindexPayment(p.ID)
		r.indexPayment(p)
		r.mu.Unlock()
	case store.OpRemove:
		id, err := strconv.ParseInt(ev.Key, 10, 64)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.unindexPayment(id)
		r.mu.Unlock()
	case store.OpSet:
		r.mu.Lock()
		r.paymentClaim = make(map[int64]int64)
		r.paymentsByClaim = make(map[int64]map[int64]struct{})
		for _, p := range r.st.Payments.Records() {
			r.indexPayment(p)
		}
		r.mu.Unlock()
	}
}

func (r *Resolver) applyPriorAuth(ev store.ChangeEvent) {
	switch ev.Op {
	case store.OpAdd, store.OpUpdate:
		a, ok := ev.Record.(entity.PriorAuth)
		if !ok {
			return
		}
		r.mu.Lock()
		r.unindexAuth(a.ID)
		r.indexAuth(a)
		r.mu.Unlock()
	case store.OpRemove:
		id, err := strconv.ParseInt(ev.Key, 10, 64)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.unindexAuth(id)
		r.mu.Unlock()
	case store.OpSet:
		r.mu.Lock()
		r.authPatient = make(map[int64]uuid.UUID)
		r.authsByPatient = make(map[uuid.UUID]map[int64]struct{})
		for _, a := range r.st.PriorAuths.Records() {
			r.indexAuth(a)
		}
		r.mu.Unlock()
	}
}

func (r *Resolver) rebuildAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimPatient = make(map[int64]uuid.UUID)
	r.claimsByPatient = make(map[uuid.UUID]map[int64]struct{})
	r.paymentClaim = make(map[int64]int64)
	r.paymentsByClaim = make(map[int64]map[int64]struct{})
	r.authPatient = make(map[int64]uuid.UUID)
	r.authsByPatient = make(map[uuid.UUID]map[int64]struct{})
	for _, c := range r.st.Claims.Records() {
		r.indexClaim(c)
	}
	for _, p := range r.st.Payments.Records() {
		r.indexPayment(p)
	}
	for _, a := range r.st.PriorAuths.Records() {
		r.indexAuth(a)
	}
}

func (r *Resolver) indexClaim(c entity.Claim) {
	r.claimPatient[c.ID] = c.PatientID
	if r.claimsByPatient[c.PatientID] == nil {
		r.claimsByPatient[c.PatientID] = make(map[int64]struct{})
	}
	r.claimsByPatient[c.PatientID][c.ID] = struct{}{}
}

func (r *Resolver) unindexClaim(id int64) {
	patientID, ok := r.claimPatient[id]
	if !ok {
		return
	}
	delete(r.claimPatient, id)
	if set := r.claimsByPatient[patientID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.claimsByPatient, patientID)
		}
	}
}

func (r *Resolver) indexPayment(p entity.Payment) {
	r.paymentClaim[p.ID] = p.ClaimID
	if r.paymentsByClaim[p.ClaimID] == nil {
		r.paymentsByClaim[p.ClaimID] = make(map[int64]struct{})
	}
	r.paymentsByClaim[p.ClaimID][p.ID] = struct{}{}
}

func (r *Resolver) unindexPayment(id int64) {
	claimID, ok := r.paymentClaim[id]
	if !ok {
		return
	}
	delete(r.paymentClaim, id)
	if set := r.paymentsByClaim[claimID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.paymentsByClaim, claimID)
		}
	}
}

func (r *Resolver) indexAuth(a entity.PriorAuth) {
	r.authPatient[a.ID] = a.PatientID
	if r.authsByPatient[a.PatientID] == nil {
		r.authsByPatient[a.PatientID] = make(map[int64]struct{})
	}
	r.authsByPatient[a.PatientID][a.ID] = struct{}{}
}

func (r *Resolver) unindexAuth(id int64) {
	patientID, ok := r.authPatient[id]
	if !ok {
		return
	}
	delete(r.authPatient, id)
	if set := r.authsByPatient[patientID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.authsByPatient, patientID)
		}
	}
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
