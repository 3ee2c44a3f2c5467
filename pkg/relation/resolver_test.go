package relation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/store"
)

func fixtureClaim(id int64, patient uuid.UUID, provider, payer int64) entity.Claim {
	return entity.Claim{
		ID:          id,
		ClaimNumber: "CLM-1000",
		PatientID:   patient,
		ProviderID:  provider,
		PayerID:     payer,
		Status:      entity.ClaimSubmitted,
		ServiceDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}
}

func TestClaimsForPatientTracksAdds(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	patient := uuid.New()
	other := uuid.New()
	require.NoError(t, st.Claims.Add(fixtureClaim(1, patient, 10, 20)))
	require.NoError(t, st.Claims.Add(fixtureClaim(2, other, 10, 20)))
	require.NoError(t, st.Claims.Add(fixtureClaim(3, patient, 10, 20)))

	claims := r.ClaimsForPatient(patient)
	require.Len(t, claims, 2)
	assert.Equal(t, int64(1), claims[0].ID)
	assert.Equal(t, int64(3), claims[1].ID)
	assert.Len(t, r.ClaimsForPatient(other), 1)
}

func TestClaimsForPatientTracksRemoveAndReassignment(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	patientA := uuid.New()
	patientB := uuid.New()
	require.NoError(t, st.Claims.Add(fixtureClaim(1, patientA, 10, 20)))

	// Reassigning a claim to a different patient moves it between buckets.
	require.NoError(t, st.Claims.Update(1, map[string]any{"patient_id": patientB.String()}))
	assert.Empty(t, r.ClaimsForPatient(patientA))
	require.Len(t, r.ClaimsForPatient(patientB), 1)

	st.Claims.Remove(1)
	assert.Empty(t, r.ClaimsForPatient(patientB))
}

func TestPaymentsForClaimIncremental(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	st.Payments.Upsert(entity.Payment{ID: 1, ClaimID: 100, AmountCents: 2500, Status: entity.PaymentPosted})
	st.Payments.Upsert(entity.Payment{ID: 2, ClaimID: 100, AmountCents: 7500, Status: entity.PaymentPending})
	st.Payments.Upsert(entity.Payment{ID: 3, ClaimID: 200, AmountCents: 100, Status: entity.PaymentPosted})

	require.Len(t, r.PaymentsForClaim(100), 2)
	require.Len(t, r.PaymentsForClaim(200), 1)

	st.Payments.Remove(2)
	got := r.PaymentsForClaim(100)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestJoinsResolveReferencedRows(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	patient := uuid.New()
	st.Patients.Upsert(entity.Patient{ID: patient, MRN: "MRN-1", FirstName: "Ada", LastName: "Lovelace"})
	st.Providers.Upsert(entity.Provider{ID: 10, NPI: "1234567893", Name: "Dr. Chen", Active: true})
	st.Payers.Upsert(entity.Payer{ID: 20, Name: "Acme Health", PlanType: "PPO", Active: true})
	require.NoError(t, st.Claims.Add(fixtureClaim(1, patient, 10, 20)))

	p, ok := r.PatientForClaim(1)
	require.True(t, ok)
	assert.Equal(t, "MRN-1", p.MRN)

	prov, ok := r.ProviderForClaim(1)
	require.True(t, ok)
	assert.Equal(t, "Dr. Chen", prov.Name)

	payer, ok := r.PayerForClaim(1)
	require.True(t, ok)
	assert.Equal(t, "Acme Health", payer.Name)
}

func TestJoinsMissForUnknownClaim(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	_, ok := r.PatientForClaim(404)
	assert.False(t, ok)
	_, ok = r.ProviderForClaim(404)
	assert.False(t, ok)
}

func TestResolverRebuildsOnSetAndReset(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	patient := uuid.New()
	st.Claims.Set([]entity.Claim{
		fixtureClaim(1, patient, 10, 20),
		fixtureClaim(2, patient, 10, 20),
	})
	require.Len(t, r.ClaimsForPatient(patient), 2)

	st.Reset()
	assert.Empty(t, r.ClaimsForPatient(patient))
}

func TestPriorAuthsForPatient(t *testing.T) {
	st := store.New(store.Config{})
	r := New(st)

	patient := uuid.New()
	st.PriorAuths.Upsert(entity.PriorAuth{ID: 1, PatientID: patient, Status: entity.PriorAuthRequested})
	st.PriorAuths.Upsert(entity.PriorAuth{ID: 2, PatientID: uuid.New(), Status: entity.PriorAuthRequested})

	got := r.PriorAuthsForPatient(patient)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}
