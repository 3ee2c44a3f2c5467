package validate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
)

func validPatient() entity.Patient {
	return entity.Patient{
		ID:          uuid.New(),
		MRN:         "MRN-1001",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: time.Date(1985, 12, 10, 0, 0, 0, 0, time.UTC),
		Phone:       "(555) 010-2030",
		Email:       "ada@example.com",
	}
}

func validClaim() entity.Claim {
	return entity.Claim{
		ID:          1,
		ClaimNumber: "CLM-2026-0001",
		PatientID:   uuid.New(),
		ProviderID:  10,
		PayerID:     20,
		Status:      entity.ClaimDraft,
		TotalCents:  12500,
		ServiceDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestPatientValid(t *testing.T) {
	problems, ok := Patient(validPatient())
	assert.True(t, ok)
	assert.Empty(t, problems)
}

func TestPatientRequiredFields(t *testing.T) {
	p := validPatient()
	p.MRN = "  "
	p.FirstName = ""
	p.DateOfBirth = time.Time{}

	problems, ok := Patient(p)
	assert.False(t, ok)
	assert.Contains(t, problems, "mrn")
	assert.Contains(t, problems, "first_name")
	assert.Contains(t, problems, "date_of_birth")
	assert.NotContains(t, problems, "last_name")
}

func TestPatientFutureBirthDate(t *testing.T) {
	p := validPatient()
	p.DateOfBirth = time.Now().Add(24 * time.Hour)

	problems, ok := Patient(p)
	assert.False(t, ok)
	assert.Contains(t, problems, "date_of_birth")
}

func TestPatientOptionalContactFields(t *testing.T) {
	p := validPatient()
	p.Email = ""
	p.Phone = ""
	_, ok := Patient(p)
	assert.True(t, ok, "email and phone are optional")

	p.Email = "not-an-email"
	p.Phone = "555"
	problems, ok := Patient(p)
	assert.False(t, ok)
	assert.Contains(t, problems, "email")
	assert.Contains(t, problems, "phone")
}

func TestClaimValid(t *testing.T) {
	problems, ok := Claim(validClaim())
	assert.True(t, ok)
	assert.Empty(t, problems)
}

func TestClaimMissingReferences(t *testing.T) {
	c := validClaim()
	c.PatientID = uuid.Nil
	c.ProviderID = 0
	c.PayerID = 0

	problems, ok := Claim(c)
	assert.False(t, ok)
	assert.Contains(t, problems, "patient_id")
	assert.Contains(t, problems, "provider_id")
	assert.Contains(t, problems, "payer_id")
}

func TestClaimNegativeTotalAndUnknownStatus(t *testing.T) {
	c := validClaim()
	c.TotalCents = -1
	c.Status = entity.ClaimStatus("archived")

	problems, ok := Claim(c)
	assert.False(t, ok)
	assert.Contains(t, problems, "total_cents")
	assert.Contains(t, problems, "status")
}

func TestClaimLineCPTCode(t *testing.T) {
	line := entity.ClaimLine{CPTCode: "99213", Units: 1, ChargeCents: 9500}
	_, ok := ClaimLine(line)
	assert.True(t, ok)

	line.CPTCode = "0510F"
	_, ok = ClaimLine(line)
	assert.True(t, ok, "four digits plus a letter is a valid category code")

	line.CPTCode = "992"
	problems, ok := ClaimLine(line)
	assert.False(t, ok)
	assert.Contains(t, problems, "cpt_code")
}

func TestClaimLineUnitsAndCharge(t *testing.T) {
	line := entity.ClaimLine{CPTCode: "99213", Units: 0, ChargeCents: -5}
	problems, ok := ClaimLine(line)
	assert.False(t, ok)
	assert.Contains(t, problems, "units")
	assert.Contains(t, problems, "charge_cents")
}

func TestPaymentValidation(t *testing.T) {
	p := entity.Payment{ClaimID: 1, AmountCents: 2500, Status: entity.PaymentPending}
	_, ok := Payment(p)
	assert.True(t, ok)

	p = entity.Payment{ClaimID: 0, AmountCents: 0, Status: entity.PaymentStatus("mystery")}
	problems, ok := Payment(p)
	assert.False(t, ok)
	assert.Contains(t, problems, "claim_id")
	assert.Contains(t, problems, "amount_cents")
	assert.Contains(t, problems, "status")
}
