// Package entity defines the typed records mirrored by the claimdeck store.
// Every record is a flat snapshot of one backend row; open-ended fields live
// in an explicit Metadata map rather than untyped JSON.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Metadata holds payer- or site-specific fields that have no fixed schema.
type Metadata map[string]string

// ClaimStatus enumerates the claim lifecycle states the dashboard tracks.
type ClaimStatus string

const (
	ClaimDraft       ClaimStatus = "draft"
	ClaimSubmitted   ClaimStatus = "submitted"
	ClaimNeedsReview ClaimStatus = "needs-review"
	ClaimDenied      ClaimStatus = "denied"
	ClaimPaid        ClaimStatus = "paid"
	ClaimVoided      ClaimStatus = "voided"
)

// OpenClaimStatuses is the default claim view: everything still in flight.
var OpenClaimStatuses = []string{
	string(ClaimDraft),
	string(ClaimSubmitted),
	string(ClaimNeedsReview),
}

// PriorAuthStatus enumerates prior authorization decision states.
type PriorAuthStatus string

const (
	PriorAuthRequested PriorAuthStatus = "requested"
	PriorAuthApproved  PriorAuthStatus = "approved"
	PriorAuthDenied    PriorAuthStatus = "denied"
	PriorAuthExpired   PriorAuthStatus = "expired"
)

// PaymentStatus enumerates remittance posting states.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentPosted     PaymentStatus = "posted"
	PaymentReconciled PaymentStatus = "reconciled"
	PaymentRejected   PaymentStatus = "rejected"
)

// Patient is one person row from the patients table.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	MRN         string    `json:"mrn"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// Claim is one billed encounter submitted to a payer.
type Claim struct {
	ID          int64       `json:"id"`
	ClaimNumber string      `json:"claim_number"`
	PatientID   uuid.UUID   `json:"patient_id"`
	ProviderID  int64       `json:"provider_id"`
	PayerID     int64       `json:"payer_id"`
	Status      ClaimStatus `json:"status"`
	TotalCents  int64       `json:"total_cents"`
	ServiceDate time.Time   `json:"service_date"`
	SubmittedAt *time.Time  `json:"submitted_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Metadata    Metadata    `json:"metadata,omitempty"`
}

// ClaimLine is one service line on a claim. Lines are child rows keyed by
// claim id and are never fetched outside their parent's context.
type ClaimLine struct {
	ID          int64     `json:"id"`
	ClaimID     int64     `json:"claim_id"`
	CPTCode     string    `json:"cpt_code"`
	Description string    `json:"description"`
	Units       int       `json:"units"`
	ChargeCents int64     `json:"charge_cents"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Coverage is one insurance coverage row attached to a patient.
type Coverage struct {
	ID            int64     `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	PayerID       int64     `json:"payer_id"`
	MemberID      string    `json:"member_id"`
	GroupNumber   string    `json:"group_number"`
	EffectiveFrom time.Time `json:"effective_from"`
	EffectiveTo   time.Time `json:"effective_to"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PriorAuth is one prior authorization request.
type PriorAuth struct {
	ID          int64           `json:"id"`
	AuthNumber  string          `json:"auth_number"`
	PatientID   uuid.UUID       `json:"patient_id"`
	ProviderID  int64           `json:"provider_id"`
	Status      PriorAuthStatus `json:"status"`
	Procedure   string          `json:"procedure"`
	RequestedAt time.Time       `json:"requested_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Payment is one remittance against a claim.
type Payment struct {
	ID          int64         `json:"id"`
	ClaimID     int64         `json:"claim_id"`
	PayerID     int64         `json:"payer_id"`
	AmountCents int64         `json:"amount_cents"`
	Status      PaymentStatus `json:"status"`
	CheckNumber string        `json:"check_number"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Provider is one rendering or billing provider.
type Provider struct {
	ID        int64     `json:"id"`
	NPI       string    `json:"npi"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Payer is one insurance payer organization.
type Payer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PlanType  string    `json:"plan_type"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminUser is one dashboard operator account.
type AdminUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}
