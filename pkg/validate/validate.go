// Package validate checks user-entered records before they are sent to the
// backend. Validators are pure: they return a field-to-message map and never
// touch the store or the network.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cptRe   = regexp.MustCompile(`^[0-9]{5}$|^[0-9]{4}[A-Z]$`)
)

// Patient validates an editable patient record. Returns a map of field name
// to message and true when the record is acceptable.
func Patient(p entity.Patient) (map[string]string, bool) {
	problems := make(map[string]string)
	if strings.TrimSpace(p.MRN) == "" {
		problems["mrn"] = "medical record number is required"
	}
	if strings.TrimSpace(p.FirstName) == "" {
		problems["first_name"] = "first name is required"
	}
	if strings.TrimSpace(p.LastName) == "" {
		problems["last_name"] = "last name is required"
	}
	if p.DateOfBirth.IsZero() {
		problems["date_of_birth"] = "date of birth is required"
	} else if p.DateOfBirth.After(time.Now()) {
		problems["date_of_birth"] = "date of birth cannot be in the future"
	}
	if p.Email != "" && !emailRe.MatchString(p.Email) {
		problems["email"] = "email address is not valid"
	}
	if p.Phone != "" && !validPhone(p.Phone) {
		problems["phone"] = "phone number must contain at least 10 digits"
	}
	return problems, len(problems) == 0
}

// Claim validates an editable claim record.
func Claim(c entity.Claim) (map[string]string, bool) {
	problems := make(map[string]string)
	if strings.TrimSpace(c.ClaimNumber) == "" {
		problems["claim_number"] = "claim number is required"
	}
	if c.PatientID == uuid.Nil {
		problems["patient_id"] = "claim must reference a patient"
	}
	if c.ProviderID == 0 {
		problems["provider_id"] = "claim must reference a provider"
	}
	if c.PayerID == 0 {
		problems["payer_id"] = "claim must reference a payer"
	}
	if c.TotalCents < 0 {
		problems["total_cents"] = "claim total cannot be negative"
	}
	if c.ServiceDate.IsZero() {
		problems["service_date"] = "service date is required"
	} else if c.ServiceDate.After(time.Now()) {
		problems["service_date"] = "service date cannot be in the future"
	}
	switch c.Status {
	case entity.ClaimDraft, entity.ClaimSubmitted, entity.ClaimNeedsReview,
		entity.ClaimDenied, entity.ClaimPaid, entity.ClaimVoided:
	default:
		problems["status"] = "unknown claim status"
	}
	return problems, len(problems) == 0
}

// ClaimLine validates one service line before it is attached to a claim.
func ClaimLine(l entity.ClaimLine) (map[string]string, bool) {
	problems := make(map[string]string)
	if !cptRe.MatchString(l.CPTCode) {
		problems["cpt_code"] = "CPT code must be five digits or four digits and a letter"
	}
	if l.Units <= 0 {
		problems["units"] = "units must be at least 1"
	}
	if l.ChargeCents < 0 {
		problems["charge_cents"] = "charge cannot be negative"
	}
	return problems, len(problems) == 0
}

// Payment validates a remittance before posting.
func Payment(p entity.Payment) (map[string]string, bool) {
	problems := make(map[string]string)
	if p.ClaimID == 0 {
		problems["claim_id"] = "payment must reference a claim"
	}
	if p.AmountCents <= 0 {
		problems["amount_cents"] = "payment amount must be positive"
	}
	switch p.Status {
	case entity.PaymentPending, entity.PaymentPosted, entity.PaymentReconciled, entity.PaymentRejected:
	default:
		problems["status"] = "unknown payment status"
	}
	return problems, len(problems) == 0
}

func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 10
}
