package entity

// Field accessors let the pure data pipeline and the exporter read record
// fields by column name without reflection. Unknown names return nil, which
// the pipeline treats as "sorts last / matches nothing".

func (p Patient) Field(name string) any {
	switch name {
	case "id":
		return p.ID.String()
	case "mrn":
		return p.MRN
	case "first_name":
		return p.FirstName
	case "last_name":
		return p.LastName
	case "date_of_birth":
		return p.DateOfBirth
	case "phone":
		return p.Phone
	case "email":
		return p.Email
	case "status":
		return p.Status
	case "updated_at":
		return p.UpdatedAt
	default:
		return nil
	}
}

func (c Claim) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "claim_number":
		return c.ClaimNumber
	case "patient_id":
		return c.PatientID.String()
	case "provider_id":
		return c.ProviderID
	case "payer_id":
		return c.PayerID
	case "status":
		return string(c.Status)
	case "total_cents":
		return c.TotalCents
	case "service_date":
		return c.ServiceDate
	case "submitted_at":
		if c.SubmittedAt == nil {
			return nil
		}
		return *c.SubmittedAt
	case "updated_at":
		return c.UpdatedAt
	default:
		return nil
	}
}

func (l ClaimLine) Field(name string) any {
	switch name {
	case "id":
		return l.ID
	case "claim_id":
		return l.ClaimID
	case "cpt_code":
		return l.CPTCode
	case "description":
		return l.Description
	case "units":
		return l.Units
	case "charge_cents":
		return l.ChargeCents
	case "updated_at":
		return l.UpdatedAt
	default:
		return nil
	}
}

func (c Coverage) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "patient_id":
		return c.PatientID.String()
	case "payer_id":
		return c.PayerID
	case "member_id":
		return c.MemberID
	case "group_number":
		return c.GroupNumber
	case "effective_from":
		return c.EffectiveFrom
	case "effective_to":
		return c.EffectiveTo
	case "updated_at":
		return c.UpdatedAt
	default:
		return nil
	}
}

func (a PriorAuth) Field(name string) any {
	switch name {
	case "id":
		return a.ID
	case "auth_number":
		return a.AuthNumber
	case "patient_id":
		return a.PatientID.String()
	case "provider_id":
		return a.ProviderID
	case "status":
		return string(a.Status)
	case "procedure":
		return a.Procedure
	case "requested_at":
		return a.RequestedAt
	case "decided_at":
		if a.DecidedAt == nil {
			return nil
		}
		return *a.DecidedAt
	case "updated_at":
		return a.UpdatedAt
	default:
		return nil
	}
}

func (p Payment) Field(name string) any {
	switch name {
	case "id":
		return p.ID
	case "claim_id":
		return p.ClaimID
	case "payer_id":
		return p.PayerID
	case "amount_cents":
		return p.AmountCents
	case "status":
		return string(p.Status)
	case "check_number":
		return p.CheckNumber
	case "posted_at":
		if p.PostedAt == nil {
			return nil
		}
		return *p.PostedAt
	case "updated_at":
		return p.UpdatedAt
	default:
		return nil
	}
}

func (p Provider) Field(name string) any {
	switch name {
	case "id":
		return p.ID
	case "npi":
		return p.NPI
	case "name":
		return p.Name
	case "specialty":
		return p.Specialty
	case "active":
		return p.Active
	case "updated_at":
		return p.UpdatedAt
	default:
		return nil
	}
}

func (p Payer) Field(name string) any {
	switch name {
	case "id":
		return p.ID
	case "name":
		return p.Name
	case "plan_type":
		return p.PlanType
	case "active":
		return p.Active
	case "updated_at":
		return p.UpdatedAt
	default:
		return nil
	}
}

func (a AdminUser) Field(name string) any {
	switch name {
	case "id":
		return a.ID.String()
	case "email":
		return a.Email
	case "name":
		return a.Name
	case "role":
		return a.Role
	case "active":
		return a.Active
	case "updated_at":
		return a.UpdatedAt
	default:
		return nil
	}
}
