package entity

// Table names as addressed by both the HTTP collaborator and the realtime
// transport ({base-url}/{table}).
const (
	TablePatients   = "patients"
	TableClaims     = "claims"
	TableClaimLines = "claim_lines"
	TableCoverages  = "coverages"
	TablePriorAuths = "prior_auths"
	TablePayments   = "payments"
	TableProviders  = "providers"
	TablePayers     = "payers"
	TableAdmins     = "admin_users"
)

// Descriptor describes one entity type to the generic slice factory: where
// its rows live, which column is the id, and which child tables hang off it.
type Descriptor struct {
	Table       string
	IDField     string
	ChildTables []string
}

// Descriptors for the seven top-level collections. Child tables (claim lines,
// coverages) are not listed here; they are owned by their parent's slice.
var (
	PatientDescriptor = Descriptor{
		Table:       TablePatients,
		IDField:     "id",
		ChildTables: []string{TableCoverages},
	}
	ClaimDescriptor = Descriptor{
		Table:       TableClaims,
		IDField:     "id",
		ChildTables: []string{TableClaimLines},
	}
	PriorAuthDescriptor = Descriptor{Table: TablePriorAuths, IDField: "id"}
	PaymentDescriptor   = Descriptor{Table: TablePayments, IDField: "id"}
	ProviderDescriptor  = Descriptor{Table: TableProviders, IDField: "id"}
	PayerDescriptor     = Descriptor{Table: TablePayers, IDField: "id"}
	AdminDescriptor     = Descriptor{Table: TableAdmins, IDField: "id"}
)
