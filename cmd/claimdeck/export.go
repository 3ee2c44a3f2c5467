package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/store"
)

// Columns written per table, in spreadsheet order.
var exportColumns = map[string][]string{
	entity.TablePatients:   {"id", "mrn", "first_name", "last_name", "date_of_birth", "phone", "email", "status", "updated_at"},
	entity.TableClaims:     {"id", "claim_number", "patient_id", "provider_id", "payer_id", "status", "total_cents", "service_date", "submitted_at", "updated_at"},
	entity.TablePriorAuths: {"id", "auth_number", "patient_id", "provider_id", "status", "procedure", "requested_at", "decided_at", "updated_at"},
	entity.TablePayments:   {"id", "claim_id", "payer_id", "amount_cents", "status", "check_number", "posted_at", "updated_at"},
	entity.TableProviders:  {"id", "npi", "name", "specialty", "active", "updated_at"},
	entity.TablePayers:     {"id", "name", "plan_type", "active", "updated_at"},
	entity.TableAdmins:     {"id", "email", "name", "role", "active", "updated_at"},
}

// exportRows materializes the selected records of one table into header and
// row form for the exporter. Unknown ids are skipped; a record removed
// between selection and export is not an error.
func exportRows(st *store.Store, table string, ids []string) ([]string, [][]any, error) {
	headers, ok := exportColumns[table]
	if !ok {
		return nil, nil, fmt.Errorf("export: unknown table %q", table)
	}

	var rows [][]any
	add := func(rec interface{ Field(string) any }, ok bool) {
		if !ok {
			return
		}
		row := make([]any, len(headers))
		for i, h := range headers {
			row[i] = rec.Field(h)
		}
		rows = append(rows, row)
	}

	switch table {
	case entity.TablePatients:
		for _, id := range ids {
			if key, err := uuid.Parse(id); err == nil {
				add(st.Patients.Get(key))
			}
		}
	case entity.TableClaims:
		for _, id := range int64IDs(ids) {
			add(st.Claims.Get(id))
		}
	case entity.TablePriorAuths:
		for _, id := range int64IDs(ids) {
			add(st.PriorAuths.Get(id))
		}
	case entity.TablePayments:
		for _, id := range int64IDs(ids) {
			add(st.Payments.Get(id))
		}
	case entity.TableProviders:
		for _, id := range int64IDs(ids) {
			add(st.Providers.Get(id))
		}
	case entity.TablePayers:
		for _, id := range int64IDs(ids) {
			add(st.Payers.Get(id))
		}
	case entity.TableAdmins:
		for _, id := range ids {
			if key, err := uuid.Parse(id); err == nil {
				add(st.Admins.Get(key))
			}
		}
	}
	return headers, rows, nil
}

func int64IDs(ids []string) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}
