package uiserver

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/pipeline"
)

// fielder is satisfied by every entity record.
type fielder interface {
	Field(name string) any
}

// searchFields lists the columns the q= param matches per table.
var searchFields = map[string][]string{
	entity.TablePatients:   {"mrn", "first_name", "last_name", "email"},
	entity.TableClaims:     {"claim_number", "status"},
	entity.TablePriorAuths: {"auth_number", "procedure", "status"},
	entity.TablePayments:   {"check_number", "status"},
	entity.TableProviders:  {"npi", "name", "specialty"},
	entity.TablePayers:     {"name", "plan_type"},
	entity.TableAdmins:     {"email", "name", "role"},
}

// applyQuery runs the display pipeline over a collection snapshot. Supported
// params: filter.{field}=a,b (membership), q= (substring search over the
// table's search columns), sort= and dir=desc, page= and page_size=. It
// returns the shaped slice and the match count before pagination.
func applyQuery[T fielder](items []T, table string, q url.Values) ([]T, int) {
	acc := func(item T, field string) any { return item.Field(field) }

	filters := pipeline.Filters{}
	for key, vals := range q {
		name, ok := strings.CutPrefix(key, "filter.")
		if !ok || name == "" || len(vals) == 0 {
			continue
		}
		filters[name] = strings.Split(vals[0], ",")
	}
	if len(filters) > 0 {
		items = pipeline.Filter(items, filters, acc)
	}

	if term := q.Get("q"); term != "" {
		items = pipeline.Search(items, term, searchFields[table], acc)
	}

	if field := q.Get("sort"); field != "" {
		state := pipeline.SortState{Field: field, Descending: q.Get("dir") == "desc"}
		items = pipeline.Sort(items, state, acc)
	}

	total := len(items)
	if q.Has("page") || q.Has("page_size") {
		size, _ := strconv.Atoi(q.Get("page_size"))
		page := pipeline.NewPage(size)
		if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
			page.Number = n
		}
		page.Clamp(total)
		items = pipeline.Paginate(items, page)
	}
	return items, total
}
