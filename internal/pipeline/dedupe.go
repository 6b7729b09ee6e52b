package pipeline

import (
	"github.com/tabarnam/company-importer/internal/model"
)

// Accumulator collects normalized records for one import run, discarding
// repeats by (company_name, normalized_domain). It is scoped to a single
// request's lifetime and applied per record, so duplicates inside one page
// are dropped the same way as duplicates across pages.
type Accumulator struct {
	seen      map[string]struct{}
	companies []model.Company
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Add appends the record unless an already-accepted record shares its key.
// It reports whether the record was novel.
func (a *Accumulator) Add(c model.Company) bool {
	key := c.Key()
	if _, dup := a.seen[key]; dup {
		return false
	}
	a.seen[key] = struct{}{}
	a.companies = append(a.companies, c)
	return true
}

// Companies returns the accepted records in insertion order.
func (a *Accumulator) Companies() []model.Company {
	return a.companies
}

// Names returns the accepted company names, used to build the "exclude
// these" clause of the next page's prompt.
func (a *Accumulator) Names() []string {
	names := make([]string, len(a.companies))
	for i, c := range a.companies {
		names[i] = c.CompanyName
	}
	return names
}

// Len returns the number of accepted records.
func (a *Accumulator) Len() int {
	return len(a.companies)
}
