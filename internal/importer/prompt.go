package importer

import (
	"fmt"
	"strings"

	"github.com/tabarnam/company-importer/internal/model"
)

// BuildPrompt constructs the completion prompt for one page. Filters are
// free-text conjunctions; already-accepted company names are listed as
// exclusions so later pages don't resurface earlier results.
func BuildPrompt(query model.SearchQuery, exclude []string, pageSize int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `Find up to %d real companies that make physical products and return them as a JSON array.

Each element must be an object with these fields:
  company_name, company_tagline, industries, product_keywords, url,
  email_address, amazon_url, headquarters_location, manufacturing_locations,
  red_flag, reviews, notes, company_contact_info

Respond with ONLY the JSON array, no prose, no markdown fences.
`, pageSize)

	filters := []struct {
		label string
		value string
	}{
		{"company name", query.CompanyName},
		{"product keywords", query.ProductKeywords},
		{"industries", query.Industries},
		{"headquarters location", query.HeadquartersLocation},
		{"manufacturing location", query.ManufacturingLocations},
		{"email address", query.EmailAddress},
		{"website", query.URL},
		{"amazon storefront", query.AmazonURL},
	}

	wrote := false
	for _, f := range filters {
		if f.value == "" {
			continue
		}
		if !wrote {
			sb.WriteString("\nEvery company must match ALL of the following:\n")
			wrote = true
		}
		fmt.Fprintf(&sb, "- %s: %s\n", f.label, f.value)
	}

	if len(exclude) > 0 {
		sb.WriteString("\nDo NOT include any of these companies (already found):\n")
		for _, name := range exclude {
			fmt.Fprintf(&sb, "- %s\n", name)
		}
	}

	return sb.String()
}
