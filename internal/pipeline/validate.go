package pipeline

import (
	"fmt"

	"github.com/tabarnam/company-importer/internal/model"
)

// ValidateBatch is the terminal quality gate before records are returned or
// persisted. It fills remaining defaults in place, then enforces the
// canonical shape. One bad record fails the entire batch: by this point the
// caller expects well-formed data and cannot be given anything partial.
func ValidateBatch(companies []model.Company) error {
	for i := range companies {
		fillDefaults(&companies[i])
		if err := validateCompany(&companies[i]); err != nil {
			return fmt.Errorf("record %d (%s): %w", i, companies[i].CompanyName, err)
		}
	}
	return nil
}

// fillDefaults gives missing optional fields their documented defaults.
// Slices are forced non-nil so the JSON shape always carries arrays.
func fillDefaults(c *model.Company) {
	if c.Industries == nil {
		c.Industries = []string{}
	}
	if c.ManufacturingLocations == nil {
		c.ManufacturingLocations = []string{}
	}
	if c.ManuLats == nil {
		c.ManuLats = []float64{}
	}
	if c.ManuLngs == nil {
		c.ManuLngs = []float64{}
	}
	if c.Reviews == nil {
		c.Reviews = []model.Review{}
	}
	if c.HQLocation == "" {
		c.HQLocation = "Unknown"
	}
	if c.NormalizedDomain == "" {
		c.NormalizedDomain = "unknown"
	}
}

func validateCompany(c *model.Company) error {
	if c.ID == "" {
		return fmt.Errorf("missing id")
	}
	if c.CompanyName == "" {
		return fmt.Errorf("missing company_name")
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("missing created_at")
	}

	if len(c.ManuLats) != len(c.ManufacturingLocations) ||
		len(c.ManuLngs) != len(c.ManufacturingLocations) {
		return fmt.Errorf("coordinate sequences out of step: %d locations, %d lats, %d lngs",
			len(c.ManufacturingLocations), len(c.ManuLats), len(c.ManuLngs))
	}

	if c.Lat != c.HQLat || c.Lng != c.HQLng {
		return fmt.Errorf("lat/long aliases disagree with hq_lat/hq_lng")
	}

	for i, r := range c.Reviews {
		if r.Text == "" {
			return fmt.Errorf("review %d has empty text", i)
		}
		if r.Link != "" && !validHTTPURL(r.Link) {
			return fmt.Errorf("review %d has invalid link %q", i, r.Link)
		}
	}

	if info := c.ContactInfo; info != nil {
		if info.ContactPageURL == "" && info.ContactEmail == "" {
			return fmt.Errorf("empty company_contact_info should be omitted")
		}
		if info.ContactPageURL != "" && !validHTTPURL(info.ContactPageURL) {
			return fmt.Errorf("invalid contact_page_url %q", info.ContactPageURL)
		}
		if info.ContactEmail != "" && !validEmail(info.ContactEmail) {
			return fmt.Errorf("invalid contact_email %q", info.ContactEmail)
		}
	}

	return nil
}
