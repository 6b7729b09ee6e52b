// Package model defines the core data types for the company importer.
package model

import "time"

// Fragment is one record-like object as parsed straight out of LLM response
// text, before normalization. It is untrusted input: fields may be missing,
// aliased (name vs company, website vs url) or mistyped.
type Fragment map[string]any

// Review is a single customer review attached to a company.
// Link is optional and only kept when it parses as a valid URL.
type Review struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// ContactInfo holds the optional contact sub-object. Invalid values are
// dropped during normalization, never stored as-is.
type ContactInfo struct {
	ContactPageURL string `json:"contact_page_url,omitempty"`
	ContactEmail   string `json:"contact_email,omitempty"`
}

// Company is the canonical normalized record produced by the pipeline.
// Lat/Lng mirror HQLat/HQLng: older consumers read the `lat`/`long`
// aliases, so both pairs are always emitted and always equal.
type Company struct {
	ID                     string       `json:"id"`
	CompanyName            string       `json:"company_name"`
	Tagline                string       `json:"company_tagline"`
	Industries             []string     `json:"industries"`
	ProductKeywords        string       `json:"product_keywords"`
	URL                    string       `json:"url"`
	EmailAddress           string       `json:"email_address"`
	AmazonURL              string       `json:"amazon_url"`
	HQLocation             string       `json:"headquarters_location"`
	ManufacturingLocations []string     `json:"manufacturing_locations"`
	RedFlag                bool         `json:"red_flag"`
	Reviews                []Review     `json:"reviews"`
	Notes                  string       `json:"notes"`
	ContactInfo            *ContactInfo `json:"company_contact_info,omitempty"`
	HQLat                  float64      `json:"hq_lat"`
	HQLng                  float64      `json:"hq_lng"`
	Lat                    float64      `json:"lat"`
	Lng                    float64      `json:"long"`
	ManuLats               []float64    `json:"manu_lats"`
	ManuLngs               []float64    `json:"manu_lngs"`
	SessionID              *string      `json:"session_id"`
	CreatedAt              time.Time    `json:"created_at"`
	NormalizedDomain       string       `json:"normalized_domain"`
}

// Key returns the identity used for deduplication and storage upserts:
// exact company name plus normalized domain.
func (c *Company) Key() string {
	return c.CompanyName + "\x00" + c.NormalizedDomain
}

// SearchQuery carries the caller-supplied filters. All fields are free-text
// conjunctions; every non-empty field narrows the prompt.
type SearchQuery struct {
	CompanyName            string `json:"company_name,omitempty"`
	ProductKeywords        string `json:"product_keywords,omitempty"`
	Industries             string `json:"industries,omitempty"`
	HeadquartersLocation   string `json:"headquarters_location,omitempty"`
	ManufacturingLocations string `json:"manufacturing_locations,omitempty"`
	EmailAddress           string `json:"email_address,omitempty"`
	URL                    string `json:"url,omitempty"`
	AmazonURL              string `json:"amazon_url,omitempty"`
}

// IsZero reports whether no filter is set.
func (q SearchQuery) IsZero() bool {
	return q == SearchQuery{}
}

// Import run statuses returned to the caller.
const (
	StatusComplete   = "complete"
	StatusExhaustive = "exhaustive — review or revise search"
)

// ImportResult is what one orchestrated run produces.
type ImportResult struct {
	Companies []Company `json:"companies"`
	Status    string    `json:"status"`
	Pages     int       `json:"pages"`
}

// LLMCall tracks each call to a completion provider for cost monitoring.
type LLMCall struct {
	ID         int64     `db:"id" json:"id"`
	Page       int       `db:"page" json:"page"`
	Provider   string    `db:"provider" json:"provider"`
	Model      string    `db:"model" json:"model"`
	Success    bool      `db:"success" json:"success"`
	DurationMs *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
