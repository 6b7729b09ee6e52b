package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabarnam/company-importer/internal/geo"
	"github.com/tabarnam/company-importer/internal/model"
)

// emailRe is a deliberately loose local@domain check. Full RFC 5322
// validation rejects real addresses; this only has to catch model garbage.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Alias chains: for each canonical field, the ordered list of source field
// names to try. Declared as data so the rules stay declarative and testable.
var (
	nameAliases       = []string{"company_name", "name", "company"}
	taglineAliases    = []string{"company_tagline", "tagline"}
	industriesAliases = []string{"industries", "industry"}
	keywordsAliases   = []string{"product_keywords", "keywords", "products"}
	urlAliases        = []string{"url", "website", "company_url"}
	emailAliases      = []string{"email_address", "email"}
	amazonAliases     = []string{"amazon_url", "amazon_link", "amazon"}
	hqAliases         = []string{"headquarters_location", "headquarters", "hq_location", "location"}
	manufAliases      = []string{"manufacturing_locations", "manufacturing", "manufacturing_sites"}
	notesAliases      = []string{"notes"}
	contactAliases    = []string{"company_contact_info", "contact_info"}
)

// Normalizer maps raw fragments onto the canonical Company shape and
// enriches them with geocoded coordinates. It is a pure transform apart
// from the geocoding calls: the input fragment is never mutated.
type Normalizer struct {
	affiliateTag string
	geocoder     geo.Geocoder

	// Injectable for tests; default to the real clock and uuid.
	now   func() time.Time
	newID func() string
}

// NewNormalizer creates a Normalizer. affiliateTag is appended to amazon.*
// URLs that don't already carry one.
func NewNormalizer(affiliateTag string, geocoder geo.Geocoder) *Normalizer {
	return &Normalizer{
		affiliateTag: affiliateTag,
		geocoder:     geocoder,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Normalize converts one raw fragment into a Company. Non-object fragments
// are rejected; everything else gets a record, with defaults filling any
// gaps. Geocoding runs once for the headquarters and once per manufacturing
// site, sequentially; fan-out is a handful of locations at most.
func (n *Normalizer) Normalize(ctx context.Context, raw any, sessionID *string) (*model.Company, error) {
	fragment, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fragment is %T, not an object", raw)
	}
	f := model.Fragment(fragment)

	c := &model.Company{
		ID:                     n.newID(),
		CompanyName:            pickString(f, nameAliases...),
		Tagline:                pickString(f, taglineAliases...),
		Industries:             parseIndustries(pick(f, industriesAliases...)),
		ProductKeywords:        parseKeywords(pick(f, keywordsAliases...)),
		URL:                    pickString(f, urlAliases...),
		EmailAddress:           pickString(f, emailAliases...),
		HQLocation:             pickString(f, hqAliases...),
		ManufacturingLocations: parseLocations(pick(f, manufAliases...)),
		RedFlag:                pickBool(f, "red_flag"),
		Reviews:                parseReviews(f["reviews"]),
		Notes:                  pickString(f, notesAliases...),
		ContactInfo:            parseContactInfo(pick(f, contactAliases...)),
		SessionID:              sessionID,
		CreatedAt:              n.now(),
	}

	if c.CompanyName == "" {
		c.CompanyName = "Unknown"
	}
	if c.HQLocation == "" {
		c.HQLocation = "Unknown"
	}

	c.AmazonURL = n.tagAmazonURL(pickString(f, amazonAliases...))
	c.NormalizedDomain = NormalizeDomain(c.URL)

	hq := n.geocoder.Locate(ctx, c.HQLocation)
	c.HQLat, c.HQLng = hq.Lat, hq.Lng
	c.Lat, c.Lng = hq.Lat, hq.Lng

	// One coordinate pair per manufacturing site, failures included, so the
	// three sequences always stay the same length.
	c.ManuLats = make([]float64, 0, len(c.ManufacturingLocations))
	c.ManuLngs = make([]float64, 0, len(c.ManufacturingLocations))
	for _, site := range c.ManufacturingLocations {
		p := n.geocoder.Locate(ctx, site)
		c.ManuLats = append(c.ManuLats, p.Lat)
		c.ManuLngs = append(c.ManuLngs, p.Lng)
	}

	return c, nil
}

// pick returns the first present value among the candidate keys.
func pick(f model.Fragment, keys ...string) any {
	for _, key := range keys {
		if v, ok := f[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// pickString returns the first non-empty trimmed string among the keys.
func pickString(f model.Fragment, keys ...string) string {
	for _, key := range keys {
		if s, ok := f[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func pickBool(f model.Fragment, key string) bool {
	b, _ := f[key].(bool)
	return b
}

// parseIndustries accepts an array of strings or a single delimiter-
// separated string (comma, semicolon or pipe), trims entries and drops
// duplicates while preserving first-seen order.
func parseIndustries(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		})
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// parseKeywords accepts a string or an array of strings and returns a
// comma-joined string of terms.
func parseKeywords(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var terms []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					terms = append(terms, s)
				}
			}
		}
		return strings.Join(terms, ", ")
	}
	return ""
}

// parseLocations accepts a string (one site) or an array of strings.
func parseLocations(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return []string{}
}

// parseReviews accepts a plain string (wrapped as one review), an array of
// strings, or an array of {text, link} objects. Entries without text are
// discarded; an invalid link is dropped while the text is kept.
func parseReviews(v any) []model.Review {
	wrap := func(text string) (model.Review, bool) {
		text = strings.TrimSpace(text)
		return model.Review{Text: text}, text != ""
	}

	switch t := v.(type) {
	case string:
		if r, ok := wrap(t); ok {
			return []model.Review{r}
		}
	case []any:
		out := make([]model.Review, 0, len(t))
		for _, e := range t {
			switch entry := e.(type) {
			case string:
				if r, ok := wrap(entry); ok {
					out = append(out, r)
				}
			case map[string]any:
				text, _ := entry["text"].(string)
				r, ok := wrap(text)
				if !ok {
					continue
				}
				if link, _ := entry["link"].(string); validHTTPURL(link) {
					r.Link = strings.TrimSpace(link)
				}
				out = append(out, r)
			}
		}
		return out
	}
	return []model.Review{}
}

// parseContactInfo validates each contact field individually, dropping
// invalid values rather than keeping them as-is. A sub-object with nothing
// valid left becomes nil.
func parseContactInfo(v any) *model.ContactInfo {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	info := &model.ContactInfo{}
	if u, _ := m["contact_page_url"].(string); validHTTPURL(u) {
		info.ContactPageURL = strings.TrimSpace(u)
	}
	if e, _ := m["contact_email"].(string); validEmail(e) {
		info.ContactEmail = strings.TrimSpace(e)
	}

	if *info == (model.ContactInfo{}) {
		return nil
	}
	return info
}

// tagAmazonURL appends the affiliate tag query parameter, but only when the
// parsed hostname contains "amazon." and no tag is already present.
// Anything else passes through untouched.
func (n *Normalizer) tagAmazonURL(raw string) string {
	if raw == "" || n.affiliateTag == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(strings.ToLower(u.Hostname()), "amazon.") {
		return raw
	}

	q := u.Query()
	if q.Get("tag") != "" {
		return raw
	}
	q.Set("tag", n.affiliateTag)
	u.RawQuery = q.Encode()
	return u.String()
}

// NormalizeDomain derives the lowercased hostname from a URL, stripping a
// leading "www.". Unparseable input yields "unknown" so that half of the
// dedup key is always present.
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "unknown"
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		// Bare domains like "acme.com" parse with an empty host; retry with
		// a scheme before giving up.
		u, err = url.Parse("https://" + raw)
		if err != nil || u.Hostname() == "" {
			return "unknown"
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return "unknown"
	}
	return host
}

func validHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}
