package llm

import (
	"context"
	"sync"
)

// StubClient serves canned responses instead of calling a provider. Enabled
// via llm.stub in config for local development and demos. Pages are served
// in order; once exhausted every further call returns an empty list, which
// the importer treats as end of results.
type StubClient struct {
	mu    sync.Mutex
	pages []string
	next  int
}

// DefaultStubPages is a single plausible page of company records.
var DefaultStubPages = []string{
	`[
		{"company_name": "Maker Forge Tools", "company_tagline": "Hand tools built to outlive you",
		 "industries": "Tools, Hardware", "product_keywords": "hammers, chisels",
		 "url": "https://makerforge.example.com", "headquarters_location": "Portland, OR",
		 "manufacturing_locations": ["Portland, OR"]},
		{"company_name": "Cedar & Steel Co", "industries": ["Furniture"],
		 "url": "https://cedarsteel.example.com", "headquarters_location": "Asheville, NC"}
	]`,
}

// NewStubClient creates a stub that serves the given pages in order.
// With no pages it serves DefaultStubPages.
func NewStubClient(pages ...string) *StubClient {
	if len(pages) == 0 {
		pages = DefaultStubPages
	}
	return &StubClient{pages: pages}
}

func (s *StubClient) ProviderName() string { return "stub" }
func (s *StubClient) ModelName() string    { return "stub" }

func (s *StubClient) Complete(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.pages) {
		return "[]", nil
	}
	page := s.pages[s.next]
	s.next++
	return page, nil
}
