package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/geo"
	"github.com/tabarnam/company-importer/internal/llm"
	"github.com/tabarnam/company-importer/internal/model"
	"github.com/tabarnam/company-importer/internal/pipeline"
	"github.com/tabarnam/company-importer/internal/storage"
)

// memCompanyRepo is an in-memory CompanyRepository. failFor makes Upsert
// fail for one company name, to exercise the non-fatal persistence path.
type memCompanyRepo struct {
	upserts []model.Company
	failFor string
}

func (m *memCompanyRepo) Upsert(_ context.Context, c *model.Company) error {
	if m.failFor != "" && c.CompanyName == m.failFor {
		return errors.New("store unavailable")
	}
	m.upserts = append(m.upserts, *c)
	return nil
}

func (m *memCompanyRepo) GetByKey(context.Context, string, string) (*model.Company, error) {
	return nil, storage.ErrNotFound
}

func (m *memCompanyRepo) Count(context.Context) (int64, error) {
	return int64(len(m.upserts)), nil
}

func (m *memCompanyRepo) ListBySession(context.Context, string) ([]model.Company, error) {
	return nil, nil
}

type memCallRepo struct {
	calls []model.LLMCall
}

func (m *memCallRepo) Create(_ context.Context, call *model.LLMCall) error {
	m.calls = append(m.calls, *call)
	return nil
}

func (m *memCallRepo) CountCalls(context.Context) (int64, error) {
	return int64(len(m.calls)), nil
}

// seqClient serves a fixed sequence of responses, then empty pages.
type seqClient struct {
	mu        sync.Mutex
	responses []seqResponse
	next      int
}

type seqResponse struct {
	text string
	err  error
}

func (c *seqClient) ProviderName() string { return "seq" }
func (c *seqClient) ModelName() string    { return "seq" }

func (c *seqClient) Complete(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next >= len(c.responses) {
		return "[]", nil
	}
	r := c.responses[c.next]
	c.next++
	return r.text, r.err
}

func newTestImporter(t *testing.T, client llm.Client, companyRepo *memCompanyRepo, callRepo *memCallRepo) *Importer {
	t.Helper()
	normalizer := pipeline.NewNormalizer("tabarnam00-20", geo.Disabled{})
	// High rate so tests never block on the limiter.
	return New([]llm.Client{client}, 600_000, 0, normalizer, companyRepo, callRepo, zap.NewNop())
}

func TestRun_CrossPageDedupe(t *testing.T) {
	// Both pages return Acme; www.acme.com and acme.com normalize to the
	// same domain, so only one Acme survives.
	client := &seqClient{responses: []seqResponse{
		{text: `[{"company_name":"Acme","url":"https://acme.com"}]`},
		{text: `[{"company_name":"Acme","url":"https://www.acme.com"},{"company_name":"Globex","url":"https://globex.com"}]`},
	}}
	repo := &memCompanyRepo{}

	imp := newTestImporter(t, client, repo, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 2 {
		t.Fatalf("expected 2 companies, got %d", len(result.Companies))
	}
	acmes := 0
	for _, c := range result.Companies {
		if c.CompanyName == "Acme" {
			acmes++
		}
	}
	if acmes != 1 {
		t.Errorf("expected exactly one Acme, got %d", acmes)
	}

	// Only novel records reach storage.
	if len(repo.upserts) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(repo.upserts))
	}

	if result.Status != model.StatusExhaustive {
		t.Errorf("expected exhaustive status, got %q", result.Status)
	}
}

func TestRun_IntraPageDedupe(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: `[{"company_name":"Acme","url":"https://acme.com"},{"company_name":"Acme","url":"https://acme.com"}]`},
	}}
	repo := &memCompanyRepo{}

	imp := newTestImporter(t, client, repo, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 1 {
		t.Errorf("expected duplicate inside one page to be dropped, got %d records", len(result.Companies))
	}
	if len(repo.upserts) != 1 {
		t.Errorf("expected 1 upsert, got %d", len(repo.upserts))
	}
}

func TestRun_StatusCompleteWhenTargetReached(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: `[{"company_name":"Acme","url":"https://acme.com"},{"company_name":"Globex","url":"https://globex.com"}]`},
	}}

	imp := newTestImporter(t, client, &memCompanyRepo{}, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Status != model.StatusComplete {
		t.Errorf("expected complete status, got %q", result.Status)
	}
	if result.Pages != 1 {
		t.Errorf("expected 1 page, got %d", result.Pages)
	}
}

func TestRun_PageTruncatedAtMaxImports(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: `[{"company_name":"A","url":"https://a.com"},{"company_name":"B","url":"https://b.com"},{"company_name":"C","url":"https://c.com"}]`},
	}}

	imp := newTestImporter(t, client, &memCompanyRepo{}, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 1 || result.Companies[0].CompanyName != "A" {
		t.Errorf("expected only the first record accepted, got %+v", result.Companies)
	}
	if result.Status != model.StatusComplete {
		t.Errorf("expected complete status, got %q", result.Status)
	}
}

func TestRun_ProviderErrorAdvancesPage(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{err: errors.New("upstream 503")},
		{text: `[{"company_name":"Acme","url":"https://acme.com"}]`},
	}}
	callRepo := &memCallRepo{}

	imp := newTestImporter(t, client, &memCompanyRepo{}, callRepo)
	result, err := imp.Run(context.Background(), Options{MaxImports: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 1 {
		t.Fatalf("expected the failed page to be skipped, got %d companies", len(result.Companies))
	}

	// Both attempts are recorded, failure included.
	if len(callRepo.calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(callRepo.calls))
	}
	if callRepo.calls[0].Success || !callRepo.calls[1].Success {
		t.Errorf("expected failure then success, got %+v", callRepo.calls)
	}
}

func TestRun_UnparseablePageStops(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: "I'm sorry, I can't help with that."},
		{text: `[{"company_name":"Never Reached","url":"https://never.com"}]`},
	}}

	imp := newTestImporter(t, client, &memCompanyRepo{}, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 0 {
		t.Errorf("expected run to stop on unparseable page, got %d companies", len(result.Companies))
	}
	if result.Status != model.StatusExhaustive {
		t.Errorf("expected exhaustive status, got %q", result.Status)
	}
}

func TestRun_MalformedFragmentDroppedNotFatal(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: `["just a string", {"company_name":"Acme","url":"https://acme.com"}]`},
	}}

	imp := newTestImporter(t, client, &memCompanyRepo{}, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Companies) != 1 || result.Companies[0].CompanyName != "Acme" {
		t.Errorf("expected only the valid fragment to survive, got %+v", result.Companies)
	}
}

func TestRun_PersistFailureDoesNotBlockResponse(t *testing.T) {
	client := &seqClient{responses: []seqResponse{
		{text: `[{"company_name":"Acme","url":"https://acme.com"},{"company_name":"Globex","url":"https://globex.com"}]`},
	}}
	repo := &memCompanyRepo{failFor: "Acme"}

	imp := newTestImporter(t, client, repo, &memCallRepo{})
	result, err := imp.Run(context.Background(), Options{MaxImports: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Acme's upsert failed but it still comes back to the caller.
	if len(result.Companies) != 2 {
		t.Errorf("expected both companies in response, got %d", len(result.Companies))
	}
	if len(repo.upserts) != 1 || repo.upserts[0].CompanyName != "Globex" {
		t.Errorf("expected only Globex persisted, got %+v", repo.upserts)
	}
}

func TestRun_StubClient(t *testing.T) {
	imp := newTestImporter(t, llm.NewStubClient(), &memCompanyRepo{}, &memCallRepo{})

	result, err := imp.Run(context.Background(), Options{MaxImports: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Companies) == 0 {
		t.Error("expected stub pages to produce records")
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	imp := newTestImporter(t, &seqClient{}, &memCompanyRepo{}, &memCallRepo{})
	if _, err := imp.Run(context.Background(), Options{MaxImports: 0}); err == nil {
		t.Error("expected error for maxImports 0")
	}

	empty := New(nil, 60, 0, pipeline.NewNormalizer("", geo.Disabled{}), &memCompanyRepo{}, &memCallRepo{}, zap.NewNop())
	if _, err := empty.Run(context.Background(), Options{MaxImports: 1}); err == nil {
		t.Error("expected error with no clients configured")
	}
}

// deadlineClient records how far away the call context deadline is.
type deadlineClient struct {
	remaining time.Duration
}

func (c *deadlineClient) ProviderName() string { return "deadline" }
func (c *deadlineClient) ModelName() string    { return "deadline" }

func (c *deadlineClient) Complete(ctx context.Context, _ string) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.remaining = time.Until(deadline)
	}
	return "[]", nil
}

func TestRun_ConfiguredDefaultTimeoutBoundsCall(t *testing.T) {
	client := &deadlineClient{}
	normalizer := pipeline.NewNormalizer("", geo.Disabled{})
	imp := New([]llm.Client{client}, 600_000, 30_000, normalizer, &memCompanyRepo{}, &memCallRepo{}, zap.NewNop())

	if _, err := imp.Run(context.Background(), Options{MaxImports: 1}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if client.remaining <= 25*time.Second || client.remaining > 30*time.Second {
		t.Errorf("expected ~30s deadline from configured default, got %v", client.remaining)
	}
}

func TestRun_RequestTimeoutOverridesDefault(t *testing.T) {
	client := &deadlineClient{}
	normalizer := pipeline.NewNormalizer("", geo.Disabled{})
	imp := New([]llm.Client{client}, 600_000, 30_000, normalizer, &memCompanyRepo{}, &memCallRepo{}, zap.NewNop())

	if _, err := imp.Run(context.Background(), Options{MaxImports: 1, TimeoutMs: 120_000}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if client.remaining <= 115*time.Second || client.remaining > 120*time.Second {
		t.Errorf("expected ~120s deadline from request timeout, got %v", client.remaining)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("é", 150) // 2 bytes per rune

	got := truncate(s, 201) // byte 201 lands mid-rune
	if !utf8.ValidString(got) {
		t.Errorf("truncated string is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}

	if truncate("short", 200) != "short" {
		t.Error("expected strings within the limit to pass through unchanged")
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		ms   int
		want time.Duration
	}{
		{0, DefaultCallTimeout},
		{-5, DefaultCallTimeout},
		{1, MinCallTimeout},
		{5_000, MinCallTimeout},
		{120_000, 2 * time.Minute},
		{7_200_000, MaxCallTimeout},
	}

	for _, tt := range tests {
		if got := ClampTimeout(tt.ms); got != tt.want {
			t.Errorf("ClampTimeout(%d) = %v, want %v", tt.ms, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	query := model.SearchQuery{
		ProductKeywords:      "hand tools",
		HeadquartersLocation: "Oregon",
	}
	prompt := BuildPrompt(query, []string{"Acme", "Globex"}, 10)

	for _, want := range []string{"hand tools", "Oregon", "Acme", "Globex", "JSON array"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestBuildPrompt_NoFiltersNoExclusions(t *testing.T) {
	prompt := BuildPrompt(model.SearchQuery{}, nil, 10)

	if strings.Contains(prompt, "must match ALL") {
		t.Error("expected no filter section for an empty query")
	}
	if strings.Contains(prompt, "Do NOT include") {
		t.Error("expected no exclusion section for an empty exclude list")
	}
}
