package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/model"
	"github.com/tabarnam/company-importer/internal/storage"
)

// lookupRepo is a CompanyRepository over a fixed in-memory record set.
type lookupRepo struct {
	records []model.Company
}

func (r *lookupRepo) Upsert(_ context.Context, c *model.Company) error {
	r.records = append(r.records, *c)
	return nil
}

func (r *lookupRepo) GetByKey(_ context.Context, name, domain string) (*model.Company, error) {
	for i := range r.records {
		if r.records[i].CompanyName == name && r.records[i].NormalizedDomain == domain {
			return &r.records[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *lookupRepo) Count(context.Context) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *lookupRepo) ListBySession(_ context.Context, sessionID string) ([]model.Company, error) {
	var out []model.Company
	for _, c := range r.records {
		if c.SessionID != nil && *c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fixedCallRepo struct {
	count int64
}

func (r *fixedCallRepo) Create(context.Context, *model.LLMCall) error {
	r.count++
	return nil
}

func (r *fixedCallRepo) CountCalls(context.Context) (int64, error) {
	return r.count, nil
}

func newCompanyRouter(companies *lookupRepo, calls *fixedCallRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCompanyHandler(companies, calls, zap.NewNop())

	r := gin.New()
	r.GET("/stats", h.Stats)
	r.GET("/companies", h.Get)
	r.GET("/sessions/:id/companies", h.ListSession)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStats_ReportsTotals(t *testing.T) {
	sess := "sess-1"
	companies := &lookupRepo{records: []model.Company{
		{CompanyName: "Acme", NormalizedDomain: "acme.com", SessionID: &sess},
		{CompanyName: "Globex", NormalizedDomain: "globex.com"},
	}}
	r := newCompanyRouter(companies, &fixedCallRepo{count: 7})

	w := get(r, "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{`"companies":2`, `"llm_calls":7`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected stats to contain %s, got %s", want, body)
		}
	}
}

func TestGetCompany_Found(t *testing.T) {
	companies := &lookupRepo{records: []model.Company{
		{CompanyName: "Acme", NormalizedDomain: "acme.com", Tagline: "Everything"},
	}}
	r := newCompanyRouter(companies, &fixedCallRepo{})

	w := get(r, "/companies?name=Acme&domain=acme.com")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"Everything"`) {
		t.Errorf("expected record in body, got %s", w.Body.String())
	}
}

func TestGetCompany_NotFound(t *testing.T) {
	r := newCompanyRouter(&lookupRepo{}, &fixedCallRepo{})

	w := get(r, "/companies?name=Nope&domain=nope.com")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetCompany_MissingParamsRejected(t *testing.T) {
	r := newCompanyRouter(&lookupRepo{}, &fixedCallRepo{})

	for _, path := range []string{"/companies", "/companies?name=Acme", "/companies?domain=acme.com"} {
		if w := get(r, path); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestListSession_FiltersBySession(t *testing.T) {
	mine, other := "sess-1", "sess-2"
	companies := &lookupRepo{records: []model.Company{
		{CompanyName: "Acme", NormalizedDomain: "acme.com", SessionID: &mine},
		{CompanyName: "Globex", NormalizedDomain: "globex.com", SessionID: &other},
	}}
	r := newCompanyRouter(companies, &fixedCallRepo{})

	w := get(r, "/sessions/sess-1/companies")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, `"Acme"`) || strings.Contains(body, `"Globex"`) {
		t.Errorf("expected only sess-1 records, got %s", body)
	}
	if !strings.Contains(body, `"count":1`) {
		t.Errorf("expected count 1, got %s", body)
	}
}
