package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/storage"
)

// CompanyHandler serves read access to the stored records: totals for
// monitoring, single-record lookup, and per-session listings.
type CompanyHandler struct {
	companies storage.CompanyRepository
	llmCalls  storage.LLMCallRepository
	logger    *zap.Logger
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(companies storage.CompanyRepository, llmCalls storage.LLMCallRepository, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		companies: companies,
		llmCalls:  llmCalls,
		logger:    logger,
	}
}

// Stats reports store totals. Route: GET /api/v1/stats
func (h *CompanyHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	companies, err := h.companies.Count(ctx)
	if err != nil {
		h.logger.Error("counting companies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to gather stats"})
		return
	}
	calls, err := h.llmCalls.CountCalls(ctx)
	if err != nil {
		h.logger.Error("counting llm calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to gather stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"companies": companies,
		"llm_calls": calls,
	})
}

// Get looks up one record by its identity pair.
// Route: GET /api/v1/companies?name=...&domain=...
func (h *CompanyHandler) Get(c *gin.Context) {
	name := c.Query("name")
	domain := c.Query("domain")
	if name == "" || domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "name and domain query parameters are required",
		})
		return
	}

	company, err := h.companies.GetByKey(c.Request.Context(), name, domain)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
		return
	}
	if err != nil {
		h.logger.Error("getting company", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, company)
}

// ListSession returns the records imported under one session.
// Route: GET /api/v1/sessions/:id/companies
func (h *CompanyHandler) ListSession(c *gin.Context) {
	sessionID := c.Param("id")

	companies, err := h.companies.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("listing session companies", zap.String("session", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"companies": companies,
		"count":     len(companies),
	})
}
