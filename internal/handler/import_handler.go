package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/importer"
	"github.com/tabarnam/company-importer/internal/model"
	"github.com/tabarnam/company-importer/internal/pipeline"
)

// Bounds on the per-request record target.
const (
	minImports     = 1
	maxImportsCap  = 50
	defaultImports = 1
)

// cacheControl permits a 300s shared cache with 60s stale-while-revalidate.
const cacheControl = "public, s-maxage=300, stale-while-revalidate=60"

// importRequest is the inbound body. Pointer fields distinguish "absent"
// from zero values; legacy aliases (limit, queryType+query) are accepted for
// callers that predate the structured search object.
type importRequest struct {
	MaxImports     *int               `json:"maxImports"`
	Limit          *int               `json:"limit"` // legacy alias of maxImports
	TimeoutMs      *int               `json:"timeout_ms"`
	TimeoutMsCamel *int               `json:"timeoutMs"`
	Search         *model.SearchQuery `json:"search"`
	QueryType      string             `json:"queryType"` // legacy, with Query below
	Query          string             `json:"query"`
	SessionID      *string            `json:"session_id"`
}

// legacyQuerySetters maps a legacy queryType to the search field it fills.
var legacyQuerySetters = map[string]func(*model.SearchQuery, string){
	"company_name":            func(q *model.SearchQuery, v string) { q.CompanyName = v },
	"name":                    func(q *model.SearchQuery, v string) { q.CompanyName = v },
	"product_keywords":        func(q *model.SearchQuery, v string) { q.ProductKeywords = v },
	"keywords":                func(q *model.SearchQuery, v string) { q.ProductKeywords = v },
	"industries":              func(q *model.SearchQuery, v string) { q.Industries = v },
	"industry":                func(q *model.SearchQuery, v string) { q.Industries = v },
	"headquarters_location":   func(q *model.SearchQuery, v string) { q.HeadquartersLocation = v },
	"headquarters":            func(q *model.SearchQuery, v string) { q.HeadquartersLocation = v },
	"manufacturing_locations": func(q *model.SearchQuery, v string) { q.ManufacturingLocations = v },
	"manufacturing":           func(q *model.SearchQuery, v string) { q.ManufacturingLocations = v },
	"email_address":           func(q *model.SearchQuery, v string) { q.EmailAddress = v },
	"email":                   func(q *model.SearchQuery, v string) { q.EmailAddress = v },
	"url":                     func(q *model.SearchQuery, v string) { q.URL = v },
	"website":                 func(q *model.SearchQuery, v string) { q.URL = v },
	"amazon_url":              func(q *model.SearchQuery, v string) { q.AmazonURL = v },
	"amazon":                  func(q *model.SearchQuery, v string) { q.AmazonURL = v },
}

// toOptions validates the request and resolves legacy aliases into importer
// options. Validation errors come back as plain strings suitable for a 400.
func (r *importRequest) toOptions() (importer.Options, string) {
	opts := importer.Options{MaxImports: defaultImports}

	max := r.MaxImports
	if max == nil {
		max = r.Limit
	}
	if max != nil {
		if *max < minImports || *max > maxImportsCap {
			return opts, "maxImports must be between 1 and 50"
		}
		opts.MaxImports = *max
	}

	if r.TimeoutMs != nil {
		opts.TimeoutMs = *r.TimeoutMs
	} else if r.TimeoutMsCamel != nil {
		opts.TimeoutMs = *r.TimeoutMsCamel
	}

	if r.Search != nil {
		opts.Search = *r.Search
	}
	if r.QueryType != "" && r.Query != "" {
		set, ok := legacyQuerySetters[r.QueryType]
		if !ok {
			return opts, "unknown queryType: " + r.QueryType
		}
		set(&opts.Search, r.Query)
	}

	opts.SessionID = r.SessionID
	return opts, ""
}

// ImportHandler handles company import requests.
type ImportHandler struct {
	importer *importer.Importer
	logger   *zap.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(imp *importer.Importer, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importer: imp,
		logger:   logger,
	}
}

// Import runs one import. Route: POST /api/v1/import
//
// Responses: 200 with {companies, status, meta}; 400 on a malformed request;
// 500 when the run or the final validation gate fails; by then the client
// expects well-formed data and can't be given anything partial.
func (h *ImportHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	opts, problem := req.toOptions()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}

	result, err := h.importer.Run(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("import run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "import failed: " + err.Error(),
		})
		return
	}

	// Terminal quality gate over the accumulated list.
	if err := pipeline.ValidateBatch(result.Companies); err != nil {
		h.logger.Error("final validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	c.Header("Cache-Control", cacheControl)
	c.JSON(http.StatusOK, gin.H{
		"companies": result.Companies,
		"status":    result.Status,
		"meta": gin.H{
			"count":      len(result.Companies),
			"pages":      result.Pages,
			"session_id": req.SessionID,
		},
	})
}

// Usage documents the endpoint for GET requests. The route is advertised
// as a placeholder, so it answers 200 with a hint instead of 405.
func (h *ImportHandler) Usage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "company-importer",
		"usage":   "POST a JSON body: {maxImports, timeout_ms, search:{...}}",
	})
}
