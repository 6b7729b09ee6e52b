package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tabarnam/company-importer/internal/model"
)

// ErrNotFound is returned when a company doesn't exist in the store.
var ErrNotFound = errors.New("company not found")

// CompanyRepository is the persistence interface for normalized records.
// Upsert is keyed by (company_name, normalized_domain): re-importing a
// company replaces its record instead of duplicating it.
type CompanyRepository interface {
	Upsert(ctx context.Context, c *model.Company) error
	GetByKey(ctx context.Context, name, domain string) (*model.Company, error)
	Count(ctx context.Context) (int64, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Company, error)
}

// companyRow is the flat database shape. Nested sequences live in JSON text
// columns; the conversion to and from model.Company happens only here.
type companyRow struct {
	ID              string         `db:"id"`
	CompanyName     string         `db:"company_name"`
	Tagline         string         `db:"company_tagline"`
	Industries      string         `db:"industries"`
	ProductKeywords string         `db:"product_keywords"`
	URL             string         `db:"url"`
	EmailAddress    string         `db:"email_address"`
	AmazonURL       string         `db:"amazon_url"`
	HQLocation      string         `db:"headquarters_location"`
	Manufacturing   string         `db:"manufacturing_locations"`
	RedFlag         bool           `db:"red_flag"`
	Reviews         string         `db:"reviews"`
	Notes           string         `db:"notes"`
	ContactInfo     sql.NullString `db:"contact_info"`
	HQLat           float64        `db:"hq_lat"`
	HQLng           float64        `db:"hq_lng"`
	ManuLats        string         `db:"manu_lats"`
	ManuLngs        string         `db:"manu_lngs"`
	SessionID       sql.NullString `db:"session_id"`
	CreatedAt       time.Time      `db:"created_at"`
	Domain          string         `db:"normalized_domain"`
}

func toRow(c *model.Company) (*companyRow, error) {
	row := &companyRow{
		ID:              c.ID,
		CompanyName:     c.CompanyName,
		Tagline:         c.Tagline,
		ProductKeywords: c.ProductKeywords,
		URL:             c.URL,
		EmailAddress:    c.EmailAddress,
		AmazonURL:       c.AmazonURL,
		HQLocation:      c.HQLocation,
		RedFlag:         c.RedFlag,
		Notes:           c.Notes,
		HQLat:           c.HQLat,
		HQLng:           c.HQLng,
		CreatedAt:       c.CreatedAt,
		Domain:          c.NormalizedDomain,
	}

	for _, enc := range []struct {
		dst *string
		src any
	}{
		{&row.Industries, c.Industries},
		{&row.Manufacturing, c.ManufacturingLocations},
		{&row.Reviews, c.Reviews},
		{&row.ManuLats, c.ManuLats},
		{&row.ManuLngs, c.ManuLngs},
	} {
		b, err := json.Marshal(enc.src)
		if err != nil {
			return nil, fmt.Errorf("encoding column: %w", err)
		}
		*enc.dst = string(b)
	}

	if c.ContactInfo != nil {
		b, err := json.Marshal(c.ContactInfo)
		if err != nil {
			return nil, fmt.Errorf("encoding contact_info: %w", err)
		}
		row.ContactInfo = sql.NullString{String: string(b), Valid: true}
	}
	if c.SessionID != nil {
		row.SessionID = sql.NullString{String: *c.SessionID, Valid: true}
	}

	return row, nil
}

func (r *companyRow) toModel() (*model.Company, error) {
	c := &model.Company{
		ID:               r.ID,
		CompanyName:      r.CompanyName,
		Tagline:          r.Tagline,
		ProductKeywords:  r.ProductKeywords,
		URL:              r.URL,
		EmailAddress:     r.EmailAddress,
		AmazonURL:        r.AmazonURL,
		HQLocation:       r.HQLocation,
		RedFlag:          r.RedFlag,
		Notes:            r.Notes,
		HQLat:            r.HQLat,
		HQLng:            r.HQLng,
		Lat:              r.HQLat,
		Lng:              r.HQLng,
		CreatedAt:        r.CreatedAt,
		NormalizedDomain: r.Domain,
	}

	for _, dec := range []struct {
		src string
		dst any
	}{
		{r.Industries, &c.Industries},
		{r.Manufacturing, &c.ManufacturingLocations},
		{r.Reviews, &c.Reviews},
		{r.ManuLats, &c.ManuLats},
		{r.ManuLngs, &c.ManuLngs},
	} {
		if err := json.Unmarshal([]byte(dec.src), dec.dst); err != nil {
			return nil, fmt.Errorf("decoding column: %w", err)
		}
	}

	if r.ContactInfo.Valid {
		var info model.ContactInfo
		if err := json.Unmarshal([]byte(r.ContactInfo.String), &info); err != nil {
			return nil, fmt.Errorf("decoding contact_info: %w", err)
		}
		c.ContactInfo = &info
	}
	if r.SessionID.Valid {
		s := r.SessionID.String
		c.SessionID = &s
	}

	return c, nil
}

type sqliteCompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a SQLite-backed CompanyRepository.
func NewCompanyRepository(db *sqlx.DB) CompanyRepository {
	return &sqliteCompanyRepository{db: db}
}

func (r *sqliteCompanyRepository) Upsert(ctx context.Context, c *model.Company) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO companies (
			id, company_name, company_tagline, industries, product_keywords,
			url, email_address, amazon_url, headquarters_location,
			manufacturing_locations, red_flag, reviews, notes, contact_info,
			hq_lat, hq_lng, manu_lats, manu_lngs, session_id, created_at,
			normalized_domain
		) VALUES (
			:id, :company_name, :company_tagline, :industries, :product_keywords,
			:url, :email_address, :amazon_url, :headquarters_location,
			:manufacturing_locations, :red_flag, :reviews, :notes, :contact_info,
			:hq_lat, :hq_lng, :manu_lats, :manu_lngs, :session_id, :created_at,
			:normalized_domain
		)
		ON CONFLICT(company_name, normalized_domain) DO UPDATE SET
			company_tagline         = excluded.company_tagline,
			industries              = excluded.industries,
			product_keywords        = excluded.product_keywords,
			url                     = excluded.url,
			email_address           = excluded.email_address,
			amazon_url              = excluded.amazon_url,
			headquarters_location   = excluded.headquarters_location,
			manufacturing_locations = excluded.manufacturing_locations,
			red_flag                = excluded.red_flag,
			reviews                 = excluded.reviews,
			notes                   = excluded.notes,
			contact_info            = excluded.contact_info,
			hq_lat                  = excluded.hq_lat,
			hq_lng                  = excluded.hq_lng,
			manu_lats               = excluded.manu_lats,
			manu_lngs               = excluded.manu_lngs,
			session_id              = excluded.session_id
	`, row)
	if err != nil {
		return fmt.Errorf("upserting company %s: %w", c.CompanyName, err)
	}
	return nil
}

func (r *sqliteCompanyRepository) GetByKey(ctx context.Context, name, domain string) (*model.Company, error) {
	var row companyRow
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM companies WHERE company_name = ? AND normalized_domain = ?",
		name, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting company %s/%s: %w", name, domain, err)
	}
	return row.toModel()
}

func (r *sqliteCompanyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM companies")
	return count, err
}

func (r *sqliteCompanyRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Company, error) {
	var rows []companyRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM companies WHERE session_id = ? ORDER BY created_at ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing companies for session %s: %w", sessionID, err)
	}

	companies := make([]model.Company, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, nil
}

// LLMCallRepository handles persistence of completion-call tracking.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	CountCalls(ctx context.Context) (int64, error)
}

type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (page, provider, model, success, duration_ms)
		VALUES (:page, :provider, :model, :success, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) CountCalls(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls")
	return count, err
}
