package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// CompanyHandler groups all work-experience HTTP handlers.
type CompanyHandler struct {
	repo   repositories.CompanyRepository
	logger *zap.Logger
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(repo repositories.CompanyRepository, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		repo:   repo,
		logger: logger.Named("company_handler"),
	}
}

// companyResponse is the JSON representation of a company entry.
type companyResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	URL         string  `json:"url"`
	LogoURL     string  `json:"logo_url"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	SortOrder   int     `json:"sort_order"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func companyToResponse(c *db.Company) companyResponse {
	return companyResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Role:        c.Role,
		Description: c.Description,
		Location:    c.Location,
		URL:         c.URL,
		LogoURL:     c.LogoURL,
		StartDate:   formatDate(c.StartDate),
		EndDate:     formatDatePtr(c.EndDate),
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// listCompaniesResponse wraps a paginated list of companies.
type listCompaniesResponse struct {
	Items []companyResponse `json:"items"`
	Total int64             `json:"total"`
}

// List handles GET /api/v1/companies. Public.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := paginationOpts(r)

	companies, total, err := h.repo.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list companies", zap.Error(err))
		ErrInternal(w)
		return
	}

	items := make([]companyResponse, len(companies))
	for i := range companies {
		items[i] = companyToResponse(&companies[i])
	}

	Ok(w, listCompaniesResponse{Items: items, Total: total})
}

// GetByID handles GET /api/v1/companies/{id}. Public.
func (h *CompanyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	company, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get company", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, companyToResponse(company))
}

// createCompanyRequest is the JSON body expected by POST /api/v1/companies.
// Dates use the "2006-01-02" layout; end_date may be omitted for the
// current position.
type createCompanyRequest struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	URL         string  `json:"url"`
	LogoURL     string  `json:"logo_url"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	SortOrder   int     `json:"sort_order"`
}

// Create handles POST /api/v1/companies. Authenticated.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" {
		ErrBadRequest(w, "name is required")
		return
	}
	if req.Role == "" {
		ErrBadRequest(w, "role is required")
		return
	}

	startDate, ok := parseDate(w, req.StartDate, "start_date")
	if !ok {
		return
	}
	endDate, ok := parseDatePtr(w, req.EndDate, "end_date")
	if !ok {
		return
	}

	company := &db.Company{
		Name:        req.Name,
		Role:        req.Role,
		Description: req.Description,
		Location:    req.Location,
		URL:         req.URL,
		LogoURL:     req.LogoURL,
		StartDate:   startDate,
		EndDate:     endDate,
		SortOrder:   req.SortOrder,
	}

	if err := h.repo.Create(r.Context(), company); err != nil {
		h.logger.Error("failed to create company", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, companyToResponse(company))
}

// updateCompanyRequest is the JSON body for PATCH /api/v1/companies/{id}.
// All fields are optional; only non-nil values are applied.
type updateCompanyRequest struct {
	Name        *string `json:"name"`
	Role        *string `json:"role"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	URL         *string `json:"url"`
	LogoURL     *string `json:"logo_url"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	SortOrder   *int    `json:"sort_order"`
}

// Update handles PATCH /api/v1/companies/{id}. Authenticated.
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	company, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get company for update", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			ErrBadRequest(w, "name cannot be empty")
			return
		}
		company.Name = *req.Name
	}
	if req.Role != nil {
		if *req.Role == "" {
			ErrBadRequest(w, "role cannot be empty")
			return
		}
		company.Role = *req.Role
	}
	if req.Description != nil {
		company.Description = *req.Description
	}
	if req.Location != nil {
		company.Location = *req.Location
	}
	if req.URL != nil {
		company.URL = *req.URL
	}
	if req.LogoURL != nil {
		company.LogoURL = *req.LogoURL
	}
	if req.StartDate != nil {
		startDate, ok := parseDate(w, *req.StartDate, "start_date")
		if !ok {
			return
		}
		company.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, ok := parseDatePtr(w, req.EndDate, "end_date")
		if !ok {
			return
		}
		company.EndDate = endDate
	}
	if req.SortOrder != nil {
		company.SortOrder = *req.SortOrder
	}

	if err := h.repo.Update(r.Context(), company); err != nil {
		h.logger.Error("failed to update company", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, companyToResponse(company))
}

// Delete handles DELETE /api/v1/companies/{id}. Authenticated.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to delete company", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}

// -----------------------------------------------------------------------------
// Shared handler helpers
// -----------------------------------------------------------------------------

// dateLayout is the wire format for content dates.
const dateLayout = "2006-01-02"

// parseUUID extracts and parses a UUID path parameter by name.
// Writes a 400 and returns false if the parameter is missing or malformed.
func parseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		ErrBadRequest(w, "invalid "+param+": must be a valid UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// paginationOpts reads limit and offset query parameters from the request.
// Defaults: limit=20, offset=0. Max limit is capped at 100.
func paginationOpts(r *http.Request) repositories.ListOptions {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return repositories.ListOptions{Limit: limit, Offset: offset}
}

// parseDate parses a required "2006-01-02" date field.
// Writes a 400 and returns false on failure.
func parseDate(w http.ResponseWriter, value, field string) (time.Time, bool) {
	if value == "" {
		ErrBadRequest(w, field+" is required")
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		ErrBadRequest(w, "invalid "+field+": must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

// parseDatePtr parses an optional date field. A nil or empty value yields nil.
func parseDatePtr(w http.ResponseWriter, value *string, field string) (*time.Time, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		ErrBadRequest(w, "invalid "+field+": must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
