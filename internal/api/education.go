package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// EducationHandler groups all education HTTP handlers.
type EducationHandler struct {
	repo   repositories.EducationRepository
	logger *zap.Logger
}

// NewEducationHandler creates a new EducationHandler.
func NewEducationHandler(repo repositories.EducationRepository, logger *zap.Logger) *EducationHandler {
	return &EducationHandler{
		repo:   repo,
		logger: logger.Named("education_handler"),
	}
}

// educationResponse is the JSON representation of an education entry.
type educationResponse struct {
	ID          string  `json:"id"`
	School      string  `json:"school"`
	Degree      string  `json:"degree"`
	Field       string  `json:"field"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func educationToResponse(e *db.Education) educationResponse {
	return educationResponse{
		ID:          e.ID.String(),
		School:      e.School,
		Degree:      e.Degree,
		Field:       e.Field,
		Description: e.Description,
		StartDate:   formatDate(e.StartDate),
		EndDate:     formatDatePtr(e.EndDate),
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// listEducationResponse wraps a paginated list of education entries.
type listEducationResponse struct {
	Items []educationResponse `json:"items"`
	Total int64               `json:"total"`
}

// List handles GET /api/v1/education. Public.
func (h *EducationHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := paginationOpts(r)

	entries, total, err := h.repo.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list education", zap.Error(err))
		ErrInternal(w)
		return
	}

	items := make([]educationResponse, len(entries))
	for i := range entries {
		items[i] = educationToResponse(&entries[i])
	}

	Ok(w, listEducationResponse{Items: items, Total: total})
}

// GetByID handles GET /api/v1/education/{id}. Public.
func (h *EducationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get education entry", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, educationToResponse(entry))
}

// createEducationRequest is the JSON body expected by POST /api/v1/education.
type createEducationRequest struct {
	School      string  `json:"school"`
	Degree      string  `json:"degree"`
	Field       string  `json:"field"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// Create handles POST /api/v1/education. Authenticated.
func (h *EducationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEducationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.School == "" {
		ErrBadRequest(w, "school is required")
		return
	}
	if req.Degree == "" {
		ErrBadRequest(w, "degree is required")
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

	entry := &db.Education{
		School:      req.School,
		Degree:      req.Degree,
		Field:       req.Field,
		Description: req.Description,
		StartDate:   startDate,
		EndDate:     endDate,
	}

	if err := h.repo.Create(r.Context(), entry); err != nil {
		h.logger.Error("failed to create education entry", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, educationToResponse(entry))
}

// updateEducationRequest is the JSON body for PATCH /api/v1/education/{id}.
// All fields are optional; only non-nil values are applied.
type updateEducationRequest struct {
	School      *string `json:"school"`
	Degree      *string `json:"degree"`
	Field       *string `json:"field"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// Update handles PATCH /api/v1/education/{id}. Authenticated.
func (h *EducationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateEducationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get education entry for update", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	if req.School != nil {
		if *req.School == "" {
			ErrBadRequest(w, "school cannot be empty")
			return
		}
		entry.School = *req.School
	}
	if req.Degree != nil {
		if *req.Degree == "" {
			ErrBadRequest(w, "degree cannot be empty")
			return
		}
		entry.Degree = *req.Degree
	}
	if req.Field != nil {
		entry.Field = *req.Field
	}
	if req.Description != nil {
		entry.Description = *req.Description
	}
	if req.StartDate != nil {
		startDate, ok := parseDate(w, *req.StartDate, "start_date")
		if !ok {
			return
		}
		entry.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, ok := parseDatePtr(w, req.EndDate, "end_date")
		if !ok {
			return
		}
		entry.EndDate = endDate
	}

	if err := h.repo.Update(r.Context(), entry); err != nil {
		h.logger.Error("failed to update education entry", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, educationToResponse(entry))
}

// Delete handles DELETE /api/v1/education/{id}. Authenticated.
func (h *EducationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to delete education entry", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}
