package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// DocumentHandler groups all document HTTP handlers. Documents are metadata
// records pointing at files on the static asset host; the server never
// stores file bytes.
type DocumentHandler struct {
	repo   repositories.DocumentRepository
	logger *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(repo repositories.DocumentRepository, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		repo:   repo,
		logger: logger.Named("document_handler"),
	}
}

// documentResponse is the JSON representation of a document.
type documentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Published   bool   `json:"published"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func documentToResponse(d *db.Document) documentResponse {
	return documentResponse{
		ID:          d.ID.String(),
		Title:       d.Title,
		Kind:        d.Kind,
		URL:         d.URL,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Published:   d.Published,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// listDocumentsResponse wraps a paginated list of documents.
type listDocumentsResponse struct {
	Items []documentResponse `json:"items"`
	Total int64              `json:"total"`
}

// validDocumentKinds lists the accepted document kind values.
var validDocumentKinds = map[string]bool{
	"resume":      true,
	"certificate": true,
	"other":       true,
}

// List handles GET /api/v1/documents. Public; only published documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAll handles GET /api/v1/documents/all. Authenticated; includes
// unpublished documents.
func (h *DocumentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	opts := paginationOpts(r)

	documents, total, err := h.repo.List(r.Context(), opts, publishedOnly)
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err))
		ErrInternal(w)
		return
	}

	items := make([]documentResponse, len(documents))
	for i := range documents {
		items[i] = documentToResponse(&documents[i])
	}

	Ok(w, listDocumentsResponse{Items: items, Total: total})
}

// GetByID handles GET /api/v1/documents/{id}. Public, but unpublished
// documents are hidden behind a 404 unless the request is authenticated.
func (h *DocumentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	document, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get document", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	if !document.Published && claimsFromCtx(r.Context()) == nil {
		// Same 404 as a missing row so existence does not leak.
		ErrNotFound(w)
		return
	}

	Ok(w, documentToResponse(document))
}

// createDocumentRequest is the JSON body expected by POST /api/v1/documents.
type createDocumentRequest struct {
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Published   bool   `json:"published"`
}

// Create handles POST /api/v1/documents. Authenticated.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Title == "" {
		ErrBadRequest(w, "title is required")
		return
	}
	if req.URL == "" {
		ErrBadRequest(w, "url is required")
		return
	}
	if req.Kind == "" {
		req.Kind = "other"
	}
	if !validDocumentKinds[req.Kind] {
		ErrBadRequest(w, "kind must be one of: resume, certificate, other")
		return
	}
	if req.SizeBytes < 0 {
		ErrBadRequest(w, "size_bytes cannot be negative")
		return
	}

	document := &db.Document{
		Title:       req.Title,
		Kind:        req.Kind,
		URL:         req.URL,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Published:   req.Published,
	}

	if err := h.repo.Create(r.Context(), document); err != nil {
		h.logger.Error("failed to create document", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, documentToResponse(document))
}

// updateDocumentRequest is the JSON body for PATCH /api/v1/documents/{id}.
// All fields are optional; only non-nil values are applied.
type updateDocumentRequest struct {
	Title       *string `json:"title"`
	Kind        *string `json:"kind"`
	URL         *string `json:"url"`
	ContentType *string `json:"content_type"`
	SizeBytes   *int64  `json:"size_bytes"`
	Published   *bool   `json:"published"`
}

// Update handles PATCH /api/v1/documents/{id}. Authenticated.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	document, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get document for update", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			ErrBadRequest(w, "title cannot be empty")
			return
		}
		document.Title = *req.Title
	}
	if req.Kind != nil {
		if !validDocumentKinds[*req.Kind] {
			ErrBadRequest(w, "kind must be one of: resume, certificate, other")
			return
		}
		document.Kind = *req.Kind
	}
	if req.URL != nil {
		if *req.URL == "" {
			ErrBadRequest(w, "url cannot be empty")
			return
		}
		document.URL = *req.URL
	}
	if req.ContentType != nil {
		document.ContentType = *req.ContentType
	}
	if req.SizeBytes != nil {
		if *req.SizeBytes < 0 {
			ErrBadRequest(w, "size_bytes cannot be negative")
			return
		}
		document.SizeBytes = *req.SizeBytes
	}
	if req.Published != nil {
		document.Published = *req.Published
	}

	if err := h.repo.Update(r.Context(), document); err != nil {
		h.logger.Error("failed to update document", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, documentToResponse(document))
}

// Delete handles DELETE /api/v1/documents/{id}. Authenticated.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to delete document", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}
