package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// ProjectHandler groups all project HTTP handlers.
type ProjectHandler struct {
	repo   repositories.ProjectRepository
	logger *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(repo repositories.ProjectRepository, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		repo:   repo,
		logger: logger.Named("project_handler"),
	}
}

// projectResponse is the JSON representation of a project.
type projectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	RepoURL     string   `json:"repo_url"`
	Tags        []string `json:"tags"`
	Featured    bool     `json:"featured"`
	SortOrder   int      `json:"sort_order"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func projectToResponse(p *db.Project) projectResponse {
	// Tags are stored as a JSON text column. A malformed value (should not
	// happen, the handlers only ever write marshaled slices) degrades to an
	// empty list rather than failing the whole response.
	var tags []string
	if err := json.Unmarshal([]byte(p.Tags), &tags); err != nil || tags == nil {
		tags = []string{}
	}

	return projectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		URL:         p.URL,
		RepoURL:     p.RepoURL,
		Tags:        tags,
		Featured:    p.Featured,
		SortOrder:   p.SortOrder,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// listProjectsResponse wraps a paginated list of projects.
type listProjectsResponse struct {
	Items []projectResponse `json:"items"`
	Total int64             `json:"total"`
}

// List handles GET /api/v1/projects. Public.
// With ?featured=true only landing-page projects are returned, unpaginated.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("featured") == "true" {
		projects, err := h.repo.ListFeatured(r.Context())
		if err != nil {
			h.logger.Error("failed to list featured projects", zap.Error(err))
			ErrInternal(w)
			return
		}
		items := make([]projectResponse, len(projects))
		for i := range projects {
			items[i] = projectToResponse(&projects[i])
		}
		Ok(w, listProjectsResponse{Items: items, Total: int64(len(items))})
		return
	}

	opts := paginationOpts(r)

	projects, total, err := h.repo.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		ErrInternal(w)
		return
	}

	items := make([]projectResponse, len(projects))
	for i := range projects {
		items[i] = projectToResponse(&projects[i])
	}

	Ok(w, listProjectsResponse{Items: items, Total: total})
}

// GetByID handles GET /api/v1/projects/{id}. Public.
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	project, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get project", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, projectToResponse(project))
}

// createProjectRequest is the JSON body expected by POST /api/v1/projects.
type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	RepoURL     string   `json:"repo_url"`
	Tags        []string `json:"tags"`
	Featured    bool     `json:"featured"`
	SortOrder   int      `json:"sort_order"`
}

// Create handles POST /api/v1/projects. Authenticated.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" {
		ErrBadRequest(w, "name is required")
		return
	}

	tags, err := marshalTags(req.Tags)
	if err != nil {
		ErrBadRequest(w, "invalid tags")
		return
	}

	project := &db.Project{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		RepoURL:     req.RepoURL,
		Tags:        tags,
		Featured:    req.Featured,
		SortOrder:   req.SortOrder,
	}

	if err := h.repo.Create(r.Context(), project); err != nil {
		h.logger.Error("failed to create project", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, projectToResponse(project))
}

// updateProjectRequest is the JSON body for PATCH /api/v1/projects/{id}.
// All fields are optional; only non-nil values are applied.
type updateProjectRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	URL         *string   `json:"url"`
	RepoURL     *string   `json:"repo_url"`
	Tags        *[]string `json:"tags"`
	Featured    *bool     `json:"featured"`
	SortOrder   *int      `json:"sort_order"`
}

// Update handles PATCH /api/v1/projects/{id}. Authenticated.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get project for update", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			ErrBadRequest(w, "name cannot be empty")
			return
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.URL != nil {
		project.URL = *req.URL
	}
	if req.RepoURL != nil {
		project.RepoURL = *req.RepoURL
	}
	if req.Tags != nil {
		tags, err := marshalTags(*req.Tags)
		if err != nil {
			ErrBadRequest(w, "invalid tags")
			return
		}
		project.Tags = tags
	}
	if req.Featured != nil {
		project.Featured = *req.Featured
	}
	if req.SortOrder != nil {
		project.SortOrder = *req.SortOrder
	}

	if err := h.repo.Update(r.Context(), project); err != nil {
		h.logger.Error("failed to update project", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, projectToResponse(project))
}

// Delete handles DELETE /api/v1/projects/{id}. Authenticated.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to delete project", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}

// marshalTags serializes the tag list for the text column, normalizing nil
// to an empty array.
func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
