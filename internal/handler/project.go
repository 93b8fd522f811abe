package handler

import (
	"net/http"
	"time"

	"github.com/templui/vaultgate/internal/ctxkeys"
	"github.com/templui/vaultgate/internal/service"
)

type projectHandler struct {
	projectService *service.ProjectService
}

func NewProjectHandler(projectService *service.ProjectService) *projectHandler {
	return &projectHandler{projectService: projectService}
}

type createProjectRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expires_at"`
	Members     []string  `json:"members"`
}

func (h *projectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Create(r.Context(), ctxkeys.User(r.Context()), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
		Members:     req.Members,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// List returns the caller's projects. Admins may pass ?archived=true to
// include archived ones.
func (h *projectHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var err error
	var result any
	if r.URL.Query().Get("archived") == "true" {
		result, err = h.projectService.ListAll(r.Context(), user, true)
	} else {
		result, err = h.projectService.List(r.Context(), user)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *projectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectService.Get(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (h *projectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Update(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *projectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	err := h.projectService.Archive(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *projectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	err := h.projectService.AddMember(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *projectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.projectService.RemoveMember(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
