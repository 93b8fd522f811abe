package handler

import (
	"net/http"

	"github.com/templui/vaultgate/internal/ctxkeys"
	"github.com/templui/vaultgate/internal/service"
)

type folderHandler struct {
	folderService *service.FolderService
}

func NewFolderHandler(folderService *service.FolderService) *folderHandler {
	return &folderHandler{folderService: folderService}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Private  bool    `json:"private"`
}

func (h *folderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	folder, err := h.folderService.Create(r.Context(), ctxkeys.User(r.Context()), service.CreateFolderInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Private:  req.Private,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *folderHandler) List(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folderService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *folderHandler) Get(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.Get(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *folderHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.folderService.Files(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *folderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.folderService.Delete(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"files_deleted": removed})
}
