package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/templui/vaultgate/internal/ctxkeys"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/service"
	"github.com/templui/vaultgate/internal/validation"
)

// Multipart parts above this size spill to temporary files.
const multipartMemory = 32 << 20

type fileHandler struct {
	fileService *service.FileService
	maxUpload   int64
}

func NewFileHandler(fileService *service.FileService, maxUpload int64) *fileHandler {
	return &fileHandler{
		fileService: fileService,
		maxUpload:   maxUpload,
	}
}

type uploadResponse struct {
	File    *model.File        `json:"file"`
	Version *model.FileVersion `json:"version"`
	Created bool               `json:"created"`
}

// Upload accepts multipart/form-data with a "file" part and optional
// folder_id, private, expires_at (RFC 3339), tags (comma separated) and
// changelog fields.
func (h *fileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	defer func() {
		err := r.MultipartForm.RemoveAll()
		if err != nil {
			slog.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
	}()

	in := service.UploadInput{
		Name:      header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Content:   file,
		Changelog: r.FormValue("changelog"),
	}
	if id := strings.TrimSpace(r.FormValue("folder_id")); id != "" {
		in.FolderID = &id
	}
	if v := r.FormValue("private"); v != "" {
		in.Private, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "private must be true or false")
			return
		}
	}
	if v := r.FormValue("expires_at"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expires_at must be an RFC 3339 timestamp")
			return
		}
		in.ExpiresAt = &at
	}
	in.Tags, err = validation.ParseTags(r.FormValue("tags"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.fileService.Upload(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, uploadResponse{File: res.File, Version: res.Version, Created: res.Created})
}

func (h *fileHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.fileService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// Search takes q, type, folder_id, min_size, max_size, from, to, private,
// sort (name, date, size or type) and order=asc.
func (h *fileHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r.URL.Query())
	in := service.SearchInput{
		Text:     q.string("q"),
		MimeType: q.string("type"),
		FolderID: q.string("folder_id"),
		MinSize:  q.int64("min_size"),
		MaxSize:  q.int64("max_size"),
		From:     q.time("from", false),
		To:       q.time("to", true),
		Private:  q.bool("private"),
		SortBy:   q.string("sort"),
		Asc:      q.string("order") == "asc",
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	files, err := h.fileService.Search(r.Context(), ctxkeys.User(r.Context()), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *fileHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	files, err := h.fileService.ListAll(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *fileHandler) Get(w http.ResponseWriter, r *http.Request) {
	file, err := h.fileService.Get(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *fileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.fileService.Versions(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// Download streams the current content, or ?version=N.
func (h *fileHandler) Download(w http.ResponseWriter, r *http.Request) {
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}
		version = n
	}

	file, rc, err := h.fileService.Download(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), version)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
	if version == 0 || version == file.CurrentVersion {
		w.Header().Set("Content-Length", fmt.Sprint(file.Size))
	}
	_, err = io.Copy(w, rc)
	if err != nil {
		slog.Warn("download interrupted", "error", err, "file_id", file.ID)
	}
}

func (h *fileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.fileService.Delete(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
