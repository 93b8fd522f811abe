package handler

import (
	"errors"
	"net/http"

	"github.com/templui/vaultgate/internal/ctxkeys"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/service"
)

type adminHandler struct {
	userService     *service.UserService
	securityService *service.SecurityService
	auditService    *service.AuditService
	sweeper         *lifecycle.Sweeper
}

func NewAdminHandler(
	userService *service.UserService,
	securityService *service.SecurityService,
	auditService *service.AuditService,
	sweeper *lifecycle.Sweeper,
) *adminHandler {
	return &adminHandler{
		userService:     userService,
		securityService: securityService,
		auditService:    auditService,
		sweeper:         sweeper,
	}
}

func (h *adminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Email    string `json:"email"`
	EmpID    string `json:"emp_id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Quota    int64  `json:"quota"`
}

func (h *adminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Create(r.Context(), ctxkeys.User(r.Context()), service.CreateUserInput{
		Email:    req.Email,
		EmpID:    req.EmpID,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		Quota:    req.Quota,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *adminHandler) LockUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *adminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *adminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	err := h.userService.SetActive(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), active)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.userService.Delete(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) UserUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.userService.Usage(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *adminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := h.userService.Reconcile(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"drift": drift})
}

func (h *adminHandler) Security(w http.ResponseWriter, r *http.Request) {
	report, err := h.securityService.Report(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Logs serves the activity log. Filters: user_id, action, severity, from,
// to, page and limit.
func (h *adminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r.URL.Query())
	in := service.LogQuery{
		UserID:   q.string("user_id"),
		Action:   q.string("action"),
		Severity: q.string("severity"),
		From:     q.time("from", false),
		To:       q.time("to", true),
		Page:     q.int("page"),
		Limit:    q.int("limit"),
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	page, err := h.auditService.Logs(r.Context(), ctxkeys.User(r.Context()), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *adminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.auditService.SystemStats(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type sweepResponse struct {
	Kind         lifecycle.Kind `json:"kind"`
	Examined     int            `json:"examined"`
	Transitioned int            `json:"transitioned"`
	Skipped      int            `json:"skipped"`
	Failures     []string       `json:"failures,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// Sweep runs one lifecycle sweep now, or all of them for kind "all".
func (h *adminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var reports []lifecycle.Report
	var err error

	if name := r.PathValue("kind"); name == "all" {
		reports, err = h.sweeper.RunAll(r.Context())
	} else {
		kind, ok := lifecycle.ParseKind(name)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown sweep kind")
			return
		}
		var report lifecycle.Report
		report, err = h.sweeper.Run(r.Context(), kind)
		reports = append(reports, report)
	}
	if errors.Is(err, lifecycle.ErrSweepInProgress) {
		writeError(w, http.StatusConflict, "sweep already in progress")
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]sweepResponse, len(reports))
	for i, rep := range reports {
		out[i] = sweepResponse{
			Kind:         rep.Kind,
			Examined:     rep.Examined,
			Transitioned: rep.Transitioned,
			Skipped:      rep.Skipped,
			DurationMS:   rep.Duration.Milliseconds(),
		}
		for _, f := range rep.Failures {
			out[i].Failures = append(out[i].Failures, f.Error())
		}
	}
	writeJSON(w, http.StatusOK, out)
}
