package routes

import (
	"net/http"
	"time"

	"github.com/templui/vaultgate/internal/app"
	"github.com/templui/vaultgate/internal/handler"
	"github.com/templui/vaultgate/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService)
	files := handler.NewFileHandler(app.FileService, app.Cfg.MaxUploadBytes)
	folders := handler.NewFolderHandler(app.FolderService)
	projects := handler.NewProjectHandler(app.ProjectService)
	admin := handler.NewAdminHandler(app.UserService, app.SecurityService, app.AuditService, app.Sweeper)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// Login is rate limited per client IP
	loginLimiter := middleware.RateLimit(10, 15*time.Minute)
	mux.HandleFunc("POST /api/auth/login", loginLimiter(auth.Login))

	// ============================================================================
	// AUTHENTICATED ROUTES (/api/*)
	// ============================================================================

	mux.HandleFunc("GET /api/me", middleware.RequireAuth(auth.Me))
	mux.HandleFunc("POST /api/auth/password", middleware.RequireAuth(auth.ChangePassword))

	// Files
	mux.HandleFunc("GET /api/files", middleware.RequireAuth(files.List))
	mux.HandleFunc("POST /api/files", middleware.RequireAuth(files.Upload))
	mux.HandleFunc("GET /api/files/search", middleware.RequireAuth(files.Search))
	mux.HandleFunc("GET /api/files/{id}", middleware.RequireAuth(files.Get))
	mux.HandleFunc("GET /api/files/{id}/content", middleware.RequireAuth(files.Download))
	mux.HandleFunc("GET /api/files/{id}/versions", middleware.RequireAuth(files.Versions))
	mux.HandleFunc("DELETE /api/files/{id}", middleware.RequireAuth(files.Delete))

	// Folders
	mux.HandleFunc("GET /api/folders", middleware.RequireAuth(folders.List))
	mux.HandleFunc("POST /api/folders", middleware.RequireAuth(folders.Create))
	mux.HandleFunc("GET /api/folders/{id}", middleware.RequireAuth(folders.Get))
	mux.HandleFunc("GET /api/folders/{id}/files", middleware.RequireAuth(folders.Files))
	mux.HandleFunc("DELETE /api/folders/{id}", middleware.RequireAuth(folders.Delete))

	// Projects (reads for members, changes for admins)
	mux.HandleFunc("GET /api/projects", middleware.RequireAuth(projects.List))
	mux.HandleFunc("GET /api/projects/{id}", middleware.RequireAuth(projects.Get))
	mux.HandleFunc("POST /api/projects", middleware.RequireAdmin(projects.Create))
	mux.HandleFunc("PATCH /api/projects/{id}", middleware.RequireAdmin(projects.Update))
	mux.HandleFunc("POST /api/projects/{id}/archive", middleware.RequireAdmin(projects.Archive))
	mux.HandleFunc("PUT /api/projects/{id}/members/{userID}", middleware.RequireAdmin(projects.AddMember))
	mux.HandleFunc("DELETE /api/projects/{id}/members/{userID}", middleware.RequireAdmin(projects.RemoveMember))

	// ============================================================================
	// ADMIN ROUTES (/api/admin/*)
	// ============================================================================

	mux.HandleFunc("GET /api/admin/users", middleware.RequireAdmin(admin.ListUsers))
	mux.HandleFunc("POST /api/admin/users", middleware.RequireAdmin(admin.CreateUser))
	mux.HandleFunc("POST /api/admin/users/{id}/lock", middleware.RequireAdmin(admin.LockUser))
	mux.HandleFunc("POST /api/admin/users/{id}/unlock", middleware.RequireAdmin(admin.UnlockUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", middleware.RequireAdmin(admin.DeleteUser))
	mux.HandleFunc("GET /api/admin/users/{id}/usage", middleware.RequireAdmin(admin.UserUsage))
	mux.HandleFunc("POST /api/admin/users/{id}/reconcile", middleware.RequireAdmin(admin.Reconcile))
	mux.HandleFunc("GET /api/admin/files", middleware.RequireAdmin(files.ListAll))
	mux.HandleFunc("GET /api/admin/security", middleware.RequireAdmin(admin.Security))
	mux.HandleFunc("GET /api/admin/logs", middleware.RequireAdmin(admin.Logs))
	mux.HandleFunc("GET /api/admin/stats", middleware.RequireAdmin(admin.Stats))
	mux.HandleFunc("POST /api/admin/sweeps/{kind}", middleware.RequireAdmin(admin.Sweep))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.SecurityHeaders,
		middleware.Authenticate(app.AuthService), // before logging so the caller is logged
		middleware.RequestLogging,
	)
}
