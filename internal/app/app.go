package app

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/config"
	"github.com/templui/vaultgate/internal/db"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/service"
	"github.com/templui/vaultgate/internal/storage"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	Store           *repository.Store
	Blobs           storage.BlobStore
	Notifier        activity.Notifier
	AuthService     *service.AuthService
	UserService     *service.UserService
	EmailService    *service.EmailService
	FileService     *service.FileService
	FolderService   *service.FolderService
	ProjectService  *service.ProjectService
	SecurityService *service.SecurityService
	AuditService    *service.AuditService
	Ledger          *service.Ledger
	Sweeper         *lifecycle.Sweeper

	publisher *activity.Publisher
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	store := repository.NewStore(database)

	// Storage
	blobs, err := storage.New(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Activity: always the audit table, plus NATS when configured
	var publisher *activity.Publisher
	notifiers := []activity.Notifier{activity.NewStore(store.Activity)}
	if cfg.NATSURL != "" {
		publisher, err = activity.ConnectNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			// The audit table still records everything.
			slog.Warn("nats unavailable, activity fan-out disabled", "error", err, "url", cfg.NATSURL)
		} else {
			notifiers = append(notifiers, publisher)
		}
	}
	notifier := activity.Fanout(notifiers...)

	// Services
	clock := service.RealClock{}
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	access := service.NewAccess(store, notifier, clock)
	ledger := service.NewLedger(store, clock)
	versions := service.NewVersionChain(clock)
	authService := service.NewAuthService(store, notifier, emailService, clock, cfg.JWTSecret, cfg.JWTExpiry)
	fileService := service.NewFileService(store, blobs, ledger, versions, access, notifier, emailService, clock, cfg.MaxUploadBytes)
	folderService := service.NewFolderService(store, fileService, access, notifier, clock)
	projectService := service.NewProjectService(store, access, notifier, clock)
	userService := service.NewUserService(store, authService, ledger, access, blobs, notifier, clock, cfg.DefaultQuotaBytes)
	securityService := service.NewSecurityService(store, clock, policy.Thresholds{
		High:   cfg.ThreatDeleteHigh,
		Medium: cfg.ThreatDeleteMedium,
	})

	auditService := service.NewAuditService(store, notifier, clock)

	// Lifecycle
	sweeper := lifecycle.NewSweeper(clock, slog.Default().With("component", "sweeper"))
	sweeper.Register(lifecycle.KindProjectExpiry, projectService.ExpirySource())
	sweeper.Register(lifecycle.KindFileSelfDestruct, fileService.SelfDestructSource())
	sweeper.Register(lifecycle.KindAccountInactivity, userService.InactivitySource())

	return &App{
		Cfg:             cfg,
		DB:              database,
		Store:           store,
		Blobs:           blobs,
		Notifier:        notifier,
		AuthService:     authService,
		UserService:     userService,
		EmailService:    emailService,
		FileService:     fileService,
		FolderService:   folderService,
		ProjectService:  projectService,
		SecurityService: securityService,
		AuditService:    auditService,
		Ledger:          ledger,
		Sweeper:         sweeper,
		publisher:       publisher,
	}, nil
}

// Schedules maps each sweep to its configured cron expression.
func (a *App) Schedules() map[lifecycle.Kind]string {
	return map[lifecycle.Kind]string{
		lifecycle.KindProjectExpiry:     a.Cfg.ProjectExpirySchedule,
		lifecycle.KindFileSelfDestruct:  a.Cfg.FileSelfDestructSchedule,
		lifecycle.KindAccountInactivity: a.Cfg.AccountInactivitySchedule,
	}
}

func (a *App) Close() error {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
