package cmd

import (
	"log/slog"

	"github.com/templui/vaultgate/internal/app"
	"github.com/templui/vaultgate/internal/config"
	"github.com/templui/vaultgate/internal/logger"
)

// withApp boots the same wiring the server uses, runs fn and closes it.
func withApp(fn func(a *app.App) error) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	defer logger.Flush()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := a.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	return fn(a)
}
