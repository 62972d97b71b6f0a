package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/acadimport/internal/backend"
	"github.com/JonMunkholm/acadimport/internal/config"
	"github.com/JonMunkholm/acadimport/internal/core"
	_ "github.com/JonMunkholm/acadimport/internal/core/schemas" // Register all import kinds
	"github.com/JonMunkholm/acadimport/internal/logging"
	"github.com/JonMunkholm/acadimport/internal/spreadsheet"
	"github.com/JonMunkholm/acadimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.URL,
		Token:           cfg.Backend.Token,
		Timeout:         cfg.Backend.Timeout,
		MaxRetries:      cfg.Backend.MaxRetries,
		KindPaths:       cfg.Backend.KindPaths(),
		DepartmentsPath: cfg.Backend.DepartmentsPath,
	})
	for _, kind := range core.Kinds() {
		if !client.Supports(kind) {
			slog.Error("no batch endpoint configured for import kind", "kind", kind)
			os.Exit(1)
		}
	}
	slog.Info("import kinds registered", "kinds", core.Kinds())

	service := core.NewService(core.ServiceOptions{
		Parser:      spreadsheet.NewParser(),
		Creator:     client,
		MaxRows:     cfg.Import.MaxRows,
		ReportLimit: cfg.Import.ReportLimit,
		PreviewRows: cfg.Import.PreviewRows,
		SessionTTL:  cfg.Session.TTL,
	})

	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	server := web.NewServer(cfg, service, client, limiter)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionJanitor(jobCtx, core.JanitorConfig{
		TTL:           cfg.Session.TTL,
		CheckInterval: cfg.Session.CheckInterval,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for files being parsed (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		service.Shutdown()
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
