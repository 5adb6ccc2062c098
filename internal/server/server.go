// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires configuration, storage and services into the
// HTTP server and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/loginflow/internal/config"
	"codeberg.org/oliverandrich/loginflow/internal/database"
	"codeberg.org/oliverandrich/loginflow/internal/handlers"
	"codeberg.org/oliverandrich/loginflow/internal/i18n"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
	authsvc "codeberg.org/oliverandrich/loginflow/internal/services/auth"
	"codeberg.org/oliverandrich/loginflow/internal/services/email"
	"codeberg.org/oliverandrich/loginflow/internal/services/session"
	"codeberg.org/oliverandrich/loginflow/internal/services/verification"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository and services
	repo := repository.New(db)
	mailer, err := buildMailer(cfg)
	if err != nil {
		return err
	}

	authService := authsvc.NewService(repo)
	verifications := verification.NewService(repo, mailer)
	sessions, err := session.NewManager(&cfg.Session, cfg.IsSecure())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	e.Use(LoadUser(sessions, repo))

	setupRoutes(e, repo, authService, verifications, sessions)

	return startWithGracefulShutdown(e, cfg)
}

// buildMailer returns the SMTP mailer, or a log-only fallback when no
// SMTP host is configured. The fallback keeps local development usable
// without a mail server.
func buildMailer(cfg *config.Config) (verification.Mailer, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("no SMTP host configured, logging verification codes instead")
		return logMailer{}, nil
	}

	mailer, err := email.NewService(&cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}
	return mailer, nil
}

// logMailer writes codes to the log instead of sending mail.
type logMailer struct{}

func (logMailer) SendOTPEmail(_ context.Context, to, code string, expiresInMinutes int) error {
	slog.Info("otp_email", "to", to, "code", code, "expires_in_minutes", expiresInMinutes)
	return nil
}

func setupRoutes(
	e *echo.Echo,
	repo *repository.Repository,
	authService *authsvc.Service,
	verifications *verification.Service,
	sessions *session.Manager,
) {
	h := handlers.New(repo)
	ah := handlers.NewAuth(authService, verifications, sessions)
	admin := handlers.NewAdmin(repo)

	e.GET("/health", h.Health)

	a := e.Group("/auth")
	a.POST("/identify", ah.Identify)
	a.GET("/challenge", ah.Challenge)
	a.POST("/login", ah.Login)
	a.POST("/register", ah.Register)
	a.POST("/logout", ah.Logout)

	authed := a.Group("", RequireAuth())
	authed.GET("/me", ah.Me)
	authed.GET("/verify-email", ah.VerificationState)
	authed.POST("/verify-email", ah.VerifyEmail)
	authed.POST("/verify-email/resend", ah.ResendVerification)

	ag := e.Group("/admin", RequireAuth(), RequireAdmin())
	ag.GET("/users", admin.ListUsers)
	ag.PUT("/users/:id/role", admin.SetRole)
	ag.DELETE("/users/:id", admin.DeleteUser)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
