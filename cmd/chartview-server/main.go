package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chartview/chartview/internal/config"
	"github.com/chartview/chartview/internal/domain/auth"
	"github.com/chartview/chartview/internal/domain/patient"
	"github.com/chartview/chartview/internal/platform/ehr"
	"github.com/chartview/chartview/internal/platform/middleware"
	"github.com/chartview/chartview/internal/platform/sandbox"
	"github.com/chartview/chartview/internal/platform/token"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chartview-server",
		Short: "Clinical records gateway for a remote EHR",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sandboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func sandboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sandbox",
		Short: "Start the sandbox EHR upstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox()
		},
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildServer wires the gateway's routes and middleware. Split from
// runServer so tests can drive the full stack without binding a port.
func buildServer(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	client := ehr.NewClient(ehr.Options{
		BaseURL:      cfg.EHRBaseURL,
		TokenURL:     cfg.TokenURL(),
		ClientID:     cfg.EHRClientID,
		ClientSecret: cfg.EHRClientSecret,
		Timeout:      cfg.RequestTimeout(),
		Logger:       logger,
	})
	policy := token.Policy{
		AccessTTL:  time.Duration(cfg.AccessTokenTTL) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTokenTTL) * time.Second,
		Secure:     cfg.CookieSecure,
	}

	authHandler := auth.NewHandler(auth.NewService(client), policy, logger)
	authHandler.RegisterRoutes(e)

	patientHandler := patient.NewHandler(patient.NewService(client), policy, logger)
	patientHandler.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	return e
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	e := buildServer(cfg, logger)
	return serveUntilSignal(e, ":"+cfg.Port, logger)
}

func runSandbox() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateSandbox(); err != nil {
		logger.Fatal().Err(err).Msg("invalid sandbox config")
	}

	srv := sandbox.New(sandbox.Options{
		Key:          cfg.SandboxKey,
		AccessTTL:    time.Duration(cfg.AccessTokenTTL) * time.Second,
		RefreshTTL:   time.Duration(cfg.RefreshTokenTTL) * time.Second,
		PatientCount: cfg.SandboxPatients,
		Logger:       logger,
	})
	defer srv.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	srv.RegisterRoutes(e)

	return serveUntilSignal(e, ":"+cfg.SandboxPort, logger)
}

func serveUntilSignal(e *echo.Echo, addr string, logger zerolog.Logger) error {
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
