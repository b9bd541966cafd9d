package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthguard/portal/internal/config"
	"github.com/healthguard/portal/internal/domain/auditlog"
	"github.com/healthguard/portal/internal/domain/portal"
	"github.com/healthguard/portal/internal/platform/assistant"
	"github.com/healthguard/portal/internal/platform/auth"
	"github.com/healthguard/portal/internal/platform/cache"
	"github.com/healthguard/portal/internal/platform/db"
	"github.com/healthguard/portal/internal/platform/live"
	"github.com/healthguard/portal/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthguard",
		Short: "HealthGuard patient portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

// newLogger writes human-readable lines in development and JSON otherwise.
func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// deps are the backing services of a server. Nil fields fall back to
// in-process implementations.
type deps struct {
	audit     auditlog.Repository
	briefs    cache.Store
	assistant assistant.Service
	dbHealth  db.Pinger
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(os.Stdout, cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.UsesDevSigningKey() {
		logger.Warn().Msg("signing tokens with the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var d deps

	// Database
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if migrate {
			n, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
			if err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
			logger.Info().Int("applied", n).Msg("migrations applied")
		}
		d.audit = auditlog.NewPGRepository(pool, portal.DemoPatientID)
		d.dbHealth = pool
	} else {
		logger.Warn().Msg("DATABASE_URL not set, audit log is kept in memory")
	}

	// Brief cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "healthguard:")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		logger.Info().Msg("connected to redis")
		d.briefs = rc
	} else {
		mem := cache.NewMemory()
		mem.StartCleanup(ctx, time.Minute)
		d.briefs = mem
	}

	// Generative assistant
	if cfg.GeminiAPIKey != "" {
		g, err := assistant.NewGemini(ctx, assistant.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			TextModel:   cfg.GeminiTextModel,
			VisionModel: cfg.GeminiVisionModel,
			ChatModel:   cfg.GeminiChatModel,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create gemini client")
		}
		d.assistant = g
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, assistant features return fallbacks")
	}

	e, registry, err := newServer(ctx, cfg, d, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Grant expiry
	if cfg.GrantExpirySweep != "" {
		sweeper, err := portal.NewSweeper(registry, cfg.GrantExpirySweep, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule grant sweep")
		}
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()
		logger.Info().Str("schedule", cfg.GrantExpirySweep).Msg("grant expiry sweep scheduled")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the portal onto an echo instance.
func newServer(ctx context.Context, cfg *config.Config, d deps, logger zerolog.Logger) (*echo.Echo, *portal.Registry, error) {
	if d.audit == nil {
		d.audit = auditlog.NewMemoryRepository()
	}

	hub := live.NewHub(logger)
	session, err := portal.NewDemoSession(ctx, d.audit, portal.Options{
		Assistant: assistant.NewGuarded(d.assistant, logger),
		Briefs:    d.briefs,
		BriefTTL:  cfg.BriefCacheTTL,
		MaxChats:  cfg.MaxOpenChats,
		Events:    hub,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	registry := portal.NewRegistry()
	registry.Add(session)

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSigningKey),
		TTL:        cfg.TokenTTL,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxUploadBytes + 1<<20))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() {
		profile := portal.DemoProfile()
		e.Use(auth.DevAuthMiddleware(jwtCfg, auth.Identity{
			Subject: profile.ID,
			Name:    profile.Name,
			Role:    auth.RolePatient,
		}, auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg, auth.AuthSkipper))
	}
	e.Use(middleware.Access(logger))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.dbHealth != nil {
		e.GET("/health/db", db.HealthHandler(d.dbHealth))
	}

	apiV1 := e.Group("/api/v1")
	portal.NewHandler(registry, jwtCfg, cfg.MaxUploadBytes, live.NewHandler(hub, cfg.CORSOrigins), logger).RegisterRoutes(apiV1)

	return e, registry, nil
}
