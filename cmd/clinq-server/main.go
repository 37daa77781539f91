package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinq/clinq/internal/config"
	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/internal/domain/queue"
	"github.com/clinq/clinq/internal/domain/slot"
	"github.com/clinq/clinq/internal/platform/auth"
	"github.com/clinq/clinq/internal/platform/db"
	"github.com/clinq/clinq/internal/platform/events"
	"github.com/clinq/clinq/internal/platform/keylock"
	"github.com/clinq/clinq/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinq-server",
		Short: "Appointment slot and queue engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			_, pool, err := loadAndConnect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			_, pool, err := loadAndConnect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			_, pool, err := loadAndConnect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(cmd.Context(), pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(createCmd)
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Slot maintenance",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Materialize bookable slots for a doctor-branch and date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			branchStr, _ := cmd.Flags().GetString("doctor-branch")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			doctorBranchID, err := uuid.Parse(branchStr)
			if err != nil {
				return fmt.Errorf("--doctor-branch must be a uuid: %w", err)
			}
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
			}

			cfg, pool, err := loadAndConnect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.WithTenantConn(cmd.Context(), pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			logger := newLogger(cfg)
			availRepo := availability.NewRepoPG(pool)
			resolver, err := slot.NewResolver(availRepo, cfg.ReleaseRuleCacheSize)
			if err != nil {
				return err
			}
			svc := slot.NewService(slot.NewRepoPG(pool), availRepo, resolver, keylock.New(), nil, logger)

			result, err := svc.Generate(ctx, doctorBranchID, from, to)
			if err != nil {
				return err
			}
			fmt.Printf("Created %d slot(s), skipped %d existing, %d leave day(s).\n",
				len(result.Created), result.SkippedExisting, result.SkippedLeaveDays)
			return nil
		},
	}
	generateCmd.Flags().String("tenant", "default", "Tenant identifier")
	generateCmd.Flags().String("doctor-branch", "", "Doctor-branch id (uuid)")
	generateCmd.Flags().String("from", "", "Range start (YYYY-MM-DD)")
	generateCmd.Flags().String("to", "", "Range end (YYYY-MM-DD)")
	cmd.AddCommand(generateCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark past OPEN slots EXPIRED",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, pool, err := loadAndConnect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.WithTenantConn(cmd.Context(), pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			logger := newLogger(cfg)
			availRepo := availability.NewRepoPG(pool)
			resolver, err := slot.NewResolver(availRepo, cfg.ReleaseRuleCacheSize)
			if err != nil {
				return err
			}
			svc := slot.NewService(slot.NewRepoPG(pool), availRepo, resolver, keylock.New(), nil, logger)

			n, err := svc.ExpireSweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Expired %d slot(s).\n", n)
			return nil
		},
	}
	sweepCmd.Flags().String("tenant", "default", "Tenant identifier")
	cmd.AddCommand(sweepCmd)

	return cmd
}

func loadAndConnect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), int32(cfg.DBMinConns))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), int32(cfg.DBMinConns))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	if publisher != nil {
		defer publisher.Close()
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("event publishing enabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	e.GET("/health", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	locks := keylock.New()

	availRepo := availability.NewRepoPG(pool)
	availSvc := availability.NewService(availRepo, locks)
	availability.NewHandler(availSvc).RegisterRoutes(apiV1)

	resolver, err := slot.NewResolver(availRepo, cfg.ReleaseRuleCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build release resolver")
	}
	slotSvc := slot.NewService(slot.NewRepoPG(pool), availRepo, resolver, locks, publisher, logger)
	slot.NewHandler(slotSvc).RegisterRoutes(apiV1)

	// Rule mutations must evict cached release rules so the next
	// generation run sees them.
	availSvc.SetRuleCacheInvalidator(slotSvc.Resolver())

	queueSvc := queue.NewService(queue.NewRepoPG(pool), availRepo, locks, publisher, logger, cfg.AvgConsultMin)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
