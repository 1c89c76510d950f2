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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/radonc/rtcare/internal/config"
	"github.com/radonc/rtcare/internal/domain/radiotherapy"
	"github.com/radonc/rtcare/internal/platform/auth"
	"github.com/radonc/rtcare/internal/platform/db"
	"github.com/radonc/rtcare/internal/platform/middleware"
	"github.com/radonc/rtcare/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "rt-server",
		Short:        "Radiotherapy patient records API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dischargeCmd())
	rootCmd.AddCommand(fractionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// app bundles what every command needs once config and the pool are up.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	loc    *time.Location
	pool   *pgxpool.Pool
	svc    *radiotherapy.Service
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Env, os.Stdout)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		loc:    loc,
		pool:   pool,
		svc:    newService(pool, policyFromConfig(cfg), logger),
	}, nil
}

func policyFromConfig(cfg *config.Config) radiotherapy.Policy {
	return radiotherapy.Policy{
		DischargePrepDays:     cfg.DischargePrepDays,
		BloodTestIntervalDays: cfg.BloodTestIntervalDays,
		IncapacityWarningDays: cfg.IncapacityWarningDays,
	}
}

func newService(pool *pgxpool.Pool, policy radiotherapy.Policy, logger zerolog.Logger) *radiotherapy.Service {
	return radiotherapy.NewService(
		radiotherapy.NewPatientRepoPG(pool),
		radiotherapy.NewFractionRepoPG(pool),
		radiotherapy.NewIncapacityRepoPG(pool),
		db.NewTxRunner(pool),
		policy,
		logger,
	)
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
			ctx := context.Background()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			count, err := db.NewMigrator(a.pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to schema %s.\n", count, schema)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			ctx := context.Background()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			statuses, err := db.NewMigrator(a.pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func dischargeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discharge",
		Short: "Discharge date maintenance",
	}

	recalcCmd := &cobra.Command{
		Use:   "recalc",
		Short: "Pin every patient's discharge date to their last fraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			ctx := context.Background()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			report, err := a.svc.ReconcileAllDischargeDates(ctx, dryRun)
			if report != nil {
				printReconcileReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
	recalcCmd.Flags().Bool("dry-run", false, "Report changes without writing them")
	cmd.AddCommand(recalcCmd)

	return cmd
}

func printReconcileReport(w io.Writer, report *radiotherapy.ReconcileReport) {
	if report.DryRun {
		fmt.Fprintln(w, "Dry run: no changes written.")
	}
	for _, res := range report.Results {
		if !res.Changed {
			continue
		}
		fmt.Fprintf(w, "%-40s %s -> %s\n", displayName(res), formatDay(res.Previous), formatDay(res.Discharge))
	}
	verb := "Updated"
	if report.DryRun {
		verb = "Would update"
	}
	fmt.Fprintf(w, "%s %d of %d patient(s).\n", verb, report.Updated, report.Checked)
}

func displayName(res *radiotherapy.ReconcileResult) string {
	if res.PatientName != "" {
		return res.PatientName
	}
	return res.PatientID.String()
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "(none)"
	}
	return t.Format("2006-01-02")
}

func fractionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fractions",
		Short: "Fraction maintenance",
	}

	confirmCmd := &cobra.Command{
		Use:   "confirm-today",
		Short: "Mark today's fractions delivered and doctor-confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateFlag, _ := cmd.Flags().GetString("date")
			ctx := context.Background()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			today, err := resolveDay(dateFlag, radiotherapy.Clock(time.Now), a.loc)
			if err != nil {
				return err
			}
			n, err := a.svc.ConfirmTodayFractions(ctx, today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %d fraction(s) for %s.\n", n, today.Format("2006-01-02"))
			return nil
		},
	}
	confirmCmd.Flags().String("date", "", "Day to confirm (YYYY-MM-DD), defaults to today in CLINIC_TIMEZONE")
	cmd.AddCommand(confirmCmd)

	return cmd
}

// resolveDay returns the day named by flag, or today on clock in loc.
func resolveDay(flag string, clock radiotherapy.Clock, loc *time.Location) (time.Time, error) {
	if flag == "" {
		return clock.Today(loc), nil
	}
	d, err := radiotherapy.ParseDate(flag)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}

// newServer builds the echo instance with middleware and routes. It does no
// I/O so it can be exercised without a database.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *radiotherapy.Service, loc *time.Location, pinger db.Pinger, stats func() *db.PoolStats, accessLog *db.AccessLog) (*echo.Echo, error) {
	signingKey, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger, stats))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: signingKey,
	}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}

	var recorders []middleware.AuditRecorder
	if accessLog != nil {
		recorders = append(recorders, accessLogRecorder(accessLog))
	}

	apiV1 := e.Group("/api/v1",
		authMW,
		middleware.RateLimit(rateLimitCfg),
		middleware.Audit(logger, recorders...),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)

	radiotherapy.NewHandler(svc, radiotherapy.Clock(time.Now), loc).RegisterRoutes(apiV1)
	return e, nil
}

const accessLogTimeout = 2 * time.Second

// accessLogRecorder stores audit entries in the access_log table. It runs
// after the handler, so it gets its own deadline instead of the request's.
func accessLogRecorder(l *db.AccessLog) middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(e middleware.AuditEntry) error {
		ctx, cancel := context.WithTimeout(context.Background(), accessLogTimeout)
		defer cancel()
		return l.Insert(ctx, db.AccessRecord{
			OccurredAt: e.Timestamp,
			RequestID:  e.RequestID,
			UserID:     e.UserID,
			UserRoles:  e.UserRoles,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			PatientID:  e.PatientID,
			Method:     e.Method,
			Path:       e.Path,
			StatusCode: e.StatusCode,
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
		})
	})
}

func runServer() error {
	a, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer a.pool.Close()
	logger := a.logger
	logger.Info().Str("timezone", a.loc.String()).Msg("connected to database")

	e, err := newServer(a.cfg, logger, a.svc, a.loc, a.pool, func() *db.PoolStats { return db.GetPoolStats(a.pool) }, db.NewAccessLog(a.pool))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
