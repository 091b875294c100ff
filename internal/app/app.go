// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/palmiyeitadmin/monitorsystem/internal/auth"
	"github.com/palmiyeitadmin/monitorsystem/internal/checks"
	checkspostgres "github.com/palmiyeitadmin/monitorsystem/internal/checks/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/config"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/heartbeat"
	hostspostgres "github.com/palmiyeitadmin/monitorsystem/internal/hosts/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
	incidentspostgres "github.com/palmiyeitadmin/monitorsystem/internal/incidents/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/notifications"
	"github.com/palmiyeitadmin/monitorsystem/internal/notifications/logsender"
	notificationspostgres "github.com/palmiyeitadmin/monitorsystem/internal/notifications/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/httputil"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/metrics"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/probe"
	"github.com/palmiyeitadmin/monitorsystem/internal/realtime"
	"github.com/palmiyeitadmin/monitorsystem/internal/sweep"
	"github.com/palmiyeitadmin/monitorsystem/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server

	// bgCtx scopes every background loop; bgCancel stops them on shutdown.
	bgCtx    context.Context
	bgCancel context.CancelFunc

	scheduler          *checks.Scheduler
	runner             *sweep.Runner
	notificationWorker *notifications.Worker
	hub                *realtime.Hub
}

// components are the wired services the router and background loops share.
type components struct {
	heartbeat *heartbeat.Service
	incidents *incidents.Service
	auth      *auth.Authenticator
}

// New creates a new application instance. Background loops are created but
// not started until Run.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.GitCommit).Set(1)

	db, err := postgres.Connect(context.Background(), postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	app := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	comps, err := app.wire()
	if err != nil {
		db.Close()
		bgCancel()
		return nil, err
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(comps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// wire builds repositories and services and registers the background jobs.
func (a *App) wire() (*components, error) {
	cfg := a.config

	hostsRepo := hostspostgres.NewRepository(a.db)
	checksRepo := checkspostgres.NewRepository(a.db)
	incidentsRepo := incidentspostgres.NewRepository(a.db)
	notificationsRepo := notificationspostgres.NewRepository(a.db)

	// Interface values stay untyped nil when a feature is disabled.
	var (
		gateway     incidents.Gateway
		hostAlerts  *notifications.Notifier
		broadcaster *realtime.Hub
	)

	slog.Info("notifications configured",
		"enabled", cfg.Notifications.Enabled,
		"channels", len(cfg.Notifications.Channels),
	)

	if cfg.Notifications.Enabled {
		renderer, err := notifications.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("create notification renderer: %w", err)
		}
		dispatcher := notifications.NewDispatcher(logsender.New(a.logger))

		channels := make([]notifications.Channel, 0, len(cfg.Notifications.Channels))
		for _, ch := range cfg.Notifications.Channels {
			channel := notifications.Channel{Type: notifications.ChannelType(ch.Type), Target: ch.Target}
			if !dispatcher.Supports(channel.Type) {
				slog.Warn("skipping notification channel without sender", "type", ch.Type, "target", ch.Target)
				continue
			}
			channels = append(channels, channel)
		}

		hostAlerts = notifications.NewNotifier(
			notificationsRepo,
			channels,
			cfg.Notifications.BaseURL,
			cfg.Notifications.Retry.MaxAttempts,
		)
		gateway = hostAlerts

		a.notificationWorker = notifications.NewWorker(notifications.WorkerConfig{
			BatchSize:         cfg.Notifications.Worker.BatchSize,
			PollInterval:      cfg.Notifications.Worker.PollInterval,
			MaxAttempts:       cfg.Notifications.Retry.MaxAttempts,
			InitialBackoff:    cfg.Notifications.Retry.InitialBackoff,
			MaxBackoff:        cfg.Notifications.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Notifications.Retry.BackoffMultiplier,
			NumWorkers:        cfg.Notifications.Worker.NumWorkers,
			RateLimit:         cfg.Notifications.RateLimit,
			RateBurst:         cfg.Notifications.RateBurst,
			StuckAfter:        notifications.DefaultWorkerConfig().StuckAfter,
		}, notificationsRepo, dispatcher, renderer)
	}

	incidentService := incidents.NewService(incidentsRepo, gateway)

	if cfg.Realtime.Enabled {
		a.hub = realtime.NewHub(cfg.Realtime.SendBuffer)
		broadcaster = a.hub
	}

	hbOpts := []heartbeat.Option{}
	if hostAlerts != nil {
		hbOpts = append(hbOpts, heartbeat.WithNotifier(hostAlerts))
	}
	if broadcaster != nil {
		hbOpts = append(hbOpts, heartbeat.WithBroadcaster(broadcaster))
	}
	heartbeatService := heartbeat.NewService(hostsRepo, incidentService, hbOpts...)

	if cfg.Scheduler.Enabled {
		registry := probe.NewDefaultRegistry(probe.Config{
			UserAgent: cfg.Probes.UserAgent,
			ICMP: probe.ICMPConfig{
				Packets:    cfg.Probes.PingPackets,
				Interval:   cfg.Probes.PingInterval,
				Privileged: cfg.Probes.PingPrivileged,
			},
		})
		checkService := checks.NewService(checksRepo, incidentService)
		a.scheduler = checks.NewScheduler(checks.SchedulerConfig{
			TickInterval:   cfg.Scheduler.TickInterval,
			MaxWorkers:     cfg.Scheduler.MaxWorkers,
			PersistTimeout: checks.DefaultSchedulerConfig().PersistTimeout,
		}, checksRepo, registry, checkService)
	}

	if cfg.Sweep.Enabled {
		var (
			sweepNotifier    sweep.HostNotifier
			sweepBroadcaster sweep.Broadcaster
			purgeQueue       sweep.NotificationStore
		)
		if hostAlerts != nil {
			sweepNotifier = hostAlerts
			purgeQueue = notificationsRepo
		}
		if broadcaster != nil {
			sweepBroadcaster = broadcaster
		}

		a.runner = sweep.NewRunner()
		jobs := []struct {
			spec string
			job  sweep.Job
		}{
			{cfg.Sweep.HostDownSchedule, sweep.NewHostDownSweeper(hostsRepo, incidentService, sweepNotifier, sweepBroadcaster, cfg.Sweep.HostDownThreshold)},
			{cfg.Sweep.MaintenanceSchedule, sweep.NewMaintenanceExpiry(hostsRepo)},
			{cfg.Sweep.RetentionSchedule, sweep.NewRetention(hostsRepo, checksRepo, purgeQueue, sweep.RetentionConfig{
				Metrics:       cfg.Sweep.MetricsRetention,
				History:       cfg.Sweep.HistoryRetention,
				Notifications: cfg.Sweep.NotificationRetention,
			})},
		}
		for _, j := range jobs {
			if err := a.runner.Add(j.spec, j.job); err != nil {
				return nil, err
			}
		}
	}

	if cfg.JWT.SecretKey == "" {
		slog.Warn("jwt secret key is empty: operator endpoints will reject every token")
	}
	authenticator := auth.NewAuthenticator(auth.Config{
		SecretKey: cfg.JWT.SecretKey,
		Issuer:    cfg.JWT.Issuer,
		TokenTTL:  cfg.JWT.TokenTTL,
	})

	return &components{
		heartbeat: heartbeatService,
		incidents: incidentService,
		auth:      authenticator,
	}, nil
}

// Run starts the background loops and the HTTP servers. It blocks until the
// main server stops.
func (a *App) Run() error {
	go a.collectDBMetrics(a.bgCtx)

	if a.notificationWorker != nil {
		a.notificationWorker.Start(a.bgCtx)
		go a.collectQueueMetrics(a.bgCtx, notificationspostgres.NewRepository(a.db))
	}
	if a.scheduler != nil {
		a.scheduler.Start(a.bgCtx)
	}
	if a.runner != nil {
		a.runner.Start(a.bgCtx)
	}

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. Producers stop first so
// nothing new is queued, then the delivery worker drains, then the servers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.runner != nil {
		a.runner.Stop()
	}
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
	a.bgCancel()

	if a.hub != nil {
		a.hub.Close()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(c *components) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	heartbeatHandler := heartbeat.NewHandler(c.heartbeat)
	incidentsHandler := incidents.NewHandler(c.incidents)

	r.Route("/api/v1", func(r chi.Router) {
		// Agents authenticate with their host API key.
		heartbeatHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(c.auth))

			incidentsHandler.RegisterRoutes(r)
			if a.hub != nil {
				realtime.NewHandler(a.hub, a.config.Realtime.AllowedOrigins).RegisterRoutes(r)
			}

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleOperator))
				incidentsHandler.RegisterOperatorRoutes(r)
			})
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
