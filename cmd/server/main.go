package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"marketstats/server/config"
	"marketstats/server/internal/api"
	"marketstats/server/internal/database"
	"marketstats/server/internal/firestore"
	"marketstats/server/internal/importer"
	"marketstats/server/internal/memstore"
	"marketstats/server/internal/metrics"
	"marketstats/server/internal/processor"
	"marketstats/server/internal/queue"
	"marketstats/server/internal/report"
	"marketstats/server/internal/scheduler"
)

// store is what every backend provides.
type store interface {
	api.Store
	processor.Store
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store, error) {
	switch cfg.Store.Backend {
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Store.FirestoreProjectID, cfg.Store.FirestoreCredsFile)
		if err != nil {
			return nil, err
		}
		if err := firestore.Ping(ctx, client); err != nil {
			client.Close()
			return nil, err
		}
		logger.WithField("project", cfg.Store.FirestoreProjectID).Info("Using firestore store")
		return firestore.NewStore(client), nil
	case "memory":
		logger.Warn("Using in-memory store, data is lost on exit")
		return memstore.New(), nil
	default:
		logger.Infof("Using database at: %s", cfg.Store.SQLitePath)
		db, err := database.NewDatabase(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Missing env files are fine, the environment may already be set
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("Invalid LOG_LEVEL, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := config.LoadHierarchies(cfg.Reports.HierarchyDir, config.SupportedCities)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load city hierarchies")
	}
	logger.WithField("cities", registry.Cities()).Info("Loaded city hierarchies")

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jobQueue := queue.NewJobQueue(cfg.Jobs.QueueSize, logger)
	proc := processor.NewProcessor(db, registry, jobQueue, cfg, m, logger)
	proc.Start()
	jobQueue.Start()

	sched := scheduler.NewScheduler(jobQueue, logger, config.GetCityIDs(), cfg.Jobs.ScheduleHour)
	sched.Start()

	assembler := report.NewAssembler(db, logger, report.Options{
		Months:        cfg.Reports.Months,
		Years:         cfg.Reports.Years,
		DefaultRanges: cfg.Reports.DistributionRanges,
		Strict:        cfg.Reports.StrictLocations,
	}, m)
	imp := importer.NewImporter(db, registry, jobQueue, logger)
	handler := api.NewHandler(db, registry, assembler, imp, jobQueue, cfg.Reports.StrictLocations, logger)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(m.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.SetupRoutes(router, handler, m)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	sched.Stop()
	if err := jobQueue.Close(); err != nil {
		logger.WithError(err).Error("Failed to close job queue")
	}
	proc.Stop()
}
