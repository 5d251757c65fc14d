package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thotranphuc276/person-detection/internal/bootstrap"
	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/repository/sqlite"
	"github.com/thotranphuc276/person-detection/internal/route"
	"github.com/thotranphuc276/person-detection/internal/service"
	"github.com/thotranphuc276/person-detection/internal/service/ai"
	"github.com/thotranphuc276/person-detection/internal/service/storage"
	"github.com/thotranphuc276/person-detection/internal/service/telemetry"
	"github.com/thotranphuc276/person-detection/internal/service/websocket"
)

const (
	provisionTimeout = 10 * time.Second
	shutdownTimeout  = 10 * time.Second
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	elastic  *telemetry.ElasticStore
	detector *ai.PersonDetector
	hub      *websocket.HubService
	pipeline *telemetry.Pipeline
	server   *http.Server
}

// NewApp connects to the stores, loads the model and wires the HTTP server.
// The relational store and the model are required; Elasticsearch is not, and
// without it the telemetry pipeline runs disabled.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}

	files := storage.NewFileStore(cfg.UploadDirectory, cfg.ResultsDirectory, log)
	if err := files.EnsureDirs(); err != nil {
		return nil, err
	}

	connector := bootstrap.NewConnector(bootstrap.Policy{
		MaxAttempts: cfg.ConnectMaxAttempts,
		RetryDelay:  cfg.ConnectRetryDelay,
	}, log)

	db, err := bootstrap.Connect(ctx, connector, "database "+cfg.DatabasePath, sqlite.Dial(cfg.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}
	log.Info("Database ready at %s", db.Path())

	var store telemetry.Store
	if cfg.ElasticsearchURL == "" {
		log.Warning("ELASTICSEARCH_URL not set")
	} else {
		es, err := bootstrap.Connect(ctx, connector, "elasticsearch "+cfg.ElasticsearchURL,
			telemetry.DialElasticsearch(telemetry.ElasticOptions{
				Address:            cfg.ElasticsearchURL,
				InsecureSkipVerify: !cfg.IsProduction(),
			}))
		if err != nil {
			log.Warning("Continuing without telemetry: %v", err)
		} else {
			a.elastic = es
			store = es
		}
	}

	a.pipeline = telemetry.New(store, telemetry.Options{
		QueueCapacity:  cfg.TelemetryQueueCapacity,
		EnqueueTimeout: cfg.TelemetryEnqueueTimeout,
		ShutdownGrace:  cfg.TelemetryShutdownGrace,
	}, log)

	detector, err := ai.NewPersonDetector(cfg.ModelConfigPath, cfg.ModelWeightsPath, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load detection model: %w", err)
	}
	a.detector = detector

	a.hub = websocket.NewHubService(log)
	manager := service.NewManager(detector, files, sqlite.NewDetectionRepository(db), a.hub, a.pipeline, log)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           route.SetupRoutes(manager, a.hub, a.pipeline, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// everything down: the server first, then the live feed, then telemetry.
func (a *App) Run(ctx context.Context) error {
	provisionCtx, cancel := context.WithTimeout(ctx, provisionTimeout)
	a.pipeline.Provision(provisionCtx)
	cancel()
	a.pipeline.Start()

	hubCtx, stopHub := context.WithCancel(context.Background())
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Person detection API (%s) listening on %s", a.config.Env, a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown: %v", err)
	}

	stopHub()
	a.pipeline.Shutdown()
	a.Close()

	a.logger.Info("Shutdown complete")
	return runErr
}

// Close releases the model and store connections.
func (a *App) Close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.elastic != nil {
		a.elastic.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
}
