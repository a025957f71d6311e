package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/markdave123-py/flowdesk/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/flowdesk/internal/api/middlewares"
	"github.com/markdave123-py/flowdesk/internal/config"
	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/automation"
	db "github.com/markdave123-py/flowdesk/internal/core/database"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/core/llm"
	objectclient "github.com/markdave123-py/flowdesk/internal/core/object-client"
	"github.com/markdave123-py/flowdesk/internal/core/queue"
	"github.com/markdave123-py/flowdesk/internal/services"
)

const (
	startupTimeout  = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
	webhookTimeout  = 60 * time.Second
	// drainGrace covers the final status write after a run times out.
	drainGrace = 15 * time.Second
)

// App owns every long-lived dependency of the process.
type App struct {
	cfg       *config.Config
	DBClient  *db.DatabaseClient
	Objects   *objectclient.S3Client
	Embedder  llm.Embedder
	Ingestor  *ingestion_engine.DocumentIngestor
	Documents *services.DocumentService

	trigger  core.ProcessingTrigger
	producer *nsq.Producer
}

// NewApp connects the database (migrating it), object storage and the
// embedding provider, and builds the ingestion pipeline on top of them.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	appCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DBClient, err = db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	slog.Info("database initialized and migrated")

	// Runs that died with a previous process leave their documents in
	// processing; once the lease is gone they are failed so they can be retried.
	if n, err := a.DBClient.FailExpiredRuns(appCtx, ingestion_engine.AbandonedMessage); err != nil {
		slog.Warn("fail abandoned processing runs", "error", err)
	} else if n > 0 {
		slog.Info("failed abandoned processing runs", "documents", n)
	}

	a.Objects, err = objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	slog.Info("object client initialized", "bucket", cfg.BucketName)

	a.Embedder, err = llm.NewEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	slog.Info("embedder initialized", "provider", cfg.EmbedProvider, "dim", cfg.EmbedDim)

	a.Ingestor, err = ingestion_engine.NewDocumentIngestor(
		a.DBClient, a.DBClient, a.Objects, a.Embedder,
		ingestion_engine.NewDocconvExtractor(),
		IngestConfigFrom(cfg),
	)
	if err != nil {
		return nil, err
	}

	switch cfg.TriggerMode {
	case config.TriggerNSQ:
		a.producer, err = queue.NewProducer(cfg.NSQDHost)
		if err != nil {
			return nil, err
		}
		a.trigger = queue.NewNSQTrigger(a.producer, cfg.NSQTopic)
	default:
		a.trigger = a.Ingestor
	}

	a.Documents = services.NewDocumentService(a.DBClient, a.Objects, a.trigger, a.Ingestor,
		cfg.MaxUploadBytes(), cfg.MaxFilesPerBatch)
	return a, nil
}

// IngestConfigFrom maps process configuration onto pipeline settings.
func IngestConfigFrom(cfg *config.Config) ingestion_engine.IngestConfig {
	return ingestion_engine.IngestConfig{
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		EmbedBatchSize:   cfg.EmbedBatchSize,
		EmbedConcurrency: cfg.EmbedConcurrent,
		EmbedRatePerSec:  cfg.EmbedRatePerSec,
		EmbedDim:         cfg.EmbedDim,
		InsertBatchSize:  cfg.KBInsertBatchSize,
		ProcessTimeout:   cfg.ProcessTimeout(),
	}
}

// Serve starts the ingestion workers (or the NSQ consumer) and the HTTP
// server, and blocks until ctx is cancelled and everything has stopped.
func (a *App) Serve(ctx context.Context) error {
	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}

	var consumer *nsq.Consumer
	switch a.cfg.TriggerMode {
	case config.TriggerNSQ:
		msgTimeout := a.cfg.NSQMsgTimeout()
		c, err := queue.Subscribe(a.cfg.NSQTopic, a.cfg.NSQChannel, a.cfg.NSQLookupd,
			a.cfg.IngestWorkers, msgTimeout, queue.NewConsumer(a.Ingestor, queue.TouchInterval(msgTimeout)))
		if err != nil {
			return err
		}
		consumer = c
	default:
		a.Ingestor.Start(ctx, a.cfg.IngestWorkers)
	}

	jwt := appMiddleware.NewAuthenticator(a.cfg.JWTSecret, appMiddleware.DefaultTokenTTL)
	users := services.NewUserService(a.DBClient)
	routes := Routes{
		Auth:      handlers.NewAuthHandler(users, jwt),
		Documents: handlers.NewDocumentHandler(a.Documents, a.cfg.MaxUploadBytes(), a.cfg.MaxFilesPerBatch),
		Workflows: handlers.NewWorkflowHandler(
			services.NewWorkflowService(a.DBClient, automation.NewWebhookClient(webhookTimeout)),
			services.NewKnowledgeService(a.DBClient, a.Embedder),
		),
		Admin:    handlers.NewAdminHandler(services.NewWorkflowAdminService(a.DBClient, a.Objects), users),
		Logs:     handlers.NewTriggerLogHandler(services.NewTriggerLogService(a.DBClient)),
		Internal: handlers.NewInternalHandler(a.Documents),
		JWT:      jwt,
		Health:   a.DBClient,
	}
	server := NewServer(a.cfg, NewRouter(a.cfg, routes))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, serveErr, server.Shutdown(shutdownCtx))

	// Runs in flight get their whole timeout, so none is cut off mid-write
	// and left in processing when the process exits.
	drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), workerDrainTimeout(a.cfg))
	defer cancelDrain()

	if consumer != nil {
		consumer.Stop()
		select {
		case <-consumer.StopChan:
		case <-drainCtx.Done():
			errs = append(errs, errors.New("nsq consumer did not stop in time"))
		}
	} else if ctx.Err() != nil {
		select {
		case <-a.Ingestor.Done():
		case <-drainCtx.Done():
			errs = append(errs, errors.New("ingestion workers did not stop in time"))
		}
	}
	return errors.Join(errs...)
}

// workerDrainTimeout is how long shutdown waits for running pipelines.
func workerDrainTimeout(cfg *config.Config) time.Duration {
	return max(shutdownTimeout, cfg.ProcessTimeout()+drainGrace)
}

// ProcessOnce runs the pipeline for one document in the foreground.
func (a *App) ProcessOnce(ctx context.Context, documentID string) (ingestion_engine.Result, error) {
	return a.Documents.ProcessNow(ctx, documentID)
}

func (a *App) Close() {
	if a.producer != nil {
		a.producer.Stop()
	}
	if a.Embedder != nil {
		if err := a.Embedder.Close(); err != nil {
			slog.Warn("close embedder", "error", err)
		}
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
