package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/infra/access"
	"github.com/arklim/record-registry/internal/infra/config"
	"github.com/arklim/record-registry/internal/infra/database"
	kafkainfra "github.com/arklim/record-registry/internal/infra/kafka"
	"github.com/arklim/record-registry/internal/infra/logger"
	"github.com/arklim/record-registry/internal/infra/pid"
	redisinfra "github.com/arklim/record-registry/internal/infra/redis"
	s3infra "github.com/arklim/record-registry/internal/infra/s3"
	"github.com/arklim/record-registry/internal/infra/telemetry"
	"github.com/arklim/record-registry/internal/infra/validation"
	postgresrepo "github.com/arklim/record-registry/internal/repository/postgres"
	redisrepo "github.com/arklim/record-registry/internal/repository/redis"
	"github.com/arklim/record-registry/internal/transport/http/routes"
	"github.com/arklim/record-registry/internal/usecase"
)

type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	records   *usecase.RecordService
	telemetry *telemetry.Provider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if err := database.Migrate(cfg.Postgres, log); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	txManager := postgresrepo.NewTxManager(pool, repos)

	versionCache := redisrepo.NewVersionStateCache(redisClient.Client(), cfg.Redis.VersionStatePrefix)
	readSet := repos.Set()
	readSet.VersionStates = redisrepo.NewCachingVersionStates(
		repos.VersionStates,
		versionCache,
		cfg.Redis.VersionStateTTL,
		log,
	)

	var indexer port.Indexer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub indexer", zap.Error(err))
			indexer = kafkainfra.NewStubIndexer(log)
		} else {
			indexer = kafkainfra.NewIndexer(kafkaProducer, log)
			log.Info("kafka indexer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub indexer")
		indexer = kafkainfra.NewStubIndexer(log)
	}

	bucketStore, err := s3infra.NewBucketStore(ctx, cfg.S3, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init bucket store: %w", err)
	}

	pidProvider := pid.NewLocalProvider()
	checker := access.NewRoleChecker(cfg.Access)
	validator := validation.NewSchemaValidator(validation.DefaultRules())

	components := []usecase.LifecycleComponent{
		usecase.NewRelationsComponent(repos.Parents, pidProvider),
		usecase.NewMetadataComponent(validator),
		usecase.NewPIDComponent(pidProvider),
		usecase.NewFilesComponent(bucketStore, checker, usecase.FilesOptions{}),
		usecase.NewFilesComponent(bucketStore, checker, usecase.FilesOptions{Media: true}),
	}

	recordService := usecase.NewRecordService(
		readSet,
		txManager,
		indexer,
		checker,
		components,
		usecase.RecordServiceOptions{
			DraftTTL: cfg.Drafts.TTL,
			GCMargin: cfg.Drafts.GCMargin,
		},
	).WithLogger(log)

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Records:  recordService,
		Database: pool,
		Cache:    redisClient,
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		records:   recordService,
		telemetry: provider,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	cleanupDone := a.startCleanupLoop(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting registry API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		<-cleanupDone
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// startCleanupLoop periodically garbage-collects removed and expired drafts.
func (a *Application) startCleanupLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval := a.cfg.Drafts.CleanupInterval
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				started := time.Now()
				removed, err := a.records.CleanupDrafts(ctx, a.cfg.Drafts.CleanupGrace)
				if err != nil {
					a.telemetry.ObserveOperation("cleanup", "error", time.Since(started).Seconds())
					a.logger.Warn("draft cleanup failed", zap.Error(err))
					continue
				}
				a.telemetry.ObserveOperation("cleanup", "ok", time.Since(started).Seconds())
				a.telemetry.SetCleanupRemoved(removed)
			}
		}
	}()

	return done
}
