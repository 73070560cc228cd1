// Package app assembles adapters and services from configuration. Both the
// HTTP server and the pipeline CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/adapters/secondary/kube"
	"apartment-valuation-service/internal/adapters/secondary/nominatim"
	"apartment-valuation-service/internal/adapters/secondary/objectstore"
	"apartment-valuation-service/internal/adapters/secondary/opendata"
	"apartment-valuation-service/internal/adapters/secondary/postgres"
	"apartment-valuation-service/internal/adapters/secondary/rediscache"
	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/forest"
	ports "apartment-valuation-service/internal/core/ports/output"
	"apartment-valuation-service/internal/core/services"
)

type App struct {
	Config *config.Config

	Store    ports.ObjectStore
	Pointers ports.PointerRepository
	Bus      ports.PromotionBus // nil without redis

	Baseline  *services.BaselineService
	Generator *services.GeneratorService
	Processor *services.ProcessorService
	Trainer   *services.TrainerService
	Promotion *services.PromotionService
	Pipeline  *services.PipelineService
	Models    *services.ModelCache
	Estimator *services.EstimatorService

	pool  *pgxpool.Pool
	redis *goredis.Client
}

// New wires every component. Postgres and the storage backend are required
// when configured; redis and the geocoder degrade to disabled on failure.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Database.Enabled {
		pool, err := newPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	} else {
		log.Info("database disabled, runs and estimates are not recorded")
	}

	store, err := newStore(ctx, &cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	pointers, err := a.newPointerRepository()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pointers = pointers

	var (
		runs      ports.RunRepository
		estimates ports.EstimateRepository
	)
	if a.pool != nil {
		runs = postgres.NewRunRepository(a.pool)
		estimates = postgres.NewEstimateRepository(a.pool)
	}

	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(&cfg.Redis)
		if err != nil {
			log.Warnf("Redis init failed (continuing without promotion events and geocode cache): %v", err)
		} else {
			a.redis = client
			a.Bus = rediscache.NewPromotionBus(client, cfg.Redis.PromotionChannel)
			log.Info("Redis client initialized")
		}
	} else {
		log.Info("Redis integration disabled")
	}

	var geocoder ports.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder = nominatim.NewClient(&cfg.Geocoder)
		if a.redis != nil {
			geocoder = rediscache.NewGeocodeCache(geocoder, a.redis, cfg.Redis.GeocodeTTL)
		}
		log.Info("geocoder initialized")
	} else {
		log.Info("geocoding disabled, estimates use the declared neighbourhood")
	}

	a.Baseline = services.NewBaselineService(opendata.NewClient(&cfg.OpenData), store, services.BaselineOptions{
		AnchorYear:       cfg.Baseline.AnchorYear,
		HistoryYears:     cfg.Baseline.HistoryYears,
		TargetYear:       cfg.Baseline.TargetYear,
		CityAggregate:    cfg.Baseline.CityAggregate,
		MaxDecadeDecline: cfg.Baseline.MaxDecadeDecline,
	})
	a.Generator = services.NewGeneratorService(store, services.GeneratorOptions{
		Samples:   cfg.Pipeline.Samples,
		Seed:      cfg.Pipeline.Seed,
		Weighting: services.WeightingPolicy(cfg.Pipeline.Weighting),
	})
	a.Processor = services.NewProcessorService(store, services.ProcessorOptions{SplitSeed: cfg.Pipeline.SplitSeed})
	a.Trainer = services.NewTrainerService(store, runs, forest.Config{
		Trees:          cfg.Pipeline.Trees,
		MaxDepth:       cfg.Pipeline.MaxDepth,
		MinSamplesLeaf: cfg.Pipeline.MinSamplesLeaf,
		MaxFeatures:    cfg.Pipeline.MaxFeatures,
		Seed:           cfg.Pipeline.ForestSeed,
		Workers:        cfg.Pipeline.Workers,
	})
	a.Promotion = services.NewPromotionService(store, pointers, runs, a.Bus)
	a.Pipeline = services.NewPipelineService(a.Baseline, a.Generator, a.Processor, a.Trainer, a.Promotion)
	a.Models = services.NewModelCache(store, pointers, services.ModelCacheOptions{
		LoadTimeout: cfg.Model.LoadTimeout,
		RetryAfter:  cfg.Model.RetryAfter,
	})
	a.Estimator = services.NewEstimatorService(a.Models, store, geocoder, estimates, nil, services.EstimatorOptions{
		DefaultNeighborhood: cfg.Model.DefaultNeighborhood,
		GeocodeTimeout:      cfg.Model.GeocodeTimeout,
		AuditTimeout:        cfg.Model.AuditTimeout,
	})
	return a, nil
}

// Watch invalidates the model cache on promotions published by other
// replicas. It returns immediately when no bus is configured.
func (a *App) Watch(ctx context.Context) {
	if a.Bus == nil {
		return
	}
	if err := a.Models.Watch(ctx, a.Bus); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("promotion subscription stopped")
	}
}

// Ping reports whether required backing services are reachable.
func (a *App) Ping(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("close redis client")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func newPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	log.Info("database connection established")

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("database schema ensured")
	}
	return pool, nil
}

func newStore(ctx context.Context, cfg *config.StorageConfig) (ports.ObjectStore, error) {
	switch cfg.Backend {
	case config.StorageGCS:
		store, err := objectstore.NewGCSStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.WithField("bucket", cfg.GCSBucket).Info("using GCS artifact store")
		return store, nil
	default:
		store, err := objectstore.NewLocalStore(cfg.LocalRoot)
		if err != nil {
			return nil, err
		}
		log.WithField("root", cfg.LocalRoot).Info("using local artifact store")
		return store, nil
	}
}

func (a *App) newPointerRepository() (ports.PointerRepository, error) {
	cfg := a.Config
	switch cfg.Pointer.Backend {
	case config.PointerPostgres:
		if a.pool == nil {
			return nil, fmt.Errorf("pointer backend %q requires DATABASE_ENABLED", cfg.Pointer.Backend)
		}
		return postgres.NewPointerRepository(a.pool), nil
	case config.PointerConfigMap:
		client, err := kube.NewClientset(&cfg.Kubernetes)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"namespace": cfg.Kubernetes.Namespace,
			"configmap": cfg.Kubernetes.ConfigMapName,
		}).Info("using ConfigMap production pointer")
		return kube.NewConfigMapPointerRepository(client, cfg.Kubernetes.Namespace, cfg.Kubernetes.ConfigMapName), nil
	default:
		return objectstore.NewPointerRepository(a.Store), nil
	}
}
