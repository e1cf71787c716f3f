// Package bootstrap wires configuration, adapters and the pipeline together.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"crisislens_server/adapter/out/geocode"
	"crisislens_server/adapter/out/mongodb"
	"crisislens_server/adapter/out/persistence"
	"crisislens_server/config"
	"crisislens_server/core/domain"
	"crisislens_server/core/inference"
	"crisislens_server/core/pipeline"
	"crisislens_server/core/port/out"
	"crisislens_server/pkg/cache"
	"crisislens_server/pkg/httputil"
	"crisislens_server/pkg/metrics"
)

// Dependencies holds every constructed collaborator. Optional backing
// stores (postgres, mongo, redis) stay nil when not configured; the
// pipeline itself runs fully in-memory.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	Redis *redis.Client
	DB    *pgxpool.Pool
	Mongo *mongo.Client

	Registry *prometheus.Registry
	Metrics  *metrics.Pipeline

	Orchestrator *pipeline.Orchestrator
	Records      *persistence.RecordAdapter
}

// NewDependencies constructs the full dependency graph. The returned
// cleanup closes every connection it opened.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("service", "crisislens").Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipeline(registry)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  pipelineMetrics,
	}

	// Optional stores
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		deps.Redis = redis.NewClient(opts)
		cleanups = append(cleanups, func() { _ = deps.Redis.Close() })
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := persistence.NewPool(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.DB = pool
		cleanups = append(cleanups, pool.Close)
	}

	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		deps.Mongo = client
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
	}

	// Classification backends
	taxonomy, err := domain.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load taxonomy: %w", err)
	}

	llmHTTP := httputil.OpenAIClientConfig()
	llmHTTP.ResponseTimeout = time.Duration(cfg.LLMTimeoutSec) * time.Second
	llmClient := inference.NewClient(inference.ClientConfig{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		HTTPClient:     httputil.NewOptimizedClient(llmHTTP),
	})

	shared := inference.NewSharedResource(func() (out.ZeroShotModel, error) {
		return llmClient, nil
	}, cfg.SerializeInference)

	embedCache := inference.NewEmbeddingCache(nil)
	embedder := inference.NewCachedEmbedder(llmClient, embedCache)

	// Geocoding chain: Nominatim, optionally behind Redis, behind the
	// in-memory LRU.
	var geoProvider out.GeocodeProvider = geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL:        cfg.GeocodeBaseURL,
		UserAgent:      cfg.GeocodeUserAgent,
		RequestsPerSec: cfg.GeocodeRatePerSec,
	}, logger)
	if deps.Redis != nil {
		geoProvider = geocode.NewCachedProvider(geoProvider, cache.NewRedisCache(deps.Redis), logger)
	}

	geocache, err := pipeline.NewGeocodeCache(geoProvider, pipeline.GeocodeCacheConfig{
		Capacity: cfg.GeocodeCacheSize,
		Timeout:  time.Duration(cfg.GeocodeTimeoutSec) * time.Second,
		Metrics:  pipelineMetrics,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create geocode cache: %w", err)
	}

	dedup := pipeline.NewDeduplicationIndex(embedder, cfg.DedupThreshold)

	// Record archival: postgres preferred, mongo as an additional sink.
	var archivers []out.RecordArchiver
	if deps.DB != nil {
		records := persistence.NewRecordAdapter(deps.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := records.EnsureSchema(ctx)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure record schema: %w", err)
		}
		deps.Records = records
		archivers = append(archivers, records)
	}
	if deps.Mongo != nil {
		archive := mongodb.NewAnalysisArchiveAdapter(deps.Mongo.Database(cfg.MongoDBName), 30)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := archive.EnsureIndexes(ctx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("mongo index creation failed")
		}
		archivers = append(archivers, archive)
	}

	deps.Orchestrator = pipeline.NewOrchestrator(
		pipeline.Config{
			MaxBatchSize: cfg.MaxBatchSize,
			BatchWorkers: cfg.BatchWorkers,
			StageTimeout: time.Duration(cfg.StageTimeoutSec) * time.Second,
		},
		pipeline.Deps{
			Preprocessor: pipeline.NewPreprocessor(),
			Relevance:    pipeline.NewRelevanceStage(shared, taxonomy, cfg.RelevanceThreshold),
			EventType:    pipeline.NewEventTypeStage(shared, taxonomy, cfg.TypeThreshold),
			Urgency:      pipeline.NewUrgencyStage(shared, taxonomy),
			Location:     pipeline.NewLocationStage(llmClient, geocache, taxonomy),
			Dedup:        dedup,
			Geocache:     geocache,
			Archiver:     combineArchivers(archivers),
			Metrics:      pipelineMetrics,
			Logger:       logger,
			ResetHooks:   []func(){embedCache.Purge},
		},
	)

	return deps, cleanup, nil
}

// multiArchiver fans a record out to every configured sink.
type multiArchiver []out.RecordArchiver

func (m multiArchiver) Archive(ctx context.Context, rec *domain.AnalysisRecord) error {
	var firstErr error
	for _, a := range m {
		if err := a.Archive(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func combineArchivers(archivers []out.RecordArchiver) out.RecordArchiver {
	switch len(archivers) {
	case 0:
		return nil
	case 1:
		return archivers[0]
	default:
		return multiArchiver(archivers)
	}
}
