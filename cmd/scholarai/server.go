package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/chunker"
	"github.com/xxxsen/scholarai/internal/config"
	"github.com/xxxsen/scholarai/internal/db"
	"github.com/xxxsen/scholarai/internal/embedcache"
	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/filestore"
	"github.com/xxxsen/scholarai/internal/handler"
	"github.com/xxxsen/scholarai/internal/job"
	"github.com/xxxsen/scholarai/internal/middleware"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/pkg/jwt"
	"github.com/xxxsen/scholarai/internal/repo"
	"github.com/xxxsen/scholarai/internal/retry"
	"github.com/xxxsen/scholarai/internal/schedule"
	"github.com/xxxsen/scholarai/internal/semcache"
	"github.com/xxxsen/scholarai/internal/service"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

type models struct {
	chat      ai.IChatModel
	embedder  ai.IEmbedder
	describer ai.IDescriber
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := logutil.GetLogger(ctx)
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", cfg.VectorIndex.Type),
		zap.String("semantic_cache", cfg.SemanticCache.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := repo.NewMetadataStore(conn)
	docRepo := repo.NewDocumentRepo(store)
	answerRepo := repo.NewAnswerRepo(store)
	imageRepo := repo.NewImageRepo(store)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(conn)

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	m, err := buildModels(cfg, embedCacheRepo)
	if err != nil {
		return err
	}
	if err := ai.VerifyDimension(ctx, m.embedder, cfg.VectorIndex.Dimension); err != nil {
		return err
	}

	index, err := vectorindex.New(cfg.VectorIndex.Type, cfg.VectorIndex.Data, vectorindex.WithDB(conn))
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}
	defer index.Close()
	metric, err := vectorindex.ParseMetric(cfg.VectorIndex.Metric)
	if err != nil {
		return err
	}
	mode, err := vectorindex.ParseMode(cfg.VectorIndex.Mode)
	if err != nil {
		return err
	}
	if err := index.CreateCollection(ctx, cfg.VectorIndex.Collection, cfg.VectorIndex.Dimension, metric); err != nil {
		return fmt.Errorf("create collection %s: %w", cfg.VectorIndex.Collection, err)
	}

	cache, semRepo, err := buildSemanticCache(cfg, conn, m.embedder)
	if err != nil {
		return err
	}

	executor := retry.New(retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	})
	chunks, err := chunker.New(chunker.Options{
		ChunkSize: cfg.Ingest.ChunkSize,
		Overlap:   *cfg.Ingest.ChunkOverlap,
		MinSize:   cfg.Ingest.MinChunkSize,
	})
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}

	ingestService := service.NewIngestService(service.IngestDeps{
		Extractors: map[model.SourceKind]extract.TextExtractor{
			model.SourceKindPDF:   extract.NewPDF(),
			model.SourceKindImage: extract.NewImage(m.describer,
				extract.WithMaxImageSize(cfg.Ingest.MaxUploadSize),
				extract.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.AI.Timeout) * time.Second})),
			model.SourceKindVideo: extract.NewVideo(m.describer),
		},
		Chunker:   chunks,
		Embedder:  m.embedder,
		Index:     index,
		Documents: docRepo,
		Images:    imageRepo,
		Files:     files,
		Retry:     executor,
	}, service.IngestConfig{
		Collection:       cfg.VectorIndex.Collection,
		EmbedConcurrency: cfg.Ingest.EmbedConcurrency,
	})
	qaService := service.NewQAService(service.QADeps{
		Documents: docRepo,
		Answers:   answerRepo,
		Index:     index,
		Cache:     cache,
		Embedder:  m.embedder,
		Chat:      m.chat,
		Retry:     executor,
	}, service.QAConfig{
		TopK:   cfg.VectorIndex.TopK,
		Mode:   mode,
		Lambda: cfg.VectorIndex.MMRLambda,
	})
	documentService := service.NewDocumentService(service.DocumentDeps{
		Documents: docRepo,
		Answers:   answerRepo,
		Images:    imageRepo,
		Index:     index,
		Cache:     cache,
		Files:     files,
		Retry:     executor,
	})

	deps := handler.RouterDeps{
		Documents:          handler.NewDocumentHandler(ingestService, qaService, documentService, cfg.Ingest.MaxUploadSize),
		Images:             handler.NewImageHandler(ingestService, qaService, cfg.Ingest.MaxUploadSize),
		Videos:             handler.NewVideoHandler(ingestService, qaService, cfg.Ingest.MaxVideoUploadSize),
		Identity:           jwt.NewProvider([]byte(cfg.JWTSecret)),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := registerJobs(scheduler, cfg, embedCacheRepo, semRepo); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logger.Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}

func buildModels(cfg *config.Config, cacheStore embedcache.Store) (*models, error) {
	timeout := time.Duration(cfg.AI.Timeout) * time.Second

	entries := make([]ai.ChatModelEntry, 0, len(cfg.AI.Chat))
	for _, item := range cfg.AI.Chat {
		p, err := ai.NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init chat provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.ChatModelEntry{
			Name:  item.Provider + "/" + item.Model,
			Model: ai.NewChatModel(p, item.Model, timeout),
		})
	}

	ep, err := ai.NewEmbedProvider(cfg.AI.Embed.Provider, cfg.AI.Embed.Data)
	if err != nil {
		return nil, fmt.Errorf("init embed provider %s: %w", cfg.AI.Embed.Provider, err)
	}
	opts := embedcache.Options{
		LRUSize: cfg.AI.EmbedCache.LRUSize,
		LRUTTL:  time.Duration(cfg.AI.EmbedCache.LRUTTLSeconds) * time.Second,
	}
	if cfg.AI.EmbedCache.DB {
		opts.Store = cacheStore
	}

	out := &models{
		chat:     ai.NewGroupChatModel(entries),
		embedder: embedcache.Wrap(ai.NewEmbedder(ep, cfg.AI.Embed.Model), opts),
	}
	if strings.TrimSpace(cfg.AI.Vision.Provider) != "" {
		vp, err := ai.NewProvider(cfg.AI.Vision.Provider, cfg.AI.Vision.Data)
		if err != nil {
			return nil, fmt.Errorf("init vision provider %s: %w", cfg.AI.Vision.Provider, err)
		}
		out.describer = ai.NewDescriber(vp, cfg.AI.Vision.Model, timeout)
	}
	return out, nil
}

// buildSemanticCache also returns the postgres repo when that backend is
// selected so its expiry job can be scheduled.
func buildSemanticCache(cfg *config.Config, conn *sql.DB, embedder ai.IEmbedder) (semcache.Cache, *repo.SemanticCacheRepo, error) {
	ttl := time.Duration(cfg.SemanticCache.TTLSeconds) * time.Second
	var (
		backend semcache.Backend
		semRepo *repo.SemanticCacheRepo
	)
	switch cfg.SemanticCache.Type {
	case "none":
		return semcache.NewNop(), nil, nil
	case "pgvector":
		semRepo = repo.NewSemanticCacheRepo(conn, ttl)
		backend = semRepo
	default:
		backend = semcache.NewMemoryBackend(cfg.SemanticCache.MaxEntries, ttl)
	}
	cache, err := semcache.New(embedder, backend, semcache.Config{Threshold: *cfg.SemanticCache.Threshold})
	if err != nil {
		return nil, nil, fmt.Errorf("init semantic cache: %w", err)
	}
	return cache, semRepo, nil
}

func registerJobs(s schedule.Scheduler, cfg *config.Config, embedCacheRepo *repo.EmbeddingCacheRepo, semRepo *repo.SemanticCacheRepo) error {
	spec := cfg.Jobs.CacheCleanup
	if cfg.AI.EmbedCache.DB {
		if err := s.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Jobs.EmbedCacheMaxAgeDays), spec); err != nil {
			return err
		}
	}
	if semRepo != nil {
		ttl := time.Duration(cfg.SemanticCache.TTLSeconds) * time.Second
		if err := s.AddJob(job.NewSemanticCacheCleanupJob(semRepo, ttl), spec); err != nil {
			return err
		}
	}
	return nil
}
