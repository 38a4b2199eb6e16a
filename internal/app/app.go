package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cesuygun/chatbot-platform/internal/config"
	"github.com/cesuygun/chatbot-platform/internal/core"
	db "github.com/cesuygun/chatbot-platform/internal/core/database"
	"github.com/cesuygun/chatbot-platform/internal/core/ingestion_engine"
	"github.com/cesuygun/chatbot-platform/internal/core/llm"
	objectclient "github.com/cesuygun/chatbot-platform/internal/core/object-client"
)

type App struct {
	Store    core.KnowledgeStore
	Objects  core.ObjectClient
	Ingestor ingestion_engine.Ingestor
	Server   *Server

	log zerolog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewKnowledgeStore(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	log.Info().Msg("database initialized and ready")

	// Object storage archives originals; the platform runs without it.
	var objects core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		objects = s3Client
	} else {
		log.Warn().Msg("AWS credentials not set, original uploads will not be archived")
	}

	embedder, err := newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	extractor := ingestion_engine.NewDocumentExtractor()

	pipeline := ingestion_engine.NewPipeline(store, embedder, extractor, &ingestion_engine.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		CallTimeout:  cfg.CallTimeout,
	}, log)

	server := NewServer(cfg, store, objects, pipeline, log)

	return &App{
		Store:    store,
		Objects:  objects,
		Ingestor: pipeline,
		Server:   server,
		log:      log,
	}, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "gemini":
		return llm.NewGeminiEmbedder(ctx, cfg.GeminiKey, cfg.EmbedModel, cfg.EmbedDim)
	case "openai", "":
		return llm.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.EmbedModel, cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
