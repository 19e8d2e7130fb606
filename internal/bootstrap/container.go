package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"writeup-rag-be/internal/config"
	"writeup-rag-be/internal/controller"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/implementation"
	"writeup-rag-be/internal/repository/unitofwork"
	"writeup-rag-be/internal/service"
	"writeup-rag-be/pkg/chunker"
	"writeup-rag-be/pkg/cleaner"
	"writeup-rag-be/pkg/ctftime"
	"writeup-rag-be/pkg/embedding"
	"writeup-rag-be/pkg/enrich"
	"writeup-rag-be/pkg/fetcher"
	"writeup-rag-be/pkg/llm/factory"
	"writeup-rag-be/pkg/rag/contextbuilder"
	"writeup-rag-be/pkg/rag/resolver"

	pktNats "writeup-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AskController      controller.IAskController
	PipelineController controller.IPipelineController

	// Background Services (Exposed for main.go to run)
	PipelineService service.IPipelineService
	IndexerService  service.IIndexerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	var indexEvents service.EventPublisher
	if natsPub != nil {
		indexEvents = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 4. Pipeline components
	chk, err := chunker.New(cfg.Index.ChunkTargetTokens, cfg.Index.ChunkOverlapRatio)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize chunker: %v", err)
	}
	cln := cleaner.New(cfg.Pipeline.QualityMinRunes)
	contentFetcher := fetcher.New(
		time.Duration(cfg.Pipeline.FetchTimeoutSec)*time.Second,
		cfg.Pipeline.FetchRatePerSec,
		cfg.Pipeline.MaxRetries,
	)

	// Discovery skips everything already stored or previously rejected.
	skip, err := ctftime.LoadSkipList(cfg.Pipeline.SkipListPath)
	if err != nil {
		log.Printf("[WARN] Failed to load skip list: %v", err)
		skip = make(map[string]bool)
	}
	writeupRepo := implementation.NewWriteupRepository(db)
	existing, err := writeupRepo.ExistingIds(context.Background())
	if err != nil {
		log.Printf("[WARN] Failed to load stored write-up ids: %v", err)
	}
	for _, id := range existing {
		skip[id] = true
	}
	discoverer := ctftime.NewDiscoverer(contentFetcher, ctftime.DefaultBaseURL, skip, cfg.Pipeline.MaxWriteups)

	enricher := enrich.New(llmProvider)

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.IndexJobs, pubSub)
	indexerService := service.NewIndexerService(
		pubSub,
		cfg.Keys.IndexJobs,
		uowFactory,
		embeddingProvider, // Injected
		chk,
		indexEvents,
		cfg.Index.EmbedBatchSize,
		cfg.Pipeline.MaxRetries,
		sysLogger,
	)
	// Runs get their own log file so a noisy ingestion does not drown the
	// request log.
	runLogger := logger.NewIsolatedLogger("logs/pipeline.log")
	pipelineService := service.NewPipelineService(
		uowFactory,
		discoverer,
		contentFetcher,
		cln,
		enricher,
		publisherService,
		natsPub,
		runLogger,
		cfg.Pipeline.WorkerCount,
		cfg.Pipeline.MaxRetries,
		cfg.Pipeline.DiscoveryMaxPages,
		cfg.Pipeline.RunsDir,
		cfg.Pipeline.SkipListPath,
	)

	rsv := resolver.New(writeupRepo, log.New(os.Stdout, "[resolver] ", log.LstdFlags))
	builder := contextbuilder.New(cfg.Ask.ContextBudget)
	askService := service.NewAskService(
		indexerService,
		embeddingProvider, // Injected
		llmProvider,       // Injected
		rsv,
		builder,
		rdb,
		cfg.Ask.TopK,
		time.Duration(cfg.Ask.AnswerCacheTTL)*time.Second,
		sysLogger,
	)

	// 6. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		AskController:      controller.NewAskController(askService),
		PipelineController: controller.NewPipelineController(pipelineService, indexerService),

		PipelineService: pipelineService,
		IndexerService:  indexerService,
	}
}
