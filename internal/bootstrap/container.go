package bootstrap

import (
	"context"
	"log"
	"time"

	"plant-assistant-be/internal/config"
	"plant-assistant-be/internal/controller"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/repository/memory"
	"plant-assistant-be/internal/repository/unitofwork"
	"plant-assistant-be/internal/service"
	"plant-assistant-be/internal/websocket"
	"plant-assistant-be/pkg/assistant/analyzer"
	"plant-assistant-be/pkg/assistant/generator"
	assistantMemory "plant-assistant-be/pkg/assistant/memory"
	"plant-assistant-be/pkg/assistant/retrieval"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/assistant/workflow"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/knowledge"
	"plant-assistant-be/pkg/llm/factory"
	pktNats "plant-assistant-be/pkg/nats"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const profileCacheTTL = 10 * time.Minute

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	ProfileController   controller.IProfileController
	KnowledgeController controller.IKnowledgeController

	// Background Services (Exposed for main.go to run)
	ReconcilerService service.IReconcilerService
	WebSocketHub      *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	reconcileLogger := logger.NewIsolatedLogger("logs/reconcile.log")

	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.HuggingFace,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS is optional; without it events are dropped and reconcile replays are not scheduled
	var publisher assistantMemory.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		publisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, reconcileLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	guard := newSessionGuard(cfg, c)
	vectors := newVectorStore(cfg, uowFactory)

	// 5. Assistant
	profileCache := memory.NewProfileCache(profileCacheTTL)
	store := service.NewConversationStore(uowFactory)
	reembedQueue := service.NewReembedQueue(pubSub, cfg.App.ReembedTopic)
	knowledgeBase := knowledge.NewBase(embeddingProvider, vectors, sysLogger)

	registry := tool.NewRegistry().MustRegister(tool.Builtins(llmProvider, knowledgeBase)...)

	updater := assistantMemory.NewUpdater(assistantMemory.Deps{
		Store:     store,
		Guard:     guard,
		Embedder:  embeddingProvider,
		Vectors:   vectors,
		Snapshots: profileCache,
		Publisher: publisher,
		Reembed:   reembedQueue,
		Logger:    sysLogger,
	})

	orchestrator := workflow.New(
		analyzer.New(llmProvider, registry, sysLogger),
		tool.NewDispatcher(registry, cfg.Assistant.ToolTimeout, cfg.Assistant.ToolMaxParallel, sysLogger),
		retrieval.New(store, store, profileCache, embeddingProvider, vectors,
			cfg.Assistant.WindowSize, cfg.Assistant.TopK, sysLogger),
		generator.New(llmProvider, sysLogger),
		updater,
		workflow.Config{
			MaxNodeVisits: cfg.Assistant.MaxNodeVisits,
			Deadline:      cfg.Assistant.Deadline,
			MemoryTimeout: cfg.Assistant.MemoryTimeout,
		},
		sysLogger,
	)

	// 6. Services
	chatService := service.NewChatService(uowFactory, orchestrator, sysLogger)
	sessionService := service.NewSessionService(uowFactory)
	feedbackService := service.NewFeedbackService(uowFactory, publisher, sysLogger)
	profileService := service.NewProfileService(store, profileCache)
	analyticsService := service.NewAnalyticsService(uowFactory, store)
	knowledgeService := service.NewKnowledgeService(knowledgeBase)

	c.ReconcilerService = service.NewReconcilerService(
		pubSub,
		cfg.App.ReembedTopic,
		reembedQueue,
		updater,
		store,
		natsSub,
		reconcileLogger,
	)

	// WebSocket Hub
	c.WebSocketHub = websocket.NewHub(sysLogger)

	// 7. Controllers
	c.ChatController = controller.NewChatController(chatService, sessionService, feedbackService, analyticsService, c.WebSocketHub, sysLogger)
	c.ProfileController = controller.NewProfileController(profileService)
	c.KnowledgeController = controller.NewKnowledgeController(knowledgeService)

	return c
}

// Close releases broker and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func newSessionGuard(cfg *config.Config, c *Container) assistantMemory.Guard {
	if cfg.Assistant.SessionGuard != "redis" {
		return assistantMemory.NewLocalGuard()
	}

	rdb, err := assistantMemory.NewRedisClient(cfg.App.RedisURL)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err = rdb.Ping(ctx).Err()
	}
	if err != nil {
		log.Printf("[WARN] Redis unavailable (%v), falling back to the in-process session guard", err)
		return assistantMemory.NewLocalGuard()
	}

	c.closers = append(c.closers, func() { _ = rdb.Close() })
	log.Printf("[INFO] Using Redis session guard")
	return assistantMemory.NewRedisGuard(rdb, 0)
}

func newVectorStore(cfg *config.Config, uowFactory unitofwork.RepositoryFactory) vectorstore.Catalog {
	if cfg.Assistant.VectorStore == "chromem" {
		store, err := vectorstore.NewChromemStore(cfg.Assistant.ChromemDir)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open chromem store: %v", err)
		}
		log.Printf("[INFO] Using Vector Store: CHROMEM")
		return store
	}
	log.Printf("[INFO] Using Vector Store: PGVECTOR")
	return vectorstore.NewRepositoryStore(uowFactory)
}
