package bootstrap

import (
	"context"
	"log"

	"chat-handoff-be/internal/config"
	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/controller"
	"chat-handoff-be/internal/handler"
	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/internal/pkg/mailer"
	"chat-handoff-be/internal/repository/implementation"
	"chat-handoff-be/internal/service"
	"chat-handoff-be/internal/websocket"
	"chat-handoff-be/pkg/dedup"
	"chat-handoff-be/pkg/events"
	"chat-handoff-be/pkg/llm/factory"

	pktNats "chat-handoff-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController    controller.IAuthController
	HandoffController controller.IHandoffController

	// Background Services (Exposed for main.go to run)
	NotifierService service.INotifierService
	AlertService    service.IAlertService
	Reclaimer       *handoff.Reclaimer

	// WebSockets
	WsHandler    *handler.WsHandler
	WebSocketHub *websocket.Hub

	// Core, exposed for shutdown
	Orchestrator *handoff.Orchestrator
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	emitter := events.NewChannelEmitter(pubSub, constant.HandoffEventsTopic)

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HuggingFaceAPIKey,
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
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
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

	// 3. Repositories and Services
	messageRepo := implementation.NewMessageRepository(db)
	operatorRepo := implementation.NewOperatorRepository(db)

	authService := service.NewAuthService(operatorRepo, cfg.App.JwtSecret)
	messageService := service.NewMessageService(messageRepo)
	replyService := service.NewReplyService(llmProvider, messageRepo, cfg.Ai.LLMModel, sysLogger)
	deliveryService := service.NewDeliveryService(cfg.Channel.PushURL, cfg.Channel.DefaultCredential, sysLogger)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, authService, wsLogger)

	// 4. Orchestrator Core
	runtimeCfg := handoff.NewRuntimeConfig(cfg.Orchestrator)
	tracker := handoff.NewTracker(runtimeCfg, wsHub, emitter, sysLogger)
	ledger := handoff.NewLedger(runtimeCfg, tracker, emitter, sysLogger)
	reviews := handoff.NewWorkflow(runtimeCfg, deliveryService, messageService, emitter, sysLogger)
	group := dedup.New(cfg.Orchestrator.DedupCacheTTL)

	orchestrator := handoff.NewOrchestrator(
		runtimeCfg,
		tracker,
		ledger,
		reviews,
		group,
		replyService,
		messageService,
		emitter,
		sysLogger,
	)

	wsHub.SetPresence(orchestrator)
	orchestrator.SetConnectionCloser(wsHub)
	go wsHub.Run()

	reclaimer := handoff.NewReclaimer(runtimeCfg, tracker, ledger, reviews, sysLogger)

	// 5. Event Plumbing
	notifierService := service.NewNotifierService(pubSub, constant.HandoffEventsTopic, wsHub, natsPub, sysLogger)
	alertService := service.NewAlertService(natsSub, emailService, cfg.SMTP.AlertEmail, sysLogger)

	wsHandler := handler.NewWsHandler(wsHub, wsLogger)

	return &Container{
		AuthController:    controller.NewAuthController(authService),
		HandoffController: controller.NewHandoffController(orchestrator, messageService),

		NotifierService: notifierService,
		AlertService:    alertService,
		Reclaimer:       reclaimer,

		WsHandler:    wsHandler,
		WebSocketHub: wsHub,

		Orchestrator: orchestrator,
	}
}
