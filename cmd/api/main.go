package main

import (
	"log"

	"concierge-chat/config"
	"concierge-chat/internal/ai"
	"concierge-chat/internal/auth"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/events"
	"concierge-chat/internal/handler"
	"concierge-chat/internal/ratelimit"
	"concierge-chat/internal/redis"
	"concierge-chat/internal/repository"
	"concierge-chat/internal/server"
	"concierge-chat/internal/services"
	"concierge-chat/pkg/database"
	"concierge-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.Message{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	// Cross-instance fan-out needs redis; a single instance runs fine on the
	// local bus.
	var bus events.EventBus
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		l.Warnf("redis unavailable, using local event bus: %s", err)
		bus = events.NewLocalEventBus()
	} else {
		redisBus := events.NewRedisEventBus(redisClient)
		if err := redisBus.Start(); err != nil {
			log.Fatalf("Failed to start event bus: %v", err)
		}
		defer redisBus.Stop()
		bus = redisBus
	}

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	responder := ai.NewClient(cfg, l)
	chatService := services.NewChatService(conversationRepo, messageRepo, responder, bus, l)
	chatService.Start()
	defer chatService.Stop()

	limiter := ratelimit.NewCooldownLimiter(ratelimit.DefaultCooldown)
	defer limiter.Stop()

	verifier := auth.NewVerifier(cfg)

	hub := server.NewHub(bus, chatService, limiter)
	go hub.Run()
	defer hub.Stop()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(chatService),
		Message:      handler.NewMessageHandler(chatService),
		WebSocket:    server.NewWebSocketHandler(hub, verifier),
	}, verifier, db)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
