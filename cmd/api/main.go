package main

import (
	"context"
	"log"
	"time"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/config"
	"plantain-trace/internal/core/identity"
	"plantain-trace/internal/core/logger"
	"plantain-trace/internal/core/mirror"
	"plantain-trace/internal/core/server"
	"plantain-trace/internal/core/storage"
	orderadapter "plantain-trace/internal/features/orders/adapters"
	orderhandler "plantain-trace/internal/features/orders/handler"
	orderservice "plantain-trace/internal/features/orders/service"
	traceadapter "plantain-trace/internal/features/traceability/adapters"
	tracehandler "plantain-trace/internal/features/traceability/handler"
	traceservice "plantain-trace/internal/features/traceability/service"
	verifadapter "plantain-trace/internal/features/verification/adapters"
	verifhandler "plantain-trace/internal/features/verification/handler"
	verifservice "plantain-trace/internal/features/verification/service"

	"go.uber.org/zap"
)

// @title Plantain Trace API
// @version 1.0
// @description Supply-chain traceability, orders and verification for plantain batches.
// @contact.name API Support
// @contact.email support@plantaintrace.com
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Initialize storage and run health check
	kv, err := storage.NewRedisAdapter(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer kv.Close()

	if err := kv.Ping(context.Background()); err != nil {
		l.Fatal("Redis health check failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	// Initialize the blockchain mirror. Without a relay URL the mirror is
	// disabled and local writes proceed unmirrored.
	var mirrorAdapter mirror.Mirror
	if cfg.Mirror.RelayURL != "" {
		mirrorAdapter = mirror.NewRelayAdapter(cfg.Mirror.RelayURL, time.Duration(cfg.Mirror.TimeoutSeconds)*time.Second)
		l.Info("Mirror relay enabled", zap.String("relay_url", cfg.Mirror.RelayURL))
	} else {
		mirrorAdapter = mirror.NewNoopAdapter()
		l.Info("Mirror relay disabled")
	}

	dispatcher := mirror.NewDispatcher(mirrorAdapter, mirror.DispatcherOptions{
		QueueSize:  cfg.Mirror.QueueSize,
		MaxRetries: cfg.Mirror.MaxRetries,
		Timeout:    time.Duration(cfg.Mirror.TimeoutSeconds) * time.Second,
	})
	dispatcher.Start()
	defer dispatcher.Close()

	policy := authz.NewPolicy()

	// Initialize Traceability Service & Handler
	traceStore := traceadapter.NewRedisEventStore(kv)
	traceService := traceservice.NewLedgerService(traceStore, policy, dispatcher)
	traceHandler := tracehandler.NewTraceHandler(traceService)

	// Initialize Order Service & Handler
	orderStore := orderadapter.NewRedisOrderStore(kv)
	orderService := orderservice.NewOrderService(orderStore, policy, dispatcher)
	orderHandler := orderhandler.NewOrderHandler(orderService)

	// Initialize Verification Service & Handler
	profileStore := verifadapter.NewRedisProfileStore(kv)
	verificationService := verifservice.NewVerificationService(profileStore)
	verificationHandler := verifhandler.NewVerificationHandler(verificationService)

	srv := server.New(cfg)
	srv.App.Use(identity.Middleware())

	// Register Routes
	srv.App.Post("/batches/:batchID/events", traceHandler.AppendEvent)
	srv.App.Get("/batches/:batchID/events", traceHandler.GetBatchEvents)
	srv.App.Get("/batches/:batchID/summary", traceHandler.GetBatchSummary)
	srv.App.Post("/events/:eventID/verify", traceHandler.VerifyEvent)

	srv.App.Post("/orders", orderHandler.CreateOrder)
	srv.App.Get("/orders", orderHandler.ListOrders)
	srv.App.Get("/orders/:id", orderHandler.GetOrder)
	srv.App.Post("/orders/:id/transition", orderHandler.Transition)
	srv.App.Post("/orders/:id/delivery/advance", orderHandler.AdvanceDelivery)
	srv.App.Post("/orders/:id/delivery/confirm", orderHandler.ConfirmDelivery)
	srv.App.Post("/payments/callback", orderHandler.PaymentCallback)

	srv.App.Post("/verification/documents", verificationHandler.SubmitDocument)
	srv.App.Get("/verification/profile", verificationHandler.GetProfile)
	srv.App.Post("/verification/:userID/approve", verificationHandler.ApproveVerification)
	srv.App.Post("/verification/:userID/reject", verificationHandler.RejectVerification)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
