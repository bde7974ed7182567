package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"channah-support-chat/internal/api"
	"channah-support-chat/internal/api/endpoints"
	"channah-support-chat/internal/api/router"
	"channah-support-chat/internal/config"
	"channah-support-chat/internal/database"
	internaljwt "channah-support-chat/internal/jwt"
	"channah-support-chat/internal/queue"
	authservice "channah-support-chat/internal/service/auth"
	conversationservice "channah-support-chat/internal/service/conversation"
	"channah-support-chat/internal/websocket"
	"channah-support-chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const apiPrefix = "/api/v1"

func main() {
	cfg := config.LoadServer()

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Sync()
	logger.SetGlobal(lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Server, lg *logger.Logger) error {
	internaljwt.Configure(cfg.UserSecret, cfg.TokenTTL)

	checks := map[string]func(context.Context) error{}

	authSvc, convSvc, err := newServices(ctx, cfg, lg, checks)
	if err != nil {
		return err
	}

	broker, err := newBroker(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer broker.Close()
	checks["broker"] = broker.Ping

	g, ctx := errgroup.WithContext(ctx)

	hub := websocket.NewHub(broker, lg)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	server := api.NewAPIServer(api.Options{
		ListenAddr:        cfg.ListenAddr,
		Queue:             queue.NewRequestQueueManager(cfg.QueueSize, cfg.QueueWorkers, lg),
		Auth:              authSvc,
		Conversations:     convSvc,
		Websocket:         websocket.NewHandler(ctx, hub, endpoints.ConversationAuthorizer(authSvc, convSvc), lg),
		Publisher:         websocket.NewPublisher(hub, lg),
		Logger:            lg,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		HealthChecks:      checks,
	}, router.All(apiPrefix)...)

	g.Go(func() error {
		return server.Run(ctx)
	})

	lg.Info("chat server started",
		zap.String("addr", cfg.ListenAddr),
		zap.String("storage", cfg.Storage),
		zap.String("broker", cfg.Broker),
	)
	return g.Wait()
}

func newServices(ctx context.Context, cfg config.Server, lg *logger.Logger, checks map[string]func(context.Context) error) (*authservice.Service, *conversationservice.Service, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		lg.Warn("using in-memory storage, data is lost on restart")
		users := authservice.NewMemoryRepository()
		return authservice.NewWithRepository(users, nil),
			conversationservice.NewWithRepository(conversationservice.NewMemoryRepository(users), nil),
			nil
	case config.StorageDynamo:
		db, err := database.NewDatabase(ctx, database.Config{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.DynamoDBEndpoint,
			AccessKey:    cfg.AWSID,
			SecretKey:    cfg.AWSSecret,
			SessionToken: cfg.AWSToken,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("db init failed: %w", err)
		}
		if cfg.EnsureTables {
			created, err := db.EnsureTables(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("ensure tables: %w", err)
			}
			if len(created) > 0 {
				lg.Info("created tables", zap.Strings("tables", created))
			}
		}
		checks["dynamodb"] = db.Ping
		return authservice.New(db), conversationservice.New(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func newBroker(ctx context.Context, cfg config.Server, lg *logger.Logger) (websocket.Broker, error) {
	switch cfg.Broker {
	case config.BrokerLocal:
		return websocket.NewLocalBroker(), nil
	case config.BrokerRedis:
		b := websocket.NewRedisBroker(cfg.RedisURL, cfg.RedisPass, lg)
		if err := b.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisURL, err)
		}
		return b, nil
	case config.BrokerNATS:
		return websocket.NewNATSBroker(cfg.NATSURL, cfg.NATSToken, lg)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}
