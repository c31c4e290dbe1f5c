package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "realtime_chat_service/cmd/chat_service/docs" // 引入 Swagger 文件
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	testtool "realtime_chat_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	cfg.SetDefaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}

	ctx := context.Background()
	testtool.StartPprof()

	// 1. Redis (presence / pub-sub / 使用者快取)
	var redisClient *redis.Client
	if cfg.Realtime.Fanout == config.FanoutRedis {
		var err error
		redisClient, err = connectRedis(cfg.Redis)
		if err != nil {
			logger.Log.Fatal("connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// 2. Repository
	var (
		convRepo repository.ConversationRepository
		msgRepo  repository.MessageRepository
		userRepo repository.UserRepository
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Log.Warn("memory storage, data is lost on restart")
		convRepo = repository.NewMemoryConversationRepository()
		msgRepo = repository.NewMemoryMessageRepository()
		userRepo = repository.NewMemoryUserRepository()
	default:
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongo, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal("Unable to connect to mongoDB database after retries",
				zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
				zap.Error(err))
		}
		defer mongo.Close(context.Background())

		if err := repository.EnsureIndexes(ctx, mongo.Database); err != nil {
			logger.Log.Fatal("ensure mongo indexes", zap.Error(err))
		}
		convRepo = repository.NewMongoConversationRepository(mongo.Database)
		msgRepo = repository.NewMongoMessageRepository(mongo.Database)
		userRepo = repository.NewMongoUserRepository(mongo.Database)
		if redisClient != nil {
			userRepo = repository.NewCachedUserRepository(userRepo, database.NewRedisRepository[domain.User](redisClient))
		}
	}

	// 3. Kafka lifecycle events (選用)
	var events repository.EventPublisher = repository.NopEventPublisher{}
	if cfg.Kafka.Enabled {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("connect kafka", zap.Error(err))
		}
		defer writer.Close()
		events = repository.NewKafkaEventPublisher(writer)
	}

	// 4. MinIO attachments (選用)
	var presigner app.Presigner
	if cfg.MinIO.Enabled {
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      cfg.MinIO.Endpoint,
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("connect minio", zap.Error(err))
		}
		presigner = mc
	}

	// 5. Registry / notifier
	var (
		presence repository.PresenceStore
		pubsub   repository.PubSub
	)
	if redisClient != nil {
		presence = repository.NewRedisPresence(redisClient, cfg.Realtime.PresenceTTL)
		pubsub = repository.NewRedisPubSub(redisClient)
	}
	registry := app.NewRegistry(presence)
	var notifier app.Notifier = registry
	if pubsub != nil {
		notifier = app.NewPubSubNotifier(pubsub)
	}

	// 6. UseCases
	messageUC := app.NewMessageUseCase(convRepo, msgRepo, registry, notifier, events)
	conversationUC := app.NewConversationUseCase(convRepo, msgRepo, userRepo, registry)
	attachmentUC := app.NewAttachmentUseCase(presigner, cfg.MinIO.URLExpiry)
	typing := app.NewTypingRelay(convRepo, registry, notifier, cfg.Realtime.ClearTypingOnDisconnect)

	registry.AddListener(app.NewPresencePublisher(convRepo, registry, notifier))
	registry.AddListener(typing)

	// 7. Fiber
	r := fiber.New(fiber.Config{AppName: config.EnvConfig.ChatService})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))
	r.Use(cors.New())

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(registry, messageUC, conversationUC, typing, pubsub, cfg.Realtime),
		app.NewChatHTTPHandler(messageUC, conversationUC, attachmentUC),
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Log.Info("Chat Service listening", zap.String("port", cfg.Port),
		zap.String("storage", cfg.Storage), zap.String("fanout", cfg.Realtime.Fanout))
	if err := r.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

// connectRedis sentinel when REDIS_SENTINEL*_IP is set, otherwise redis.addr
func connectRedis(c config.RedisConfig) (*redis.Client, error) {
	masterName, sentinels := config.GetRedisSetting()
	if len(sentinels) > 0 {
		return database.NewRedisClient(masterName, sentinels, c.RedisDB)
	}
	if c.Addr == "" {
		return nil, errprocess.Set("redis fanout needs sentinels or redis.addr")
	}
	return database.NewRedisStandalone(c.Addr, c.RedisDB)
}
