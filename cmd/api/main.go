package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"delivering/internal/config"
	"delivering/internal/database"
	"delivering/internal/handlers"
	"delivering/internal/middleware"
	"delivering/internal/models"
	"delivering/internal/repository"
	"delivering/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.InitDB(cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Presence, realtime hub and cross-instance bridge
	presence := services.NewPresenceRegistry(redisClient)
	hub := services.NewHub()
	go hub.Run()

	bridge := services.NewBridge(redisClient, hub)
	go bridge.Run(ctx)

	// Push gateway
	push, err := services.NewFirebasePush(ctx, cfg.FirebaseServiceAccountPath, presence)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Notification pipeline
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid Redis URL for task queue: %v", err)
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	retryQueue := services.NewRetryQueue(asynqClient, cfg.RetryMaxAttempts, cfg.RetryBaseDelay)
	bus := services.NewRedisBus(redisClient)
	notifier := services.NewNotifier(notificationRepo, presence, hub, push, retryQueue, bus)

	retryWorker := services.NewRetryWorker(redisOpt, cfg.RetryBaseDelay, notifier)
	if err := retryWorker.Start(); err != nil {
		log.Fatalf("Failed to start retry worker: %v", err)
	}
	defer retryWorker.Shutdown()

	// Domain services
	matcher := services.NewDriverMatcher(driverRepo, cfg.MatchLimit, cfg.MatchMaxRadiusMeters)
	lifecycle := services.NewOrderLifecycle(orderRepo, driverRepo, matcher, notifier, services.DispatchPolicy{
		FallbackDelay:  cfg.DispatchFallbackDelay,
		RequeueEvery:   cfg.DispatchRequeueEvery,
		RequeueMaxRuns: cfg.DispatchRequeueMaxRuns,
	})
	coordinator := services.NewAcceptanceCoordinator(orderRepo, driverRepo, notifier)

	stripeProvider := services.NewStripeProvider(cfg.StripeAPIKey)
	paymentService := services.NewPaymentService(paymentRepo, lifecycle, stripeProvider, notifier)

	// Router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.Health(hub))

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(userRepo, cfg.JWTSecret))
			auth.POST("/login", handlers.Login(userRepo, cfg.JWTSecret))
			auth.POST("/register-driver", handlers.RegisterDriver(driverRepo))
		}

		api.GET("/ws", middleware.AuthMiddleware(cfg.JWTSecret), handlers.ServeWS(hub, presence))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		{
			orders := protected.Group("/orders")
			{
				orders.POST("", handlers.CreateOrder(lifecycle))
				orders.GET("", handlers.ListOrders(lifecycle))
				orders.GET("/mine", handlers.ListMyOrders(lifecycle))
				orders.GET("/pending", handlers.ListPendingOrders(lifecycle))
				orders.GET("/:id", handlers.GetOrder(lifecycle))
				orders.PATCH("/:id/status", handlers.UpdateOrderStatus(lifecycle))
				orders.POST("/:id/accept", middleware.RequireRole(models.RoleDriver), handlers.AcceptOrder(coordinator, driverRepo))
				orders.DELETE("/:id", handlers.DeleteOrder(lifecycle))
				orders.GET("/:id/payment", handlers.GetOrderPayment(paymentService))
			}

			drivers := protected.Group("/drivers")
			{
				drivers.GET("", handlers.ListDrivers(driverRepo))
				drivers.GET("/nearby", handlers.FindNearbyDrivers(matcher))
				drivers.GET("/:id", handlers.GetDriver(driverRepo))
				drivers.POST("/location", middleware.RequireRole(models.RoleDriver), handlers.UpdateDriverLocation(driverRepo))
				drivers.POST("/availability", middleware.RequireRole(models.RoleDriver), handlers.UpdateDriverAvailability(driverRepo))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.POST("", middleware.RequireRole(models.RoleAdmin), handlers.SendNotification(notifier))
				notifications.POST("/batch", middleware.RequireRole(models.RoleAdmin), handlers.SendBatchNotification(notifier))
				notifications.POST("/broadcast-drivers", middleware.RequireRole(models.RoleAdmin), handlers.BroadcastToDrivers(notifier))
				notifications.GET("", handlers.ListNotifications(notificationRepo))
				notifications.GET("/unread", handlers.ListUnreadNotifications(notificationRepo))
				notifications.PATCH("/:id/read", handlers.MarkNotificationRead(notificationRepo))
				notifications.POST("/fcm-token", handlers.RegisterFCMToken(presence, push))
				notifications.DELETE("/fcm-token", handlers.RemoveFCMToken(presence))
			}

			protected.GET("/users/:id/presence", middleware.RequireRole(models.RoleAdmin), handlers.GetUserPresence(presence))

			payments := protected.Group("/payments")
			{
				payments.POST("", handlers.CreatePayment(paymentService))
				payments.POST("/:id/authorize", handlers.AuthorizePayment(paymentService))
				payments.POST("/:id/capture", handlers.CapturePayment(paymentService))
				payments.POST("/:id/refund", handlers.RefundPayment(paymentService))
			}
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
