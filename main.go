package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"dating-app-server/internal/chat"
	"dating-app-server/internal/config"
	"dating-app-server/internal/models"
	"dating-app-server/internal/notify"
	"dating-app-server/internal/routes"
	"dating-app-server/internal/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	// Notification hand-off: Redis-backed queue when configured, log-only
	// fallback otherwise. Either way the send path never depends on it.
	var bridge chat.NotificationBridge = notify.LogBridge{}
	if cfg.RedisURL != "" {
		queue, err := notify.NewQueueBridge(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Error connecting to notification queue: %v", err)
		}
		defer queue.Close()
		bridge = queue
	}

	// Messaging core: the delivery router is an explicit instance with an
	// explicit shutdown, passed to everything that emits.
	deliveryRouter := chat.NewDeliveryRouter()
	defer deliveryRouter.Close()

	store := chat.NewConversationStore(db)
	ledger := chat.NewMessageLedger(db, chat.NewModerationGate())
	presence := chat.NewPresenceTracker(db, deliveryRouter, store)
	core := chat.NewCore(store, ledger, presence, deliveryRouter, bridge)

	verifier := chat.NewDBVerifier(db, utils.ClaimsParser(cfg.JWTSecret))
	gateway := chat.NewConnectionGateway(db, verifier, core, presence, deliveryRouter)

	// Initialize Gin router
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, db, core, gateway, verifier)

	// Close live sockets cleanly on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		deliveryRouter.Close()
		os.Exit(0)
	}()

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	fmt.Printf("Server running on port %s\n", cfg.Port)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
