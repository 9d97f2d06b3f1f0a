// Package main runs the composed-recording control server: session
// credentials, Experience Composer recording start/stop, recording retrieval,
// and the room event WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexmo-se/twilio-ec-recording/config"
	"github.com/nexmo-se/twilio-ec-recording/internal/callbacks"
	"github.com/nexmo-se/twilio-ec-recording/internal/composer"
	"github.com/nexmo-se/twilio-ec-recording/internal/middleware"
	"github.com/nexmo-se/twilio-ec-recording/internal/realtime"
	"github.com/nexmo-se/twilio-ec-recording/internal/recordings"
	"github.com/nexmo-se/twilio-ec-recording/internal/sessions"
	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
	"github.com/nexmo-se/twilio-ec-recording/pkg/redis"
	"github.com/nexmo-se/twilio-ec-recording/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Vonage.APIKey == "" || cfg.Vonage.APISecret == "" {
		logger.Fatal("VONAGE_API_KEY and VONAGE_API_SECRET are required")
	}

	ctx := context.Background()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	vonageClient := vonage.NewClient(cfg.Vonage, logger)
	twilioClient := recordings.NewTwilioClient(cfg.Twilio, logger)

	var hub *realtime.Hub
	var store *sessions.Store
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(cfg.Recording.ECRole, pubsub, pubsub, logger)
		store = sessions.NewStore(vonageClient, rdb.Client, logger)
	} else {
		hub = realtime.NewHub(cfg.Recording.ECRole, nil, nil, logger)
		store = sessions.NewStore(vonageClient, nil, logger)
	}

	sessionHandler := sessions.NewHandler(store, vonageClient, cfg.Vonage.APIKey, logger)
	composerSvc := composer.NewService(vonageClient, cfg.Recording, logger)
	composerHandler := composer.NewHandler(composerSvc, logger)
	recordingHandler := recordings.NewHandler(twilioClient, vonageClient, logger)
	callbackHandler := callbacks.NewHandler(hub, store, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Control API (passcode-gated when configured)
	api := router.Group("/api")
	api.Use(middleware.Passcode(cfg.Auth.Passcode))
	{
		api.POST("/credential", sessionHandler.Credential)
		api.POST("/recording/start", composerHandler.Start)
		api.POST("/recording/stop", composerHandler.Stop)
		api.GET("/recordings/:roomSid", recordingHandler.ListByRoom)
		api.GET("/archives/:archiveId", recordingHandler.GetArchive)
		api.GET("/rooms/:room/participants", func(c *gin.Context) {
			response.OK(c, gin.H{"participants": hub.Participants(c.Param("room"))})
		})
	}

	// Platform callbacks (signed by the platforms, not passcode-gated)
	router.POST("/callbacks/archive", callbackHandler.ArchiveStatus)
	router.POST("/callbacks/room-status", callbackHandler.RoomStatus)
	router.POST("/callbacks/render", callbackHandler.RenderStatus)

	// Room event stream
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
