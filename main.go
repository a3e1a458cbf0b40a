package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/handlers"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/rabbitmq"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/upload"
	"chat-gateway/internal/ws"
)

func main() {
	startedAt := time.Now()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Printf("tracing setup failed, continuing without export: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	router := chat.NewRouter(
		repositories.NewSessionRegistry(),
		repositories.NewTypingTracker(),
		repositories.NewMessageStore(cfg.RoomLogCap, cfg.ConvLogCap),
	)
	hub := ws.NewHub(router, cfg.SweepInterval, audit)
	go hub.Run(ctx)
	go observability.LogMemoryUsage(ctx, cfg.MemoryLogInterval)

	uploads, err := upload.NewService(cfg.UploadDir, cfg.MaxFileSize, cfg.AllowedTypes)
	if err != nil {
		log.Fatalf("failed to prepare uploads: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(cfg.SlowRequestThreshold),
		observability.HTTPMetricsMiddleware(),
		cors.New(corsConfig(cfg.ClientURLs)),
	)

	roomHandler := handlers.NewRoomHandler(hub, cfg.RoomLogCap)
	uploadHandler := handlers.NewUploadHandler(uploads, cfg.MaxFileSize)
	wsHandler := ws.NewHandler(hub, cfg.ClientURLs)

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Chat gateway is running")
	})
	engine.GET("/health", handlers.Health(startedAt))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", wsHandler.Handle)

	api := engine.Group("/api")
	api.GET("/messages", roomHandler.GetMessages)
	api.GET("/users", roomHandler.GetUsers)
	api.POST("/upload", uploadHandler.Upload)
	engine.Static(upload.PublicPrefix, uploads.Dir())

	handlers.RegisterDebugRoutes(engine, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("chat gateway listening addr=%s env=%s", srv.Addr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"hub": func(ctx context.Context) error {
				cancel()
				select {
				case <-hub.Done():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			// read pumps publish ws_disconnect and record spans on their way out
			"publisher": func(ctx context.Context) error {
				cancel()
				if err := hub.Drain(ctx); err != nil {
					log.Printf("hub drain incomplete before publisher close: %v", err)
				}
				return publisher.Close()
			},
			"tracing": func(ctx context.Context) error {
				if shutdownTracing == nil {
					return nil
				}
				cancel()
				if err := hub.Drain(ctx); err != nil {
					log.Printf("hub drain incomplete before tracing shutdown: %v", err)
				}
				return shutdownTracing(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("chat gateway exited code=%d", exitCode)
	os.Exit(exitCode)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Session-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	for _, o := range origins {
		cfg.AllowOrigins = append(cfg.AllowOrigins, strings.TrimRight(o, "/"))
	}
	return cfg
}
