package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"socialbox/account"
	"socialbox/config"
	"socialbox/database"
	"socialbox/events"
	"socialbox/handlers"
	"socialbox/logging"
	"socialbox/messaging"
	"socialbox/metrics"
	"socialbox/middleware"
	"socialbox/presence"
	"socialbox/relationship"
	"socialbox/repository"
	"socialbox/utils"
	"socialbox/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Caller: cfg.Log.Caller})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nats, err := events.NewNatsPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		publisher = nats
	}
	defer publisher.Close()

	tracker := presence.NewTracker(recorder)
	go tracker.Run(ctx)

	if err := handlers.RegisterBindingRules(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register validation rules")
	}

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := account.NewService(store)
	relationships := relationship.NewService(store, publisher, tracker, recorder)
	messages := messaging.NewService(store, tracker, recorder)

	followLimiter := middleware.NewRateLimiter(cfg.RateLimit.FollowPerMinute, cfg.RateLimit.FollowBurst)
	defer followLimiter.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(recorder), middleware.CORSMiddleware(cfg.AllowedOrigins()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	authRequired := middleware.AuthMiddleware(tokens, store.Users(), cfg.Auth.CookieName)
	h := handlers.NewHandler(accounts, relationships, messages, tracker, tokens, handlers.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
	})
	h.RegisterRoutes(r, handlers.Middlewares{
		Auth:        authRequired,
		FollowLimit: followLimiter.Middleware("follow"),
	})

	ws := websocket.NewHandler(tracker, messages, cfg.AllowedOrigins(), cfg.Realtime.SendBuffer)
	r.GET("/ws", authRequired, ws.ServeWS)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Database.Driver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown failed")
	}
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		logging.Warn().Msg("Using in-memory store, data is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DSN); err != nil {
			return nil, nil, err
		}
	}
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewMySQLStore(db), func() { database.Close(db) }, nil
}
