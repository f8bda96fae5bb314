package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/calendar"
	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"github.com/yuvalaufer/students-calander/internal/oidc"
	"github.com/yuvalaufer/students-calander/internal/storage"
	"github.com/yuvalaufer/students-calander/pkg/logger"
	"github.com/yuvalaufer/students-calander/pkg/metrics"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: store=%s google=%v redis=%v minio=%v", cfg.Store.Backend, cfg.GoogleConfigured(), cfg.RedisAddr() != "", cfg.MinIO.Endpoint != "")

	ctx := context.Background()
	opened, err := storage.OpenDocumentStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open document store: %v", err)
	}
	defer func() { _ = opened.Close(context.Background()) }()

	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis: %s", addr)
			defer func() { _ = rdb.Close() }()
		}
	}

	var states oauthstate.Store
	if rdb != nil {
		states = oauthstate.NewRedisStore(rdb, "oauthstate:", cfg.OAuthState.TTL)
	} else {
		signed, err := oauthstate.NewSignedStore(cfg.OAuthState.Secret, cfg.OAuthState.TTL)
		if err != nil {
			logger.Fatalf("failed to create oauth state store: %v", err)
		}
		if cfg.OAuthState.Secret == "" {
			logger.Warnf("OAUTH_STATE_SECRET not set; consent links expire on restart")
		}
		states = signed
	}

	holder := auth.NewHolder()
	deps := routerDeps{
		cfg:       cfg,
		store:     opened.Store,
		storePing: opened.Ping,
		redis:     rdb,
		states:    states,
		holder:    holder,
		events:    calendar.NewGoogleSource(cfg.Google.CalendarID),
	}
	if cfg.Google.TutorEmail != "" && cfg.GoogleConfigured() {
		v, err := oidc.NewVerifier(ctx, oidc.GoogleIssuer, cfg.Google.ClientID)
		if err != nil {
			logger.Errorf("failed to initialize ID token verifier, calendar consent is refused until restart: %v", err)
		} else {
			deps.verifier = v
		}
	}
	if !cfg.GoogleConfigured() {
		logger.Warnf("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; calendar consent is disabled")
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	gin.SetMode(ginMode(cfg.Server.Environment))
	r := newRouter(deps)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

func ginMode(env string) string {
	if env == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}
