package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/yuvalaufer/students-calander/handlers"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/lessons"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"github.com/yuvalaufer/students-calander/pkg/middleware"
)

var startTime = time.Now()

type routerDeps struct {
	cfg       *config.Config
	store     docstore.Store
	storePing func(ctx context.Context) error
	redis     *redis.Client
	states    oauthstate.Store
	holder    *auth.Holder
	events    lessons.EventSource
	verifier  auth.IdentityVerifier
}

func newRouter(d routerDeps) *gin.Engine {
	cfg := d.cfg
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// The frontend may be served from another origin during development.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, If-Match")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, ETag")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && d.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(d.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// ready only when the document store answers
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if d.storePing != nil {
			deps["store"] = d.storePing(ctx) == nil
		} else {
			_, err := d.store.Fetch(ctx, repository.StudentsDocument)
			deps["store"] = err == nil
		}
		ready = ready && deps["store"]

		if d.redis != nil {
			deps["redis"] = d.redis.Ping(ctx).Err() == nil
			if cfg.RateLimit.UseRedis {
				ready = ready && deps["redis"]
			}
		}
		deps["google"] = cfg.GoogleConfigured()

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	rosters := repository.NewRosters(d.store)
	ledgers := repository.NewLedgers(d.store)
	credentials := repository.NewCredentialRecords(d.store)

	lifecycle := auth.NewLifecycle(d.holder, credentials, auth.NewOAuthConfig(cfg.Google), cfg.Google.RefreshToken)
	if cfg.Google.TutorEmail != "" {
		lifecycle.WithVerifier(d.verifier, cfg.Google.TutorEmail)
	}
	authH := handlers.NewAuthHandler(lifecycle, d.states, cfg.GoogleConfigured())
	authH.Register(r)

	handlers.NewStudentsHandler(rosters).Register(r)
	handlers.NewPaymentsHandler(ledgers).Register(r)
	reconciler := lessons.NewReconciler(lifecycle, d.events, ledgers)
	handlers.NewLessonsHandler(reconciler, authH, cfg.Lessons.WindowDays).Register(r)

	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
