package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	Accounts handlers.Accounts
	Tasks    handlers.Tasks
	Tokens   middlewares.TokenVerifier
	// Prom and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Recovery(log))
	r.Use(otelgin.Middleware(serviceName(d.Cfg)))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(d.Cfg.IsDev()))
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	if d.Cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes))
	}

	// health
	health := handlers.NewHealthHandler(d.Ready)
	r.GET("/", health.Root)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, log, d.Cfg.RequestTimeout)
	tasksHandler := handlers.NewTasksHandler(d.Tasks, log, d.Cfg.RequestTimeout)
	authMW := middlewares.NewAuthMiddleware(d.Tokens, log, d.Prom)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)

	tasks := api.Group("/tasks")
	tasks.Use(authMW.RequireAuth())
	tasks.GET("", tasksHandler.ListTasks)
	tasks.POST("", tasksHandler.CreateTask)
	tasks.GET("/:id", tasksHandler.GetTask)
	tasks.PUT("/:id", tasksHandler.UpdateTask)
	tasks.DELETE("/:id", tasksHandler.DeleteTask)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	return r
}

func serviceName(cfg config.Config) string {
	if cfg.OTelServiceName != "" {
		return cfg.OTelServiceName
	}
	return "taskhub-api"
}
