package http

import (
	"log/slog"
	stdhttp "net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type RouterDeps struct {
	Config        config.Config
	Logger        *slog.Logger
	Service       *backend.Service
	JWT           *auth.Manager
	RefreshTokens handlers.RefreshTokenStore

	// Prom and Metrics are optional; tests leave them nil.
	Prom    *observability.Prom
	Metrics stdhttp.Handler

	// Ready maps a dependency name to its ping for /readyz.
	Ready map[string]func() error

	// DirectoryTTL bounds how stale the cached user list may be.
	DirectoryTTL time.Duration
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.DirectoryTTL <= 0 {
		d.DirectoryTTL = 5 * time.Second
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("tutorhub-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Logger))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Ready)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)
	r.GET("/docs/openapi.json", handlers.OpenAPISpecJSON)
	r.GET("/catalog", handlers.Catalog)

	// wire up handlers
	directory := handlers.NewDirectory(d.Service, d.DirectoryTTL)
	authHandler := handlers.NewAuthHandler(d.Service, d.JWT, d.RefreshTokens, d.Config, d.Logger)
	usersHandler := handlers.NewUsersHandler(d.Service, directory)
	teachersHandler := handlers.NewTeachersHandler(d.Service, directory, d.Logger)
	conversationsHandler := handlers.NewConversationsHandler(d.Service, d.Config.CORSOrigins, d.Logger)

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	authLimiter := middlewares.NewRateLimiter(20, time.Minute)
	sendLimiter := middlewares.NewRateLimiter(60, time.Minute)

	authGroup := r.Group("/auth", authLimiter.Limit(middlewares.KeyByIP))
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/federated", authHandler.Federated)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	api := r.Group("/", authMW.RequireAuth())
	{
		api.GET("/me", usersHandler.Me)
		api.PATCH("/me", usersHandler.UpdateMe)
		api.GET("/users", usersHandler.List)
		api.GET("/users/:id", usersHandler.Get)

		api.GET("/teachers", teachersHandler.Search)
		api.GET("/teachers/:id", teachersHandler.Get)
		api.POST("/teachers/:id/reviews", authMW.RequireRole(user.RoleStudent), teachersHandler.AddReview)

		api.GET("/conversations", conversationsHandler.List)
		api.POST("/conversations", authMW.RequireRole(user.RoleStudent), conversationsHandler.Start)
		api.GET("/conversations/:id/messages", conversationsHandler.Messages)
		api.POST("/conversations/:id/messages",
			sendLimiter.Limit(middlewares.KeyByUserOrIP),
			conversationsHandler.Send,
		)
		api.GET("/conversations/:id/live", conversationsHandler.Live)
	}

	return r
}
