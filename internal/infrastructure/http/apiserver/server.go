// Package apiserver wires the JSON API routes into an HTTP server
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nuggs-ai/nuggs/internal/application/generation"
	"github.com/nuggs-ai/nuggs/internal/application/recipes"
	"github.com/nuggs-ai/nuggs/internal/application/user"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/billing/paddle"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/billing/stripe"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/config"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/handlers"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/middleware"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Server is the API HTTP server
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
	router  *chi.Mux
	metrics *monitoring.Metrics

	users         *user.Service
	generator     *generation.Service
	savedRecipes  *recipes.Service
	checkout      *stripe.Checkout
	stripeWebhook *stripe.WebhookHandler
	paddleWebhook *paddle.WebhookHandler
}

// NewServer creates a new API server instance
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *monitoring.Metrics,
	users *user.Service,
	generator *generation.Service,
	savedRecipes *recipes.Service,
	checkout *stripe.Checkout,
	stripeWebhook *stripe.WebhookHandler,
	paddleWebhook *paddle.WebhookHandler,
) *Server {
	s := &Server{
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		users:         users,
		generator:     generator,
		savedRecipes:  savedRecipes,
		checkout:      checkout,
		stripeWebhook: stripeWebhook,
		paddleWebhook: paddleWebhook,
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger, s.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.Security())
	r.Use(middleware.CORS(s.config.Server.AllowedOrigins))

	r.Get("/health", s.handleHealthCheck)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Providers sign the raw body, so webhook routes skip JSONOnly and the
	// request timeout wrapping the API group.
	r.Route("/webhooks", func(r chi.Router) {
		r.Method(http.MethodPost, "/stripe", s.stripeWebhook)
		r.Method(http.MethodPost, "/paddle", s.paddleWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(90 * time.Second))
		r.Use(middleware.JSONOnly())
		s.setupAPIV1Routes(r)
	})

	return r
}

func (s *Server) setupAPIV1Routes(r chi.Router) {
	genH := handlers.NewGenerateHandlers(s.generator, s.logger)
	authH := handlers.NewAuthHandlers(s.users, s.logger)
	recipeH := handlers.NewRecipeHandlers(s.savedRecipes, s.logger)
	billingH := handlers.NewBillingHandlers(s.checkout, s.logger)

	// Generation is open to guests; a valid token switches the caller to
	// the authenticated quota.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthenticate(s.users))
		r.Post("/generate", genH.Generate)
		r.Post("/substitutions", genH.Substitutions)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.users))
			r.Get("/profile", authH.Profile)
		})
	})

	r.Route("/recipes", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.users))
		r.Get("/", recipeH.List)
		r.Post("/", recipeH.Save)
		r.Get("/{id}", recipeH.Get)
		r.Delete("/{id}", recipeH.Delete)
		r.Post("/{id}/favorite", recipeH.ToggleFavorite)
		r.Put("/{id}/folder", recipeH.MoveToFolder)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.users))
		r.Post("/checkout", billingH.CreateCheckout)
		r.Post("/portal", billingH.CreatePortal)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"%s","version":"%s","timestamp":%d}`,
		s.config.App.Name, s.config.App.Version, time.Now().Unix())
}
