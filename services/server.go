package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometrix/backend/repository"
	ws "github.com/prometrix/backend/websocket"
	"github.com/redis/go-redis/v9"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	repo               *repository.GORMRepository
	refinerService     *RefinerService
	emailService       *EmailService
	revocationStore    RevocationStore
	authService        *AuthService
	analyticsService   *AnalyticsService
	refinementService  *RefinementService
	authEndpoints      *AuthEndpoints
	promptEndpoints    *PromptEndpoints
	analyticsEndpoints *AnalyticsEndpoints
	templateEndpoints  *TemplateEndpoints
	adminEndpoints     *AdminEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the repository backing all services.
func (s *Server) SetDatabase(repo *repository.GORMRepository) {
	s.repo = repo
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.config.AI.GeminiAPIKey != "" {
		s.refinerService = NewRefinerService(s.config.AI)
		slog.Info("Refiner service initialized", "model", s.config.AI.Model)
	} else {
		slog.Warn("Gemini API key not configured, refinement disabled")
	}

	if s.config.Email.Host != "" {
		s.emailService = NewEmailService(s.config.Email)
		s.emailService.VerifyConnection()
	} else {
		slog.Warn("SMTP not configured, password-reset emails disabled")
		s.emailService = NewEmailService(s.config.Email)
	}

	// The in-process store only covers a single instance; Redis makes the
	// revocation list shared when more than one replica runs.
	if s.config.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.config.Redis.Addr,
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		s.revocationStore = NewRedisRevocationStore(client)
		slog.Info("Redis revocation store initialized", "addr", s.config.Redis.Addr)
	} else {
		s.revocationStore = NewMemoryRevocationStore()
		slog.Info("In-memory revocation store initialized")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	if s.config.JWT.Secret != "" && s.repo != nil {
		s.authService = NewAuthService(s.repo, s.revocationStore, s.emailService, s.config.JWT)
		s.analyticsService = NewAnalyticsService(s.repo)

		// Avoid storing a typed-nil Refiner when the provider is unconfigured.
		var refiner Refiner
		if s.refinerService != nil {
			refiner = s.refinerService
		}
		s.refinementService = NewRefinementService(s.repo, refiner, s.analyticsService, s.wsHub)

		s.authEndpoints = NewAuthEndpoints(s.authService)
		s.promptEndpoints = NewPromptEndpoints(s.repo, s.refinementService)
		s.analyticsEndpoints = NewAnalyticsEndpoints(s.analyticsService)
		s.templateEndpoints = NewTemplateEndpoints(s.repo)
		s.adminEndpoints = NewAdminEndpoints(s.repo, s.analyticsService)
		slog.Info("Authentication service initialized")
	}

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		if s.authEndpoints != nil {
			r.Route("/auth", func(r chi.Router) {
				s.authEndpoints.RegisterPublicRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(s.authService.Middleware)
					s.authEndpoints.RegisterProtectedRoutes(r)
				})
			})
		}

		if s.promptEndpoints != nil && s.authService != nil {
			r.Route("/prompts", func(r chi.Router) {
				r.Use(s.authService.Middleware)
				s.promptEndpoints.RegisterRoutes(r)
			})
		}

		if s.analyticsEndpoints != nil && s.authService != nil {
			r.Route("/analytics", func(r chi.Router) {
				r.Use(s.authService.Middleware)
				s.analyticsEndpoints.RegisterRoutes(r)
			})
		}

		if s.templateEndpoints != nil {
			r.Route("/templates", func(r chi.Router) {
				// The public gallery needs no session.
				s.templateEndpoints.RegisterPublicRoutes(r)

				if s.authService != nil {
					r.Group(func(r chi.Router) {
						r.Use(s.authService.Middleware)
						s.templateEndpoints.RegisterProtectedRoutes(r)
					})
				}
			})
		}

		if s.adminEndpoints != nil && s.authService != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Use(s.authService.RequireRole("admin"))
				s.adminEndpoints.RegisterRoutes(r)
			})
		}

		// WebSocket route (protected)
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Get("/ws", s.websocketHandlerFunc)
			})
		}
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.repo != nil {
		if sqlDB, err := s.repo.DB().DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID)

	client := s.wsHub.RegisterClient(conn, user.ID)
	go client.WritePump()
	client.ReadPump()
}
