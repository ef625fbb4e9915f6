// Package server wires handlers, middleware and routes into one chi router
// and runs it with graceful shutdown.
//
// The dependency chain is assembled in cmd/server:
//
//	storage.Store → services → Server.New → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/handler"
	"github.com/sakif/inkwell/internal/middleware"
	"github.com/sakif/inkwell/internal/service"
)

// Config holds the listener settings. Port is bare ("8080"); Start adds
// the colon.
type Config struct {
	Port string
}

// Deps are the services the routes are built from.
type Deps struct {
	Users    *service.UserService
	Novels   *service.NovelService
	Prompts  *service.PromptService
	Auth     *service.AuthService
	Resolver *auth.Resolver
}

// Server owns the router. It is created once in main and started with a
// context whose cancellation triggers graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New builds the router from deps.
//
// ASSEMBLY ORDER:
// main opens storage, builds the services, then calls New. New creates one
// handler per service and registers every route, so a Server is fully
// wired before Start is called and Handler can be tested without a
// listener.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// Middleware order: RequestID, RealIP, Logger, Recoverer, then caller
// resolution. Mutations sit behind RequireAuth so an anonymous request is
// rejected with 401 before its body is read.
//
// ROUTE MAP:
//
//	GET    /healthz                                   liveness, 204
//	POST   /auth/signup | /auth/signin | /auth/signout
//	GET    /api/me                                    caller + profile
//	POST   /api/users                                 create profile
//	GET    /api/users?supabaseId=|email=              find profile
//	PATCH  /api/users/{id}                            edit own profile
//	PUT    /api/users/{id}/favorites/{novelId}        add favorite
//	DELETE /api/users/{id}/favorites/{novelId}        remove favorite
//	GET    /api/writing-prompts                       list (?category=&isPublic=)
//	GET    /api/writing-prompts/categories
//	POST   /api/writing-prompts                       create
//	POST   /api/writing-prompts/{id}/use              count a use
//	GET    /api/novels                                catalog page
//	POST   /api/novels                                publish
//	GET    /api/novels/{id}                           detail
//	PATCH  /api/novels/{id}                           edit own novel
//	POST   /api/novels/{id}/chapters                  append chapter
//	GET    /api/novels/{id}/chapters/{chapterId}      chapter + navigation
//	POST   /api/novels/{id}/views                     count a view
//	GET    /api/novels/{id}/like                      like status
//	PUT    /api/novels/{id}/like                      like
//	DELETE /api/novels/{id}/like                      unlike
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	// OptionalAuth never rejects; it only attaches a Caller when the cookie
	// or bearer token checks out. RequireAuth below does the rejecting.
	s.router.Use(deps.Resolver.OptionalAuth)
	s.router.Use(middleware.RecordCaller)

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Users, s.logger)
	userHandler := handler.NewUserHandler(deps.Users, s.logger)
	promptHandler := handler.NewPromptHandler(deps.Prompts, s.logger)
	novelHandler := handler.NewNovelHandler(deps.Novels, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Post("/signout", authHandler.HandleSignOut)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.With(auth.RequireAuth).Get("/me", authHandler.HandleMe)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.HandleCreate)
			r.Get("/", userHandler.HandleFind)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Patch("/{id}", userHandler.HandleUpdate)
				r.Put("/{id}/favorites/{novelId}", userHandler.HandleAddFavorite)
				r.Delete("/{id}/favorites/{novelId}", userHandler.HandleRemoveFavorite)
			})
		})

		r.Route("/writing-prompts", func(r chi.Router) {
			r.Get("/", promptHandler.HandleList)
			r.Get("/categories", promptHandler.HandleCategories)
			r.Post("/{id}/use", promptHandler.HandleUse)
			r.With(auth.RequireAuth).Post("/", promptHandler.HandleCreate)
		})

		r.Route("/novels", func(r chi.Router) {
			r.Get("/", novelHandler.HandleList)
			r.Get("/{id}", novelHandler.HandleGet)
			r.Get("/{id}/chapters/{chapterId}", novelHandler.HandleGetChapter)
			r.Post("/{id}/views", novelHandler.HandleRecordView)
			r.Get("/{id}/like", novelHandler.HandleLikeStatus)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/", novelHandler.HandleCreate)
				r.Patch("/{id}", novelHandler.HandleUpdate)
				r.Post("/{id}/chapters", novelHandler.HandleAddChapter)
				r.Put("/{id}/like", novelHandler.HandleLike)
				r.Delete("/{id}/like", novelHandler.HandleUnlike)
			})
		})
	})
}

// Start serves until ctx is cancelled, then gives in-flight requests 30
// seconds to finish.
func (s *Server) Start(ctx context.Context) error {
	// Body size is capped separately, in handler.decodeJSON.
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Buffered: after a shutdown nobody reads ListenAndServe's result.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", "http://localhost:"+s.config.Port),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
