package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cozy/docs" // registers the generated swagger spec
	"cozy/internal/auth"
	"cozy/internal/cozy"
	"cozy/internal/domain/storage"
	"cozy/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	service       *cozy.Service
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr                 string
	env                  string
	apiURL               string
	store                storeConfig
	db                   dbConfig
	mongo                mongoConfig
	auth                 authConfig
	cors                 corsConfig
	rateLimiter          ratelimiter.Config
	archiveSweepInterval time.Duration
}

type storeConfig struct {
	driver string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret        string
	refreshSecret string
	iss           string
}

type basicConfig struct {
	user string
	pass string
}

type corsConfig struct {
	allowedOrigin string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type mongoConfig struct {
	uri      string
	database string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.metricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.cors.allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Use(app.RateLimiterMiddleware)

	// signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
	r.With(app.BasicAuthMiddleware()).Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		// the UI fetches doc.json relative to its own page
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("doc.json")))

		// Public routes
		r.Post("/users", app.registerUserHandler)
		r.Post("/login", app.createTokenHandler)
		r.Post("/refresh", app.refreshTokenHandler)

		r.Route("/ratings", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/", app.listRatingsHandler)
			r.Post("/", app.createRatingHandler)
			// {id} is a place id for GET and DELETE, a rating id for PUT
			r.Get("/{id}", app.getRatingHandler)
			r.Put("/{id}", app.updateRatingHandler)
			r.Delete("/{id}", app.deleteRatingHandler)
		})

		r.Route("/places", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(app.OptionalAuthMiddleware)
				r.Get("/", app.listPlacesHandler)
				r.Get("/{id}", app.getPlaceHandler)
			})
			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/", app.createPlaceHandler)
				r.Post("/{id}/photos", app.addPlacePhotoHandler)
			})
		})

		r.Route("/report", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.reportPlaceHandler)
			r.Delete("/", app.unreportPlaceHandler)
		})

		r.With(app.BasicAuthMiddleware()).Post("/admin/archive-sweep", app.archiveSweepHandler)
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/api"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if app.config.archiveSweepInterval > 0 {
		app.archiveSweepEvery(ctx, app.config.archiveSweepInterval)
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Infow("signal caught", "signal", s.String())
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env, "store", app.store.Driver)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
