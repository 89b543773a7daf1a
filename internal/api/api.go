package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/finsec-io/finsec-api/internal/payments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type Api struct {
	Config   config.Config
	Router   *chi.Mux
	auth     *auth.Service
	payments *payments.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewApi(cfg config.Config, authService *auth.Service, paymentService *payments.Service, logger zerolog.Logger) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, errors.New("must have at least a port to start API")
	}
	if authService == nil || paymentService == nil {
		return nil, errors.New("auth and payment services are required")
	}

	api := &Api{
		Config:   cfg,
		auth:     authService,
		payments: paymentService,
		validate: newValidator(),
		logger:   logger.With().Str("component", "api").Logger(),
	}
	api.Router = api.routes()
	return api, nil
}

func (api *Api) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found", "details": r.URL.Path})
	})

	r.Get("/heartbeat", api.Heartbeat)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", api.LoginHandler)
		r.Post("/verify-mfa", api.VerifyMFAHandler)
		r.Post("/generate-mfa-secret", api.GenerateMFASecretHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(api.auth))
			r.Post("/logout", api.LogoutHandler)
		})
	})

	r.Route("/cards", func(r chi.Router) {
		r.Use(auth.Middleware(api.auth))
		r.Get("/", api.ListCardsHandler)
		r.Get("/{cardID}/transactions", api.ListCardTransactionsHandler)
	})

	r.Route("/bills", func(r chi.Router) {
		r.Use(auth.Middleware(api.auth))
		r.Get("/", api.ListBillsHandler)
		r.Post("/pay", api.PayBillHandler)
	})

	return r
}

// Routes returns the root handler.
func (api *Api) Routes() http.Handler {
	return api.Router
}

// Serve listens on the configured port until ctx is cancelled, then drains
// in-flight requests.
func (api *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              api.Config.Address(),
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		api.logger.Info().Str("addr", srv.Addr).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		api.logger.Info().Msg("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (api *Api) Heartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
