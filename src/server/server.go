package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/handler"
)

type Dependencies struct {
	Portfolio handler.Portfolio
	// Journal is optional; without it the /journal routes are not mounted.
	Journal     handler.JournalReader
	TokenHashes []string
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func NewRouter(deps Dependencies) http.Handler {
	// Router with middleware
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	p := deps.Portfolio
	r.Get("/portfolio/summary", handler.SummaryHandler(p))
	r.Get("/portfolio/risk", handler.RiskHandler(p))
	r.Get("/portfolio/report", handler.ReportHandler(p))
	r.Get("/positions", handler.OpenPositionsHandler(p))
	r.Get("/positions/closed", handler.ClosedPositionsHandler(p))

	if deps.Journal != nil {
		r.Get("/journal/positions", handler.JournalPositionsHandler(deps.Journal))
		r.Get("/journal/blocks", handler.JournalBlocksHandler(deps.Journal))
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(deps.TokenHashes))
		r.Post("/signals", handler.SignalHandler(p))
		r.Post("/ticks", handler.TickHandler(p))
		r.Post("/positions/{id}/close", handler.ClosePositionHandler(p))
		r.Post("/portfolio/rebalance", handler.RebalanceHandler(p))
	})

	return r
}

// Run serves h until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, config *Config, h http.Handler) error {
	addr := ":" + config.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
