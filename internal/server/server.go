// Package server отдаёт HTTP-сторону бота: вебхук CryptoPay, /healthz и /metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/metrics"
)

// WebhookPath: маршрут уведомлений CryptoPay.
const WebhookPath = "/webhook/cryptopay"

// Pinger: проверка доступности БД (pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter собирает маршруты. db может быть nil, тогда /healthz не ходит в базу.
func NewRouter(webhook http.Handler, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, recoverer, observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.WithError(err).Warn("Healthcheck: БД недоступна")
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Method(http.MethodPost, WebhookPath, webhook)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observe пишет задержку в метрику и запрос в лог.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.HTTPLatency.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

		if route == "/metrics" || route == "/healthz" {
			return
		}
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"elapsed":    elapsed.String(),
			"remote":     r.RemoteAddr,
		}).Info("HTTP запрос")
	})
}

// recoverer: как middleware.Recoverer, но пишет панику через logrus.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(log.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"panic":      rec,
				}).Error("ПАНИКА в HTTP-обработчике, восстановлено")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Server: обёртка над http.Server с мягкой остановкой.
type Server struct {
	srv *http.Server
}

// New создаёт сервер на addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}}
}

// Start слушает порт в отдельной горутине.
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.srv.Addr).Info("HTTP-сервер запущен")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP-сервер упал")
		}
	}()
}

// Shutdown дожидается текущих запросов не дольше таймаута ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
