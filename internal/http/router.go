package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/roboshop-devops-v1/cart/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(h *CartHandler, collector *metrics.Collector, logger *slog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(logger, collector))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	r.Get("/cart/{id}", h.GetCart)
	r.Delete("/cart/{id}", h.DeleteCart)
	r.Get("/add/{id}/{sku}/{qty}", h.AddItem)
	r.Get("/update/{id}/{sku}/{qty}", h.UpdateItem)
	r.Get("/rename/{from}/{to}", h.RenameCart)

	return otelhttp.NewHandler(r, "cart")
}
