package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tpow4/CoinPurse/pkg/config"
	"github.com/tpow4/CoinPurse/pkg/httpx"
)

func newRouter(deps *dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle(cfg.Observability.MetricsPath, promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		deps.importHandler.Routes(api)
		deps.mappingHandler.Routes(api)
		deps.transactionHandler.Routes(api)
		deps.accountHandler.Routes(api)
		deps.categoryHandler.Routes(api)
		deps.institutionHandler.Routes(api)
	})

	return r
}
