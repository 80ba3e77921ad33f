package main

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueberrycongee/llmgate/internal/config"
)

type routeRegistrar interface {
	RegisterDataRoutes(*http.ServeMux)
	RegisterAdminRoutes(*http.ServeMux)
}

type muxes struct {
	Data  *http.ServeMux
	Admin *http.ServeMux
}

var errNilConfig = errors.New("config is required")

func buildMuxes(cfg *config.Config, handler routeRegistrar) (muxes, error) {
	if cfg == nil {
		return muxes{}, errNilConfig
	}

	dataMux := http.NewServeMux()
	registerDataRoutes(dataMux, handler, cfg)

	if cfg.Server.AdminPort > 0 {
		adminMux := http.NewServeMux()
		if handler != nil {
			handler.RegisterAdminRoutes(adminMux)
		}
		return muxes{Data: dataMux, Admin: adminMux}, nil
	}

	if handler != nil {
		handler.RegisterAdminRoutes(dataMux)
	}

	return muxes{Data: dataMux}, nil
}

func registerDataRoutes(mux *http.ServeMux, handler routeRegistrar, cfg *config.Config) {
	if handler == nil || mux == nil {
		return
	}

	handler.RegisterDataRoutes(mux)

	// Metrics endpoint
	if cfg != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.Handler())
	}
}
