package serverhttp

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	harmHnd "hydro-harmonizer/internal/harmonize/handler"
	"hydro-harmonizer/internal/middleware"
	"hydro-harmonizer/server/http/handlers"
)

func NewRouter(d *harmHnd.Deps, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// order matters: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(d.Cfg.AllowOrigins))
	if d.Cfg.MaxUploadMB > 0 {
		r.Use(chimw.RequestSize(int64(d.Cfg.MaxUploadMB) << 20))
	}

	r.Get("/health", handlers.Health)

	r.Post("/harmonize", harmHnd.Harmonize(d, logger))
	r.Post("/map", harmHnd.Map(d, logger))
	r.Get("/convert", harmHnd.Convert(d, logger))

	return r
}
