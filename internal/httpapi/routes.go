package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/evidence-board/internal/hub"
	"github.com/DoyleJ11/evidence-board/internal/ws"
)

type Options struct {
	WS ws.Options
	// StaticDir, when set, serves index.html at "/".
	StaticDir string
}

func SetupRoutes(h *hub.Hub, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log, opts.WS))
	r.Get("/rooms", ListRooms(h))
	r.Get("/rooms/{code}", GetRoom(h))
	if opts.StaticDir != "" {
		r.Get("/", Index(opts.StaticDir))
	}
	return r
}
