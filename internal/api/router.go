package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kdimtricp/lostfound/internal/session"
	"go.uber.org/zap"
)

type App struct {
	Sessions      *session.Manager
	MaxUploadSize int64
	Logger        *zap.Logger
}

func NewRouter(app *App) http.Handler {
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(app.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(app.WithSession)

		r.Get("/", app.HomeHandler)
		r.Post("/reports", app.ReportHandler)
		r.Post("/navigate", app.NavigateHandler)
		r.Get("/items/{id}/image", app.ImageHandler)
		r.Get("/events", app.EventsHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", app.StateAPIHandler)
			r.Get("/items", app.ItemsAPIHandler)
			r.Post("/reports", app.ReportAPIHandler)
			r.Post("/navigate", app.NavigateAPIHandler)
		})
	})

	return r
}
