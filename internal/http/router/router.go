package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/uiowa-coph/roomres/internal/http/handler"
	"github.com/uiowa-coph/roomres/internal/http/middleware"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/session"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	EventHandler    *handler.EventHandler
	LayoutHandler   *handler.LayoutHandler
	CallbackHandler *handler.CallbackHandler
	SessionStore    session.Store
	Refresher       middleware.TokenRefresher
	DevOrigins      []string
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", dep.AuthHandler.Login)
		r.Get("/callback", dep.AuthHandler.Callback)
		r.Post("/logout", dep.AuthHandler.Logout)
	})

	// Router-to-service callback; authenticated by shared secret, not by a
	// browser session.
	r.Post("/callbacks/workflow", dep.CallbackHandler.Workflow)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionGuard(dep.SessionStore, dep.Refresher, dep.DevOrigins))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", dep.EventHandler.Create)
			r.Get("/", dep.EventHandler.List)
			r.Get("/{packageId}", dep.EventHandler.Get)
			r.Patch("/{packageId}", dep.EventHandler.Update)
			r.Delete("/{packageId}", dep.EventHandler.Delete)
			r.Post("/{packageId}/void", dep.EventHandler.Void)
			r.Get("/{packageId}/layout", dep.LayoutHandler.GetForEvent)
		})

		r.Route("/layouts", func(r chi.Router) {
			r.Get("/", dep.LayoutHandler.List)
			r.Get("/{id}", dep.LayoutHandler.Get)
			r.Put("/{id}", dep.LayoutHandler.Save)
			r.Delete("/{id}", dep.LayoutHandler.Delete)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
