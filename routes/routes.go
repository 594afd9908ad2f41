package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/roster-system/docs"
	"github.com/Dosada05/roster-system/handlers"
	"github.com/Dosada05/roster-system/middleware"
	"github.com/Dosada05/roster-system/models"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	rosterHandler *handlers.RosterHandler,
	syncHandler *handlers.SyncHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/rosters", func(r chi.Router) {
			r.Post("/", rosterHandler.CreateRoster)
			r.Route("/{rosterID}", func(r chi.Router) {
				r.Get("/", rosterHandler.GetRoster)
				r.Put("/", rosterHandler.UpdateRoster)
				r.Delete("/", rosterHandler.DeleteRoster)
				r.Get("/blocking-dates", rosterHandler.BlockingDates)
				r.Post("/players", rosterHandler.AddPlayer)
				r.Delete("/players/{playerID}", rosterHandler.RemovePlayer)
			})
		})

		r.With(middleware.Authorize(models.RoleAdmin)).Post("/sync", syncHandler.TriggerSync)
	})

	router.With(authenticate).Get("/ws/teams/{teamID}", webSocketHandler.ServeWs)
}
