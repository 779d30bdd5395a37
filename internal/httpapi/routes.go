package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/cricket-live-backend/internal/broadcast"
	"github.com/DoyleJ11/cricket-live-backend/internal/hub"
	"github.com/DoyleJ11/cricket-live-backend/internal/identity"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Hub      *hub.Hub
	Broker   *broadcast.Broker
	Verifier *identity.Verifier
	Grants   Granter
	Archive  Archive // optional
	Metrics  http.Handler
	Logger   *zap.Logger

	DefaultOvers     int
	SubscriberBuffer int
	OriginPatterns   []string
}

func SetupRoutes(d Deps) http.Handler {
	d.Logger = logging.OrNop(d.Logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, RequestLogger(d.Logger))

	// Public routes
	r.Get("/healthz", Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/matches/{id}", GetMatch(d))
	r.Get("/ws", ws.Handler(ws.Config{
		Hub:            d.Hub,
		Broker:         d.Broker,
		Verifier:       d.Verifier,
		Buffer:         d.SubscriberBuffer,
		Logger:         d.Logger,
		OriginPatterns: d.OriginPatterns,
	}))

	// Scorer routes
	r.Group(func(r chi.Router) {
		r.Use(d.Verifier.Middleware)
		r.Post("/matches", CreateMatch(d))
		r.Post("/matches/{id}/start", StartMatch(d))
		r.Post("/matches/{id}/balls", SubmitBall(d))
		r.Post("/matches/{id}/bowler", ChangeBowler(d))
	})
	return r
}
