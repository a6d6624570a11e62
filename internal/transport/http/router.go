package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"wallpaper-guesser/internal/room"
	"wallpaper-guesser/internal/roundsync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Engine is the round coordinator as seen by the request/response API.
type Engine interface {
	SubmitGuess(ctx context.Context, req roundsync.GuessRequest) (roundsync.GuessResult, error)
	MarkReady(ctx context.Context, gameID, playerID string) (roundsync.ReadyResult, error)
	Snapshot(ctx context.Context, gameID string) (roundsync.View, error)
	Reconcile(ctx context.Context, gameID string) (roundsync.View, error)
	FinishGame(ctx context.Context, gameID string) (roundsync.FinishResult, error)
}

// EventSource subscribes stream readers to per-game event buffers.
type EventSource interface {
	Watch(gameID string) (*room.EventBuffer, chan room.StreamEvent)
	Unwatch(gameID string, buf *room.EventBuffer, ch chan room.StreamEvent)
}

type Deps struct {
	Engine Engine
	Events EventSource
	WS     http.HandlerFunc
	Ping   func(ctx context.Context) error
}

func NewRouter(deps Deps) *chi.Mux {
	games := NewGameHandlers(deps.Engine)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", HealthHandler(deps.Ping))
	if deps.WS != nil {
		r.Get("/ws", deps.WS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/games/{game_id}", func(r chi.Router) {
			r.Get("/sync", games.Sync())
			r.Get("/events", EventsSSEHandler(deps.Engine, deps.Events))

			r.Group(func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Post("/reconcile", games.Reconcile())
				r.Post("/finish", games.Finish())

				r.Group(func(r chi.Router) {
					r.Use(PlayerMiddleware())
					r.Post("/rounds/{position}/guesses", games.SubmitGuess())
					r.Post("/ready", games.Ready())
				})
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
