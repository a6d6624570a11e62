package httptransport

import (
	"net/http"
	"time"

	"wallpaper-guesser/internal/room"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// EventsSSEHandler streams a game's room events, replaying whatever the
// buffer still holds after Last-Event-ID. Unknown games get a 404 before
// any stream is opened.
func EventsSSEHandler(engine Engine, events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "game_id")
		if gameID == "" || engine == nil || events == nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		if _, err := engine.Snapshot(r.Context(), gameID); err != nil {
			writeEngineError(w, r, err)
			return
		}
		buf, ch := events.Watch(gameID)
		defer events.Unwatch(gameID, buf, ch)

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("game_id", gameID).
			Msg("sse stream opened")

		lastEventID := r.Header.Get("Last-Event-ID")
		if lastEventID == "" {
			lastEventID = r.URL.Query().Get("last_event_id")
		}
		sent := map[string]struct{}{}
		for _, ev := range buf.ReplayAfter(lastEventID) {
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			sent[ev.EventID] = struct{}{}
			logSSEEvent(r, gameID, "replay", ev)
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("game_id", gameID).
					Err(r.Context().Err()).
					Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if _, dup := sent[ev.EventID]; dup {
					delete(sent, ev.EventID)
					continue
				}
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				logSSEEvent(r, gameID, "live", ev)
				flusher.Flush()
			case <-ticker.C:
				ping := room.NewDirectEvent("ping", gameID, map[string]any{"ts": time.Now().UnixMilli()})
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func logSSEEvent(r *http.Request, gameID, source string, ev room.StreamEvent) {
	log.Debug().
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("game_id", gameID).
		Str("event", ev.Event).
		Str("event_id", ev.EventID).
		Str("source", source).
		Msg("sse event sent")
}
