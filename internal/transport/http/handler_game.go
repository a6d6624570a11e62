package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"wallpaper-guesser/internal/roundsync"

	"github.com/go-chi/chi/v5"
)

type GameHandlers struct {
	engine Engine
}

func NewGameHandlers(engine Engine) *GameHandlers {
	return &GameHandlers{engine: engine}
}

type submitGuessRequest struct {
	Answer string `json:"answer"`
}

func (h *GameHandlers) SubmitGuess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, _ := PlayerFromContext(r.Context())
		position, err := strconv.Atoi(chi.URLParam(r, "position"))
		if err != nil {
			writeEngineError(w, r, fmt.Errorf("%w: round position must be a number", roundsync.ErrInvalidRequest))
			return
		}
		var req submitGuessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeEngineError(w, r, fmt.Errorf("%w: malformed body", roundsync.ErrInvalidRequest))
			return
		}
		res, err := h.engine.SubmitGuess(r.Context(), roundsync.GuessRequest{
			GameID:   chi.URLParam(r, "game_id"),
			Position: position,
			PlayerID: playerID,
			Answer:   req.Answer,
		})
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func (h *GameHandlers) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, _ := PlayerFromContext(r.Context())
		res, err := h.engine.MarkReady(r.Context(), chi.URLParam(r, "game_id"), playerID)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func (h *GameHandlers) Sync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.engine.Snapshot(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func (h *GameHandlers) Reconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.engine.Reconcile(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func (h *GameHandlers) Finish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.engine.FinishGame(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// HealthHandler reports ok, or 503 when the store does not answer.
func HealthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store_unavailable"})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
