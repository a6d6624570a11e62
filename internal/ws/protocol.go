package ws

import "wallpaper-guesser/internal/roundsync"

// Inbound message types.
const (
	TypeJoin        = "join"
	TypeSubmitGuess = "submit_guess"
	TypeReady       = "ready"
	TypeLeave       = "leave"
	TypeSync        = "sync"
)

// Direct replies sent only to the requesting connection.
const (
	EventGuessResult = "guess_result"
	EventReadyResult = "ready_result"
	EventSync        = "sync"
	EventLeft        = "left"
)

type ClientMessage struct {
	Type     string `json:"type"`
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Round    int    `json:"round,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

type GuessResultPayload struct {
	roundsync.GuessResult
	PlayerID string `json:"player_id"`
}
