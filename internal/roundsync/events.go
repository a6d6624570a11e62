package roundsync

// Event names broadcast to a game's room.
const (
	EventPlayerFinishedRound   = "player_finished_round"
	EventRoundCompleted        = "round_completed"
	EventPlayerReadyUpdate     = "player_ready_update"
	EventRoundStarted          = "round_started"
	EventGameFinished          = "game_finished"
	EventGameWaitingForPlayers = "game_waiting_for_players"
)

type PlayerFinishedRoundPayload struct {
	PlayerID     string `json:"player_id"`
	Round        int    `json:"round"`
	WaitingCount int    `json:"waiting_count"`
	TotalCount   int    `json:"total_count"`
}

type RoundCompletedPayload struct {
	Round        int           `json:"round"`
	TotalRounds  int           `json:"total_rounds"`
	IsFinalRound bool          `json:"is_final_round"`
	Results      []RoundResult `json:"results"`
}

type PlayerReadyUpdatePayload struct {
	PlayerID string   `json:"player_id"`
	Round    int      `json:"round"`
	Ready    []string `json:"ready"`
	Eligible []string `json:"eligible"`
	AutoMark bool     `json:"auto,omitempty"`
}

type RoundStartedPayload struct {
	Round       int `json:"round"`
	TotalRounds int `json:"total_rounds"`
}

type GameFinishedPayload struct {
	WinnerID string           `json:"winner_id"`
	Scores   map[string]int64 `json:"scores"`
}

type GameWaitingForPlayersPayload struct {
	TotalRounds int            `json:"total_rounds"`
	WaitingOn   []string       `json:"waiting_on"`
	Counts      map[string]int `json:"counts"`
}
