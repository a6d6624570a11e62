package store

import "time"

const (
	GameStatusWaiting    = "waiting"
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
)

type Game struct {
	ID          string
	Status      string
	TotalRounds int
	WinnerID    string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

type GamePlayer struct {
	GameID   string
	PlayerID string
	JoinedAt time.Time
}

type Round struct {
	ID         string
	GameID     string
	Position   int
	Answer     string
	GuessCount int
}

type Guess struct {
	ID        string
	GameID    string
	RoundID   string
	Position  int
	PlayerID  string
	Answer    string
	Correct   bool
	Score     int64
	CreatedAt time.Time
}

// NewGame describes a game to be created together with its rounds and
// participants.
type NewGame struct {
	ID        string
	PlayerIDs []string
	Answers   []string
	Status    string
}
