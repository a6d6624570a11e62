package roundsync

import (
	"sort"
	"sync"
	"time"
)

type Phase string

const (
	PhaseAwaitingGuesses Phase = "awaiting_guesses"
	PhaseRoundComplete   Phase = "round_complete"
	PhaseAwaitingReady   Phase = "awaiting_ready"
	PhaseAdvancing       Phase = "advancing"
	PhaseGameFinished    Phase = "game_finished"
)

// RoundResult is the cached outcome of one player's guess in the current
// round, served to late joiners.
type RoundResult struct {
	PlayerID string `json:"player_id"`
	Round    int    `json:"round"`
	Answer   string `json:"answer"`
	Correct  bool   `json:"correct"`
	Score    int64  `json:"score"`
}

type playerSet map[string]struct{}

func (s playerSet) has(p string) bool {
	_, ok := s[p]
	return ok
}

func (s playerSet) sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func union(a, b playerSet) playerSet {
	out := make(playerSet, len(a)+len(b))
	for p := range a {
		out[p] = struct{}{}
	}
	for p := range b {
		out[p] = struct{}{}
	}
	return out
}

// SyncState is the in-memory round synchronization state of one game. All
// fields are guarded by mu, which is never held across a store call or a
// connection write.
type SyncState struct {
	mu sync.Mutex

	gameID       string
	participants []string
	totalRounds  int

	currentRound     int
	lastCompleted    int
	finishedCurrent  playerSet
	finishedPrevious playerSet
	ready            playerSet
	results          map[string]RoundResult
	phase            Phase
	lastActivity     time.Time

	// once holds single-assignment tokens for the current round
	// ("round_completed:3"); they are dropped when the round advances.
	once map[string]struct{}
	// inflight holds debounce tokens with an expiry, a liveness fallback
	// for overlapping triggers.
	inflight map[string]time.Time
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func newSyncState(gameID string, participants []string, totalRounds int, now time.Time) *SyncState {
	return &SyncState{
		gameID:           gameID,
		participants:     sortedCopy(participants),
		totalRounds:      totalRounds,
		currentRound:     1,
		finishedCurrent:  playerSet{},
		finishedPrevious: playerSet{},
		ready:            playerSet{},
		results:          map[string]RoundResult{},
		phase:            PhaseAwaitingGuesses,
		lastActivity:     now,
		once:             map[string]struct{}{},
		inflight:         map[string]time.Time{},
	}
}

func (s *SyncState) isParticipantLocked(playerID string) bool {
	for _, p := range s.participants {
		if p == playerID {
			return true
		}
	}
	return false
}

func (s *SyncState) eligibleLocked() playerSet {
	return union(s.finishedPrevious, s.finishedCurrent)
}

func (s *SyncState) allFinishedLocked() bool {
	return len(s.participants) > 0 && len(s.finishedCurrent) == len(s.participants)
}

// claimOnceLocked reports whether token was not claimed before in this round.
func (s *SyncState) claimOnceLocked(token string) bool {
	if _, ok := s.once[token]; ok {
		return false
	}
	s.once[token] = struct{}{}
	return true
}

func (s *SyncState) claimInflight(token string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.inflight[token]; ok && now.Before(exp) {
		return false
	}
	s.inflight[token] = now.Add(window)
	return true
}

func (s *SyncState) clearInflight(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, token)
}

func (s *SyncState) viewLocked() View {
	results := make(map[string]RoundResult, len(s.results))
	for p, r := range s.results {
		results[p] = r
	}
	return View{
		GameID:             s.gameID,
		Phase:              s.phase,
		CurrentRound:       s.currentRound,
		TotalRounds:        s.totalRounds,
		LastCompletedRound: s.lastCompleted,
		Participants:       append([]string(nil), s.participants...),
		FinishedCurrent:    s.finishedCurrent.sorted(),
		FinishedPrevious:   s.finishedPrevious.sorted(),
		Ready:              s.ready.sorted(),
		Results:            results,
		AllRoundsComplete:  s.allRoundsCompleteLocked(),
		LastActivity:       s.lastActivity,
	}
}

// allRoundsCompleteLocked is the durable-count view of the end of the game:
// everyone finished the final round.
func (s *SyncState) allRoundsCompleteLocked() bool {
	return s.allFinishedLocked() && s.currentRound >= s.totalRounds && s.lastCompleted >= s.totalRounds
}

// View returns a copy of the state safe to hand to other goroutines.
func (s *SyncState) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// View is an immutable snapshot of a game's SyncState.
type View struct {
	GameID             string                 `json:"game_id"`
	Phase              Phase                  `json:"phase"`
	CurrentRound       int                    `json:"current_round"`
	TotalRounds        int                    `json:"total_rounds"`
	LastCompletedRound int                    `json:"last_completed_round"`
	Participants       []string               `json:"participants"`
	FinishedCurrent    []string               `json:"finished_current"`
	FinishedPrevious   []string               `json:"finished_previous"`
	Ready              []string               `json:"ready"`
	Results            map[string]RoundResult `json:"results,omitempty"`
	AllRoundsComplete  bool                   `json:"all_rounds_complete"`
	LastActivity       time.Time              `json:"last_activity"`
}

func (v View) GameFinished() bool {
	return v.Phase == PhaseGameFinished
}

// WaitingCount is the number of participants yet to finish the current round.
func (v View) WaitingCount() int {
	return len(v.Participants) - len(v.FinishedCurrent)
}
