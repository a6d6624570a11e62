// Package memstore is an in-process implementation of the game store used
// for local runs without Postgres and for engine tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"wallpaper-guesser/internal/store"
)

type guessKey struct {
	gameID   string
	playerID string
	position int
}

type Store struct {
	mu      sync.Mutex
	games   map[string]*store.Game
	players map[string][]string
	rounds  map[string][]*store.Round
	guesses map[guessKey]store.Guess
}

func New() *Store {
	return &Store{
		games:   map[string]*store.Game{},
		players: map[string][]string{},
		rounds:  map[string][]*store.Round{},
		guesses: map[guessKey]store.Guess{},
	}
}

func (s *Store) CreateGame(_ context.Context, ng store.NewGame) (*store.Game, error) {
	if len(ng.Answers) == 0 {
		return nil, errors.New("game needs at least one round")
	}
	if len(ng.PlayerIDs) == 0 {
		return nil, errors.New("game needs at least one player")
	}
	if ng.ID == "" {
		ng.ID = store.NewID()
	}
	if ng.Status == "" {
		ng.Status = store.GameStatusWaiting
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[ng.ID]; ok {
		return nil, store.ErrDuplicate
	}
	g := &store.Game{
		ID:          ng.ID,
		Status:      ng.Status,
		TotalRounds: len(ng.Answers),
		CreatedAt:   time.Now(),
	}
	s.games[g.ID] = g
	players := append([]string(nil), ng.PlayerIDs...)
	sort.Strings(players)
	s.players[g.ID] = players
	rounds := make([]*store.Round, 0, len(ng.Answers))
	for i, answer := range ng.Answers {
		rounds = append(rounds, &store.Round{
			ID:       store.NewID(),
			GameID:   g.ID,
			Position: i + 1,
			Answer:   answer,
		})
	}
	s.rounds[g.ID] = rounds
	out := *g
	return &out, nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (*store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *g
	return &out, nil
}

func (s *Store) SetGameStatus(_ context.Context, gameID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = status
	return nil
}

func (s *Store) CompleteGame(_ context.Context, gameID, winnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return store.ErrNotFound
	}
	if g.Status == store.GameStatusFinished {
		return nil
	}
	now := time.Now()
	g.Status = store.GameStatusFinished
	g.WinnerID = winnerID
	g.FinishedAt = &now
	return nil
}

func (s *Store) ListParticipants(_ context.Context, gameID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.players[gameID]...), nil
}

func (s *Store) IsParticipant(_ context.Context, gameID, playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players[gameID] {
		if p == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetRoundByPosition(_ context.Context, gameID string, position int) (*store.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds := s.rounds[gameID]
	if position < 1 || position > len(rounds) {
		return nil, store.ErrNotFound
	}
	out := *rounds[position-1]
	return &out, nil
}

func (s *Store) IncrementRoundGuessCount(_ context.Context, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rounds := range s.rounds {
		for _, r := range rounds {
			if r.ID == roundID {
				r.GuessCount++
				return nil
			}
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertGuess(_ context.Context, g store.Guess) (*store.Guess, error) {
	key := guessKey{gameID: g.GameID, playerID: g.PlayerID, position: g.Position}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guesses[key]; ok {
		return nil, store.ErrDuplicate
	}
	if g.ID == "" {
		g.ID = store.NewID()
	}
	g.CreatedAt = time.Now()
	s.guesses[key] = g
	return &g, nil
}

func (s *Store) GuessExists(_ context.Context, gameID, playerID string, position int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.guesses[guessKey{gameID: gameID, playerID: playerID, position: position}]
	return ok, nil
}

func (s *Store) CountGuesses(_ context.Context, gameID, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.guesses {
		if k.gameID == gameID && k.playerID == playerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) SumScores(_ context.Context, gameID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{}
	for _, p := range s.players[gameID] {
		out[p] = 0
	}
	for k, g := range s.guesses {
		if k.gameID == gameID {
			out[k.playerID] += g.Score
		}
	}
	return out, nil
}

func (s *Store) ListGuesses(_ context.Context, gameID, playerID string) ([]store.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Guess
	for k, g := range s.guesses {
		if k.gameID == gameID && k.playerID == playerID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
