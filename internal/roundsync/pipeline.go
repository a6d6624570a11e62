package roundsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallpaper-guesser/internal/store"

	"github.com/rs/zerolog/log"
)

const defaultCorrectScore int64 = 100

// Scorer prices a guess. The engine only needs a number.
type Scorer interface {
	Score(in ScoreInput) int64
}

type ScoreInput struct {
	GameID   string
	PlayerID string
	Round    int
	Correct  bool
}

// FixedScorer awards Reward for a correct guess and nothing otherwise.
type FixedScorer struct {
	Reward int64
}

func (s FixedScorer) Score(in ScoreInput) int64 {
	if !in.Correct {
		return 0
	}
	if s.Reward <= 0 {
		return defaultCorrectScore
	}
	return s.Reward
}

type GuessRequest struct {
	GameID   string
	Position int
	PlayerID string
	Answer   string
}

type GuessResult struct {
	Round         int   `json:"round"`
	Correct       bool  `json:"correct"`
	Score         int64 `json:"score"`
	RoundComplete bool  `json:"round_complete"`
	WaitingCount  int   `json:"waiting_count"`
	TotalCount    int   `json:"total_count"`
}

func answersMatch(submitted, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(expected))
}

// SubmitGuess is the single entry point for guesses from every transport.
// The guess is written once; the coordinator only hears about it after the
// write succeeded.
func (c *Coordinator) SubmitGuess(ctx context.Context, req GuessRequest) (GuessResult, error) {
	res, err := c.submitGuess(ctx, req)
	if err != nil {
		metricGuessRejectedTotal.Add(1)
		return GuessResult{}, err
	}
	metricGuessSubmitTotal.Add(1)
	return res, nil
}

func (c *Coordinator) submitGuess(ctx context.Context, req GuessRequest) (GuessResult, error) {
	if req.GameID == "" || req.PlayerID == "" {
		return GuessResult{}, fmt.Errorf("%w: game_id and player_id are required", ErrInvalidRequest)
	}
	if req.Position < 1 {
		return GuessResult{}, fmt.Errorf("%w: round must be >= 1", ErrInvalidRequest)
	}

	var res GuessResult
	ran, err := c.locks.Do(req.GameID, opSubmitGuess(req.PlayerID, req.Position), func() error {
		round, err := c.store.GetRoundByPosition(ctx, req.GameID, req.Position)
		if err != nil {
			return storeErr("load round", err)
		}
		member, err := c.store.IsParticipant(ctx, req.GameID, req.PlayerID)
		if err != nil {
			return storeErr("check participant", err)
		}
		if !member {
			return fmt.Errorf("%w: %s is not in game %s", ErrForbidden, req.PlayerID, req.GameID)
		}
		game, err := c.store.GetGame(ctx, req.GameID)
		if err != nil {
			return storeErr("load game", err)
		}
		if game.Status != store.GameStatusInProgress {
			return fmt.Errorf("%w: game is %s", ErrInvalidState, game.Status)
		}
		st, err := c.state(ctx, req.GameID)
		if err != nil {
			return err
		}
		st.mu.Lock()
		current := st.currentRound
		st.mu.Unlock()
		if req.Position > current {
			return fmt.Errorf("%w: round %d, current is %d", ErrRoundNotOpen, req.Position, current)
		}
		exists, err := c.store.GuessExists(ctx, req.GameID, req.PlayerID, req.Position)
		if err != nil {
			return storeErr("check guess", err)
		}
		if exists {
			return ErrDuplicateGuess
		}

		correct := answersMatch(req.Answer, round.Answer)
		score := c.scorer.Score(ScoreInput{
			GameID:   req.GameID,
			PlayerID: req.PlayerID,
			Round:    req.Position,
			Correct:  correct,
		})
		if _, err := c.store.InsertGuess(ctx, store.Guess{
			ID:       store.NewID(),
			GameID:   req.GameID,
			RoundID:  round.ID,
			Position: req.Position,
			PlayerID: req.PlayerID,
			Answer:   strings.TrimSpace(req.Answer),
			Correct:  correct,
			Score:    score,
		}); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateGuess
			}
			return fmt.Errorf("write guess: %w", err)
		}
		if err := c.store.IncrementRoundGuessCount(ctx, round.ID); err != nil {
			log.Warn().Err(err).Str("game_id", req.GameID).Int("round", req.Position).Msg("increment guess count failed")
		}
		log.Info().Str("game_id", req.GameID).Str("player_id", req.PlayerID).
			Int("round", req.Position).Bool("correct", correct).Msg("guess recorded")

		finished, err := c.MarkFinished(ctx, req.GameID, req.PlayerID, RoundResult{
			PlayerID: req.PlayerID,
			Round:    req.Position,
			Answer:   strings.TrimSpace(req.Answer),
			Correct:  correct,
			Score:    score,
		})
		if err != nil {
			return fmt.Errorf("mark finished: %w", err)
		}
		res = GuessResult{
			Round:         req.Position,
			Correct:       correct,
			Score:         score,
			RoundComplete: finished.RoundComplete,
			WaitingCount:  finished.WaitingCount,
			TotalCount:    finished.TotalCount,
		}
		return nil
	})
	if err != nil {
		return GuessResult{}, err
	}
	if !ran {
		return GuessResult{}, ErrOperationInFlight
	}
	return res, nil
}
