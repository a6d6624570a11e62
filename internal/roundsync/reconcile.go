package roundsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallpaper-guesser/internal/store"

	"github.com/rs/zerolog/log"
)

// durableProgress is everything reconciliation reads from the store.
type durableProgress struct {
	status       string
	totalRounds  int
	participants []string
	counts       map[string]int
}

func (d durableProgress) minMax() (int, int) {
	if len(d.participants) == 0 {
		return 0, 0
	}
	lo, hi := d.counts[d.participants[0]], d.counts[d.participants[0]]
	for _, p := range d.participants[1:] {
		n := d.counts[p]
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return lo, hi
}

// Reconcile rebuilds the game's SyncState from durable guess counts. It is
// idempotent and leaves memory untouched when any store read fails.
func (c *Coordinator) Reconcile(ctx context.Context, gameID string) (View, error) {
	view, err := c.reconcile(ctx, gameID)
	if err != nil {
		return View{}, err
	}
	if view.Phase == PhaseRoundComplete {
		c.onRoundComplete(gameID, view.CurrentRound)
	}
	return view, nil
}

func (c *Coordinator) reconcile(ctx context.Context, gameID string) (View, error) {
	if gameID == "" {
		return View{}, fmt.Errorf("%w: game_id is required", ErrInvalidRequest)
	}
	v, err, shared := c.group.Do(gameID, func() (any, error) {
		progress, err := c.loadProgress(ctx, gameID)
		if err != nil {
			return View{}, err
		}
		return c.applyProgress(gameID, progress), nil
	})
	metricReconcileTotal.Add(1)
	if err != nil {
		metricReconcileErrors.Add(1)
		log.Warn().Err(err).Str("game_id", gameID).Msg("reconcile failed, keeping in-memory state")
		return View{}, err
	}
	if shared {
		log.Debug().Str("game_id", gameID).Msg("reconcile shared with concurrent caller")
	}
	return v.(View), nil
}

func (c *Coordinator) loadProgress(ctx context.Context, gameID string) (durableProgress, error) {
	var (
		progress durableProgress
		err      error
	)
	backoff := c.opts.ReadBackoff
	for attempt := 1; attempt <= c.opts.ReadAttempts; attempt++ {
		progress, err = c.readProgress(ctx, gameID)
		if err == nil || errors.Is(err, ErrNotFound) || attempt == c.opts.ReadAttempts {
			break
		}
		log.Debug().Err(err).Str("game_id", gameID).Int("attempt", attempt).Msg("reconcile read retry")
		select {
		case <-ctx.Done():
			return durableProgress{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return durableProgress{}, err
		}
		return durableProgress{}, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return progress, nil
}

func (c *Coordinator) readProgress(ctx context.Context, gameID string) (durableProgress, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return durableProgress{}, storeErr("load game", err)
	}
	participants, err := c.store.ListParticipants(ctx, gameID)
	if err != nil {
		return durableProgress{}, storeErr("load participants", err)
	}
	counts := make(map[string]int, len(participants))
	for _, p := range participants {
		n, err := c.store.CountGuesses(ctx, gameID, p)
		if err != nil {
			return durableProgress{}, storeErr("count guesses", err)
		}
		counts[p] = n
	}
	return durableProgress{
		status:       game.Status,
		totalRounds:  game.TotalRounds,
		participants: participants,
		counts:       counts,
	}, nil
}

func (c *Coordinator) applyProgress(gameID string, d durableProgress) View {
	st, created := c.registry.Init(gameID, d.participants, d.totalRounds)
	minCount, maxCount := d.minMax()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.participants = sortedCopy(d.participants)
	st.totalRounds = d.totalRounds
	if created {
		st.currentRound = clamp(maxCount, 1, d.totalRounds)
	}
	st.lastCompleted = minCount

	st.finishedCurrent = playerSet{}
	st.finishedPrevious = playerSet{}
	for _, p := range st.participants {
		n := d.counts[p]
		if n >= st.currentRound {
			st.finishedCurrent[p] = struct{}{}
		}
		if st.lastCompleted > 0 && n >= st.lastCompleted {
			st.finishedPrevious[p] = struct{}{}
		}
	}
	eligible := st.eligibleLocked()
	for p := range st.ready {
		if !eligible.has(p) {
			delete(st.ready, p)
		}
	}
	for p := range st.results {
		if !st.finishedCurrent.has(p) {
			delete(st.results, p)
		}
	}

	switch {
	case d.status == store.GameStatusFinished:
		st.phase = PhaseGameFinished
	case st.allFinishedLocked():
		if st.phase != PhaseAwaitingReady {
			st.phase = PhaseRoundComplete
		}
	default:
		st.phase = PhaseAwaitingGuesses
	}
	return st.viewLocked()
}

func storeErr(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
