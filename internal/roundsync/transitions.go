package roundsync

import (
	"context"
	"fmt"
	"sort"

	"wallpaper-guesser/internal/store"

	"github.com/rs/zerolog/log"
)

const tokenAutoReadySweep = "auto_ready_sweep"

// FinishedResult is the round progress after a player finished.
type FinishedResult struct {
	Round         int  `json:"round"`
	RoundComplete bool `json:"round_complete"`
	WaitingCount  int  `json:"waiting_count"`
	TotalCount    int  `json:"total_count"`
}

type ReadyResult struct {
	Round    int      `json:"round"`
	AllReady bool     `json:"all_ready"`
	Ready    []string `json:"ready"`
	Eligible []string `json:"eligible"`
}

type FinishResult struct {
	WinnerID string           `json:"winner_id"`
	Scores   map[string]int64 `json:"scores"`
}

func finishedResultLocked(st *SyncState, round int) FinishedResult {
	return FinishedResult{
		Round:         st.currentRound,
		RoundComplete: st.currentRound == round && st.allFinishedLocked(),
		WaitingCount:  len(st.participants) - len(st.finishedCurrent),
		TotalCount:    len(st.participants),
	}
}

func readyResultLocked(st *SyncState) ReadyResult {
	return ReadyResult{
		Round:    st.currentRound,
		AllReady: st.readyCoversEligibleLocked(),
		Ready:    st.ready.sorted(),
		Eligible: st.eligibleLocked().sorted(),
	}
}

func (s *SyncState) readyCoversEligibleLocked() bool {
	eligible := s.eligibleLocked()
	if len(eligible) == 0 {
		return false
	}
	for p := range eligible {
		if !s.ready.has(p) {
			return false
		}
	}
	return true
}

func (s *SyncState) acceptsReadyLocked() bool {
	return s.phase == PhaseRoundComplete || s.phase == PhaseAwaitingReady
}

// MarkFinished records that playerID has a durable guess for result.Round.
// It must only be called after the guess write succeeded.
func (c *Coordinator) MarkFinished(ctx context.Context, gameID, playerID string, result RoundResult) (FinishedResult, error) {
	st, err := c.state(ctx, gameID)
	if err != nil {
		return FinishedResult{}, err
	}
	var (
		out       FinishedResult
		completed bool
	)
	ran, err := c.locks.Do(gameID, opMarkFinished(playerID), func() error {
		st.mu.Lock()
		defer st.mu.Unlock()
		if !st.isParticipantLocked(playerID) {
			return fmt.Errorf("%w: %s", ErrForbidden, playerID)
		}
		switch {
		case st.phase == PhaseGameFinished:
		case result.Round == st.currentRound:
			st.finishedCurrent[playerID] = struct{}{}
			st.results[playerID] = result
			if st.phase == PhaseAwaitingGuesses && st.allFinishedLocked() {
				st.phase = PhaseRoundComplete
				completed = true
			}
		case result.Round < st.currentRound:
			st.finishedPrevious[playerID] = struct{}{}
		default:
			log.Debug().Str("game_id", gameID).Str("player_id", playerID).
				Int("round", result.Round).Int("current_round", st.currentRound).
				Msg("guess ahead of current round")
		}
		out = finishedResultLocked(st, result.Round)
		return nil
	})
	if err != nil {
		return FinishedResult{}, err
	}
	if !ran {
		// Another finish for this player is in flight; the durable write is
		// already visible, so reconcile instead of waiting.
		view, err := c.Reconcile(ctx, gameID)
		if err != nil {
			return FinishedResult{}, err
		}
		return FinishedResult{
			Round:         view.CurrentRound,
			RoundComplete: view.CurrentRound == result.Round && view.WaitingCount() == 0,
			WaitingCount:  view.WaitingCount(),
			TotalCount:    len(view.Participants),
		}, nil
	}

	c.broadcast(gameID, EventPlayerFinishedRound, PlayerFinishedRoundPayload{
		PlayerID:     playerID,
		Round:        result.Round,
		WaitingCount: out.WaitingCount,
		TotalCount:   out.TotalCount,
	})
	if completed {
		log.Info().Str("game_id", gameID).Int("round", out.Round).Msg("round complete")
		c.onRoundComplete(gameID, out.Round)
	}
	return out, nil
}

// onRoundComplete broadcasts round_completed and arms the auto-ready
// fallback at most once per round, however many paths detect completion.
func (c *Coordinator) onRoundComplete(gameID string, round int) {
	st, ok := c.registry.Peek(gameID)
	if !ok {
		return
	}
	st.mu.Lock()
	if st.currentRound != round || !st.acceptsReadyLocked() {
		st.mu.Unlock()
		return
	}
	st.phase = PhaseAwaitingReady
	announce := st.claimOnceLocked(fmt.Sprintf("round_completed:%d", round))
	arm := st.claimOnceLocked(fmt.Sprintf("auto_ready:%d", round))
	payload := RoundCompletedPayload{
		Round:        round,
		TotalRounds:  st.totalRounds,
		IsFinalRound: round >= st.totalRounds,
		Results:      make([]RoundResult, 0, len(st.results)),
	}
	for _, p := range st.participants {
		if r, ok := st.results[p]; ok {
			payload.Results = append(payload.Results, r)
		}
	}
	st.mu.Unlock()

	if announce {
		c.broadcast(gameID, EventRoundCompleted, payload)
	}
	if arm {
		c.scheduleAutoReady(gameID, round)
	}
}

// MarkReady records playerID's readiness to leave the current round and
// advances the game once every eligible player is ready. A concurrent
// duplicate returns the current view without error.
func (c *Coordinator) MarkReady(ctx context.Context, gameID, playerID string) (ReadyResult, error) {
	return c.markReady(ctx, gameID, playerID, false)
}

func (c *Coordinator) markReady(ctx context.Context, gameID, playerID string, auto bool) (ReadyResult, error) {
	if gameID == "" || playerID == "" {
		return ReadyResult{}, fmt.Errorf("%w: game_id and player_id are required", ErrInvalidRequest)
	}
	st, err := c.state(ctx, gameID)
	if err != nil {
		return ReadyResult{}, err
	}
	var (
		out       ReadyResult
		changed   bool
		doAdvance bool
	)
	ran, err := c.locks.Do(gameID, opMarkReady(playerID), func() error {
		st.mu.Lock()
		defer st.mu.Unlock()
		if !st.isParticipantLocked(playerID) {
			return fmt.Errorf("%w: %s", ErrForbidden, playerID)
		}
		if st.phase == PhaseGameFinished {
			return fmt.Errorf("%w: game already finished", ErrInvalidState)
		}
		if !st.eligibleLocked().has(playerID) {
			return ErrNotEligible
		}
		if st.phase == PhaseAwaitingGuesses && !st.finishedCurrent.has(playerID) {
			// Ready for a round that already advanced.
			out = readyResultLocked(st)
			out.AllReady = false
			return nil
		}
		if !st.ready.has(playerID) {
			st.ready[playerID] = struct{}{}
			changed = true
		}
		out = readyResultLocked(st)
		doAdvance = st.acceptsReadyLocked() && out.AllReady
		if !st.acceptsReadyLocked() {
			out.AllReady = false
		}
		return nil
	})
	if err != nil {
		return ReadyResult{}, err
	}
	if !ran {
		st.mu.Lock()
		out = readyResultLocked(st)
		st.mu.Unlock()
		return out, nil
	}
	if changed {
		metricReadySignalsTotal.Add(1)
		c.broadcast(gameID, EventPlayerReadyUpdate, PlayerReadyUpdatePayload{
			PlayerID: playerID,
			Round:    out.Round,
			Ready:    out.Ready,
			Eligible: out.Eligible,
			AutoMark: auto,
		})
	}
	if doAdvance {
		if err := c.Advance(ctx, gameID); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Int("round", out.Round).Msg("advance after ready failed")
		}
	}
	return out, nil
}

// Advance moves a game whose eligible players are all ready to the next
// round, or finishes it after the final round.
func (c *Coordinator) Advance(ctx context.Context, gameID string) error {
	st, err := c.state(ctx, gameID)
	if err != nil {
		return err
	}
	var (
		moved   bool
		final   bool
		round   int
		started RoundStartedPayload
	)
	ran, err := c.locks.Do(gameID, opMoveNextRound, func() error {
		st.mu.Lock()
		defer st.mu.Unlock()
		if !st.acceptsReadyLocked() || !st.readyCoversEligibleLocked() {
			return nil
		}
		round = st.currentRound
		if !st.claimOnceLocked(advanceToken(round)) {
			return nil
		}
		if st.currentRound >= st.totalRounds {
			st.phase = PhaseAdvancing
			final = true
			return nil
		}
		st.phase = PhaseAdvancing
		st.lastCompleted = st.currentRound
		st.currentRound++
		st.finishedPrevious = st.finishedCurrent
		st.finishedCurrent = playerSet{}
		st.ready = playerSet{}
		st.results = map[string]RoundResult{}
		st.once = map[string]struct{}{}
		st.phase = PhaseAwaitingGuesses
		moved = true
		started = RoundStartedPayload{Round: st.currentRound, TotalRounds: st.totalRounds}
		return nil
	})
	if err != nil || !ran {
		return err
	}
	if moved || final {
		c.stopTimer(gameID)
	}
	if moved {
		metricRoundsAdvancedTotal.Add(1)
		log.Info().Str("game_id", gameID).Int("round", started.Round).Msg("round started")
		c.broadcast(gameID, EventRoundStarted, started)
	}
	if final {
		if _, err := c.FinishGame(ctx, gameID); err != nil {
			c.reopenFinalRound(gameID, round)
			return err
		}
	}
	return nil
}

func advanceToken(round int) string {
	return fmt.Sprintf("advance:%d", round)
}

// reopenFinalRound undoes a final-round advance whose finish failed, so the
// next ready signal retries it.
func (c *Coordinator) reopenFinalRound(gameID string, round int) {
	st, ok := c.registry.Peek(gameID)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.currentRound != round {
		return
	}
	delete(st.once, advanceToken(round))
	if st.phase == PhaseAdvancing || st.phase == PhaseRoundComplete {
		st.phase = PhaseAwaitingReady
	}
}

// FinishGame writes the terminal status after verifying from the store that
// every participant guessed every round. Finishing an already finished game
// returns the stored winner without broadcasting again.
func (c *Coordinator) FinishGame(ctx context.Context, gameID string) (FinishResult, error) {
	var res FinishResult
	ran, err := c.locks.Do(gameID, opFinishGame, func() error {
		game, err := c.store.GetGame(ctx, gameID)
		if err != nil {
			return storeErr("load game", err)
		}
		if game.Status == store.GameStatusFinished {
			scores, err := c.store.SumScores(ctx, gameID)
			if err != nil {
				return storeErr("sum scores", err)
			}
			res = FinishResult{WinnerID: game.WinnerID, Scores: scores}
			return nil
		}
		if game.Status != store.GameStatusInProgress {
			return fmt.Errorf("%w: game is %s", ErrInvalidState, game.Status)
		}

		progress, err := c.loadProgress(ctx, gameID)
		if err != nil {
			return err
		}
		c.applyProgress(gameID, progress)
		if len(progress.participants) == 0 {
			return fmt.Errorf("%w: game has no participants", ErrInvalidState)
		}
		var waiting []string
		for _, p := range progress.participants {
			if progress.counts[p] != progress.totalRounds {
				waiting = append(waiting, p)
			}
		}
		if len(waiting) > 0 {
			sort.Strings(waiting)
			if st, ok := c.registry.Peek(gameID); ok {
				// Memory ran ahead of the store; reopen the final round so the
				// missing guesses can complete it again.
				st.mu.Lock()
				st.once = map[string]struct{}{}
				st.mu.Unlock()
			}
			c.broadcast(gameID, EventGameWaitingForPlayers, GameWaitingForPlayersPayload{
				TotalRounds: progress.totalRounds,
				WaitingOn:   waiting,
				Counts:      progress.counts,
			})
			return fmt.Errorf("%w: waiting for %d players", ErrInvalidState, len(waiting))
		}

		scores, err := c.store.SumScores(ctx, gameID)
		if err != nil {
			return storeErr("sum scores", err)
		}
		winner := pickWinner(progress.participants, scores)
		if err := c.store.CompleteGame(ctx, gameID, winner); err != nil {
			return storeErr("complete game", err)
		}
		if st, ok := c.registry.Peek(gameID); ok {
			st.mu.Lock()
			st.phase = PhaseGameFinished
			st.mu.Unlock()
		}
		res = FinishResult{WinnerID: winner, Scores: scores}
		metricGamesFinishedTotal.Add(1)
		log.Info().Str("game_id", gameID).Str("winner_id", winner).Msg("game finished")
		c.broadcast(gameID, EventGameFinished, GameFinishedPayload{WinnerID: winner, Scores: scores})
		c.stopTimer(gameID)
		c.registry.Delete(gameID)
		return nil
	})
	if err != nil {
		return FinishResult{}, err
	}
	if !ran {
		return FinishResult{}, ErrOperationInFlight
	}
	return res, nil
}

// pickWinner returns the highest scorer; ties go to the lowest player id.
func pickWinner(participants []string, scores map[string]int64) string {
	ids := sortedCopy(participants)
	winner := ""
	var best int64
	for _, p := range ids {
		s := scores[p]
		if winner == "" || s > best {
			winner, best = p, s
		}
	}
	return winner
}

// autoReadySweep marks ready every player who finished round but never
// signalled, so an absent client cannot stall the game.
func (c *Coordinator) autoReadySweep(ctx context.Context, gameID string, round int) {
	st, ok := c.registry.Peek(gameID)
	if !ok {
		return
	}
	if !st.claimInflight(tokenAutoReadySweep, c.opts.Now(), c.opts.DebounceWindow) {
		return
	}
	defer st.clearInflight(tokenAutoReadySweep)

	_, _ = c.locks.Do(gameID, opAutoReady, func() error {
		st.mu.Lock()
		if st.currentRound != round || !st.acceptsReadyLocked() {
			st.mu.Unlock()
			return nil
		}
		var pending []string
		for _, p := range st.participants {
			if st.finishedCurrent.has(p) && !st.ready.has(p) {
				pending = append(pending, p)
			}
		}
		st.mu.Unlock()

		connected := map[string]bool{}
		for _, p := range c.currentBroadcaster().ConnectedPlayers(gameID) {
			connected[p] = true
		}
		for _, p := range pending {
			log.Info().Str("game_id", gameID).Str("player_id", p).Int("round", round).
				Bool("connected", connected[p]).Msg("auto-ready")
			metricAutoReadyTotal.Add(1)
			if _, err := c.markReady(ctx, gameID, p, true); err != nil {
				log.Warn().Err(err).Str("game_id", gameID).Str("player_id", p).Msg("auto-ready failed")
			}
		}
		return nil
	})
}
