package roundsync

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"wallpaper-guesser/internal/store"
	"wallpaper-guesser/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoPlayersAdvanceAfterBothReady(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest", "city"}, Options{})

	first := h.guess(t, "p1", 1, "  LAKE ")
	assert.True(t, first.Correct)
	assert.Equal(t, int64(100), first.Score)
	assert.False(t, first.RoundComplete)
	assert.Equal(t, 1, first.WaitingCount)
	assert.Equal(t, 2, first.TotalCount)

	second := h.guess(t, "p2", 1, "lake")
	assert.True(t, second.RoundComplete)
	assert.Equal(t, 0, second.WaitingCount)

	v := h.view(t)
	assert.Equal(t, PhaseAwaitingReady, v.Phase)
	assert.Len(t, v.Results, 2)
	assert.Equal(t, 1, h.events.count(EventRoundCompleted))

	assert.False(t, h.ready(t, "p1").AllReady)
	assert.True(t, h.ready(t, "p2").AllReady)

	v = h.view(t)
	assert.Equal(t, 2, v.CurrentRound)
	assert.Equal(t, PhaseAwaitingGuesses, v.Phase)
	assert.Empty(t, v.FinishedCurrent)
	assert.Empty(t, v.Ready)
	assert.Equal(t, []string{"p1", "p2"}, v.FinishedPrevious)
	assert.Equal(t, 1, h.events.count(EventRoundStarted))
	requireInvariants(t, v)
}

func TestDuplicateGuessIsConflict(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest", "city"}, Options{})
	h.guess(t, "p1", 1, "lake")

	_, err := h.coord.SubmitGuess(context.Background(), GuessRequest{
		GameID: h.gameID, Position: 1, PlayerID: "p1", Answer: "river",
	})
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, ErrDuplicateGuess)
	status, code := MapError(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_submitted", code)

	n, err := h.store.CountGuesses(context.Background(), h.gameID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAutoReadySweepAdvancesPastDisconnectedPlayer(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest", "city"}, Options{
		AutoReadyDelay: 20 * time.Millisecond,
		DebounceWindow: 10 * time.Millisecond,
	})

	h.guess(t, "p1", 1, "lake")
	h.guess(t, "p2", 1, "lake")
	_, _ = h.coord.MarkReady(context.Background(), h.gameID, "p1")
	_, _ = h.coord.MarkReady(context.Background(), h.gameID, "p2")
	require.Eventually(t, func() bool { return h.view(t).CurrentRound == 2 }, 2*time.Second, 5*time.Millisecond)

	h.guess(t, "p1", 2, "forest")
	h.guess(t, "p2", 2, "forest")
	h.events.mu.Lock()
	h.events.connected = []string{"p1"}
	h.events.mu.Unlock()
	h.ready(t, "p1")

	require.Eventually(t, func() bool { return h.view(t).CurrentRound == 3 }, 2*time.Second, 5*time.Millisecond)

	found := false
	h.events.mu.Lock()
	for _, e := range h.events.events {
		if e.event != EventPlayerReadyUpdate {
			continue
		}
		p := e.payload.(PlayerReadyUpdatePayload)
		if p.PlayerID == "p2" && p.Round == 2 && p.AutoMark {
			found = true
		}
	}
	h.events.mu.Unlock()
	assert.True(t, found, "expected an automatic ready for p2 in round 2")
}

func TestRestartRebuildsStateFromStore(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest", "city"}, Options{})
	h.guess(t, "p1", 1, "lake")
	h.guess(t, "p2", 1, "lake")
	h.ready(t, "p1")
	h.ready(t, "p2")
	h.guess(t, "p1", 2, "forest")
	before := h.view(t)
	require.Equal(t, 2, before.CurrentRound)

	restarted := NewCoordinator(h.store, FixedScorer{}, Options{AutoReadyDelay: time.Hour})
	t.Cleanup(restarted.Close)
	after, err := restarted.Snapshot(context.Background(), h.gameID)
	require.NoError(t, err)

	assert.Equal(t, before.CurrentRound, after.CurrentRound)
	assert.Equal(t, before.LastCompletedRound, after.LastCompletedRound)
	assert.Equal(t, before.FinishedCurrent, after.FinishedCurrent)
	assert.Equal(t, before.FinishedPrevious, after.FinishedPrevious)
	assert.Equal(t, PhaseAwaitingGuesses, after.Phase)
}

func TestDuplicateReadyIsNoop(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest"}, Options{})
	h.guess(t, "p1", 1, "lake")
	h.guess(t, "p2", 1, "lake")

	require.True(t, h.coord.locks.TryAcquire(h.gameID, opMarkReady("p1")))
	busy := h.ready(t, "p1")
	assert.Empty(t, busy.Ready)
	h.coord.locks.Release(h.gameID, opMarkReady("p1"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.coord.MarkReady(context.Background(), h.gameID, "p1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	again := h.ready(t, "p1")

	assert.Equal(t, []string{"p1"}, again.Ready)
	assert.False(t, again.AllReady)
	assert.Equal(t, 1, h.events.count(EventPlayerReadyUpdate))
	assert.Equal(t, 1, h.view(t).CurrentRound)
}

func TestReadyBeforeFinishingIsRejected(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake"}, Options{})
	_, err := h.coord.MarkReady(context.Background(), h.gameID, "p1")
	require.ErrorIs(t, err, ErrNotEligible)
	require.ErrorIs(t, err, ErrInvalidState)
	_, code := MapError(err)
	assert.Equal(t, "must_finish_round_first", code)

	_, err = h.coord.MarkReady(context.Background(), h.gameID, "mallory")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFinalRoundFinishesGameWithWinner(t *testing.T) {
	h := newHarness(t, []string{"bob", "alice", "carol"}, []string{"lake"}, Options{})
	h.guess(t, "bob", 1, "lake")
	h.guess(t, "alice", 1, "lake")
	h.guess(t, "carol", 1, "desert")
	h.ready(t, "alice")
	h.ready(t, "bob")
	h.ready(t, "carol")

	game, err := h.store.GetGame(context.Background(), h.gameID)
	require.NoError(t, err)
	assert.Equal(t, store.GameStatusFinished, game.Status)
	assert.Equal(t, "alice", game.WinnerID)
	assert.Equal(t, 0, h.coord.Registry().Len())

	e, ok := h.events.last(EventGameFinished)
	require.True(t, ok)
	payload := e.payload.(GameFinishedPayload)
	assert.Equal(t, "alice", payload.WinnerID)
	assert.Equal(t, int64(0), payload.Scores["carol"])

	v := h.view(t)
	assert.True(t, v.GameFinished())

	again, err := h.coord.FinishGame(context.Background(), h.gameID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.WinnerID)
	assert.Equal(t, 1, h.events.count(EventGameFinished))
}

func TestFinalReadyRetriesFinishAfterStoreError(t *testing.T) {
	ms := memstore.New()
	flaky := &flakyStore{Store: ms}
	h := newHarnessWithStore(t, ms, flaky, []string{"p1", "p2"}, []string{"lake"}, Options{})
	h.guess(t, "p1", 1, "lake")
	h.guess(t, "p2", 1, "desert")

	flaky.sumFailures.Store(1)
	h.ready(t, "p1")
	h.ready(t, "p2")

	game, err := ms.GetGame(context.Background(), h.gameID)
	require.NoError(t, err)
	require.Equal(t, store.GameStatusInProgress, game.Status)
	v := h.view(t)
	assert.Equal(t, PhaseAwaitingReady, v.Phase)
	assert.Equal(t, 0, h.events.count(EventGameFinished))

	h.ready(t, "p2")

	game, err = ms.GetGame(context.Background(), h.gameID)
	require.NoError(t, err)
	assert.Equal(t, store.GameStatusFinished, game.Status)
	assert.Equal(t, "p1", game.WinnerID)
	assert.Equal(t, 1, h.events.count(EventGameFinished))
}

func TestFinishGameWaitsForMissingGuesses(t *testing.T) {
	h := newHarness(t, []string{"p1", "p2"}, []string{"lake", "forest"}, Options{})
	h.guess(t, "p1", 1, "lake")

	_, err := h.coord.FinishGame(context.Background(), h.gameID)
	require.ErrorIs(t, err, ErrInvalidState)

	e, ok := h.events.last(EventGameWaitingForPlayers)
	require.True(t, ok)
	assert.Equal(t, []string{"p1", "p2"}, e.payload.(GameWaitingForPlayersPayload).WaitingOn)

	game, err := h.store.GetGame(context.Background(), h.gameID)
	require.NoError(t, err)
	assert.Equal(t, store.GameStatusInProgress, game.Status)
}

func TestConcurrentPlayersKeepInvariants(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4"}
	h := newHarness(t, players, []string{"a", "b", "c"}, Options{})

	for round := 1; round <= 3; round++ {
		var wg sync.WaitGroup
		for _, p := range players {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				_, err := h.coord.SubmitGuess(context.Background(), GuessRequest{
					GameID: h.gameID, Position: round, PlayerID: p, Answer: "a",
				})
				assert.NoError(t, err)
			}(p)
		}
		wg.Wait()
		requireInvariants(t, h.view(t))

		for _, p := range players {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				_, err := h.coord.MarkReady(context.Background(), h.gameID, p)
				assert.NoError(t, err)
			}(p)
		}
		wg.Wait()
		v := h.view(t)
		requireInvariants(t, v)
		if round < 3 {
			assert.Equal(t, round+1, v.CurrentRound)
		} else {
			assert.True(t, v.GameFinished())
		}
	}
	assert.Equal(t, 2, h.events.count(EventRoundStarted))
	assert.Equal(t, 3, h.events.count(EventRoundCompleted))
}
