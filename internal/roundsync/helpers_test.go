package roundsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallpaper-guesser/internal/store"
	"wallpaper-guesser/internal/store/memstore"

	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	gameID  string
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	events    []recordedEvent
	connected []string
	evicted   []string
}

func (b *recordingBroadcaster) Broadcast(gameID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{gameID: gameID, event: event, payload: payload})
}

func (b *recordingBroadcaster) ConnectedPlayers(string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.connected...)
}

func (b *recordingBroadcaster) SessionEvicted(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evicted = append(b.evicted, gameID)
}

func (b *recordingBroadcaster) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) last(event string) (recordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].event == event {
			return b.events[i], true
		}
	}
	return recordedEvent{}, false
}

// flakyStore fails CountGuesses while failures is positive and SumScores
// while sumFailures is positive.
type flakyStore struct {
	*memstore.Store
	failures    atomic.Int32
	sumFailures atomic.Int32
	always      atomic.Bool
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) CountGuesses(ctx context.Context, gameID, playerID string) (int, error) {
	if s.always.Load() {
		return 0, errStoreDown
	}
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return 0, errStoreDown
	}
	return s.Store.CountGuesses(ctx, gameID, playerID)
}

func (s *flakyStore) SumScores(ctx context.Context, gameID string) (map[string]int64, error) {
	if s.sumFailures.Load() > 0 {
		s.sumFailures.Add(-1)
		return nil, errStoreDown
	}
	return s.Store.SumScores(ctx, gameID)
}

type harness struct {
	coord  *Coordinator
	store  *memstore.Store
	events *recordingBroadcaster
	gameID string
}

func newHarness(t *testing.T, players []string, answers []string, opts Options) *harness {
	t.Helper()
	ms := memstore.New()
	return newHarnessWithStore(t, ms, ms, players, answers, opts)
}

func newHarnessWithStore(t *testing.T, ms *memstore.Store, st Store, players, answers []string, opts Options) *harness {
	t.Helper()
	g, err := ms.CreateGame(context.Background(), store.NewGame{
		PlayerIDs: players,
		Answers:   answers,
		Status:    store.GameStatusInProgress,
	})
	require.NoError(t, err)
	if opts.AutoReadyDelay == 0 {
		opts.AutoReadyDelay = time.Hour
	}
	opts.ReadBackoff = time.Millisecond
	c := NewCoordinator(st, FixedScorer{Reward: 100}, opts)
	events := &recordingBroadcaster{connected: append([]string(nil), players...)}
	c.SetBroadcaster(events)
	t.Cleanup(c.Close)
	return &harness{coord: c, store: ms, events: events, gameID: g.ID}
}

func (h *harness) guess(t *testing.T, player string, round int, answer string) GuessResult {
	t.Helper()
	res, err := h.coord.SubmitGuess(context.Background(), GuessRequest{
		GameID:   h.gameID,
		Position: round,
		PlayerID: player,
		Answer:   answer,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) ready(t *testing.T, player string) ReadyResult {
	t.Helper()
	res, err := h.coord.MarkReady(context.Background(), h.gameID, player)
	require.NoError(t, err)
	return res
}

func (h *harness) view(t *testing.T) View {
	t.Helper()
	v, err := h.coord.Snapshot(context.Background(), h.gameID)
	require.NoError(t, err)
	return v
}

func requireInvariants(t *testing.T, v View) {
	t.Helper()
	require.LessOrEqual(t, len(v.FinishedCurrent), len(v.Participants))
	eligible := map[string]bool{}
	for _, p := range v.FinishedCurrent {
		eligible[p] = true
	}
	for _, p := range v.FinishedPrevious {
		eligible[p] = true
	}
	for _, p := range v.Ready {
		require.Truef(t, eligible[p], "ready player %s is not eligible", p)
	}
}
