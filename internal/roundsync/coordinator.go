package roundsync

import (
	"context"
	"sync"
	"time"

	"wallpaper-guesser/internal/store"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAutoReadyDelay = 5 * time.Second
	defaultDebounceWindow = 1500 * time.Millisecond
	defaultReadAttempts   = 3
	defaultReadBackoff    = 50 * time.Millisecond
)

// Store is the durable state the engine reads and writes. Both the Postgres
// store and memstore satisfy it.
type Store interface {
	GetGame(ctx context.Context, gameID string) (*store.Game, error)
	GetRoundByPosition(ctx context.Context, gameID string, position int) (*store.Round, error)
	ListParticipants(ctx context.Context, gameID string) ([]string, error)
	IsParticipant(ctx context.Context, gameID, playerID string) (bool, error)
	CountGuesses(ctx context.Context, gameID, playerID string) (int, error)
	GuessExists(ctx context.Context, gameID, playerID string, position int) (bool, error)
	InsertGuess(ctx context.Context, g store.Guess) (*store.Guess, error)
	IncrementRoundGuessCount(ctx context.Context, roundID string) error
	SumScores(ctx context.Context, gameID string) (map[string]int64, error)
	CompleteGame(ctx context.Context, gameID, winnerID string) error
}

// Broadcaster delivers engine events to live connections. Implementations
// must not call back into the coordinator synchronously while holding their
// own locks.
type Broadcaster interface {
	Broadcast(gameID, event string, payload any)
	ConnectedPlayers(gameID string) []string
	SessionEvicted(gameID string)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, string, any)    {}
func (noopBroadcaster) ConnectedPlayers(string) []string { return nil }
func (noopBroadcaster) SessionEvicted(string)            {}

type Options struct {
	AutoReadyDelay time.Duration
	DebounceWindow time.Duration
	ReadAttempts   int
	ReadBackoff    time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.AutoReadyDelay <= 0 {
		o.AutoReadyDelay = defaultAutoReadyDelay
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaultDebounceWindow
	}
	if o.ReadAttempts <= 0 {
		o.ReadAttempts = defaultReadAttempts
	}
	if o.ReadBackoff <= 0 {
		o.ReadBackoff = defaultReadBackoff
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Coordinator drives the round state machine of every live game.
type Coordinator struct {
	store    Store
	scorer   Scorer
	registry *Registry
	locks    *OperationLocks
	group    singleflight.Group
	opts     Options

	mu          sync.Mutex
	broadcaster Broadcaster
	timers      map[string]*time.Timer
}

func NewCoordinator(st Store, scorer Scorer, opts Options) *Coordinator {
	opts = opts.withDefaults()
	if scorer == nil {
		scorer = FixedScorer{}
	}
	return &Coordinator{
		store:       st,
		scorer:      scorer,
		registry:    NewRegistry(opts.Now),
		locks:       NewOperationLocks(),
		opts:        opts,
		broadcaster: noopBroadcaster{},
		timers:      map[string]*time.Timer{},
	}
}

func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b == nil {
		b = noopBroadcaster{}
	}
	c.broadcaster = b
}

func (c *Coordinator) currentBroadcaster() Broadcaster {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcaster
}

func (c *Coordinator) broadcast(gameID, event string, payload any) {
	log.Debug().Str("game_id", gameID).Str("event", event).Msg("broadcast")
	c.currentBroadcaster().Broadcast(gameID, event, payload)
}

// Registry exposes the session registry for the janitor and diagnostics.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Snapshot returns the cached state, reconciling from the store when the
// game is not in memory.
func (c *Coordinator) Snapshot(ctx context.Context, gameID string) (View, error) {
	if st, ok := c.registry.Get(gameID); ok {
		return st.View(), nil
	}
	return c.Reconcile(ctx, gameID)
}

// state returns the in-memory state for gameID, rebuilding it from the store
// on a miss.
func (c *Coordinator) state(ctx context.Context, gameID string) (*SyncState, error) {
	if st, ok := c.registry.Get(gameID); ok {
		return st, nil
	}
	if _, err := c.Reconcile(ctx, gameID); err != nil {
		return nil, err
	}
	st, ok := c.registry.Get(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

func (c *Coordinator) scheduleAutoReady(gameID string, round int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.timers[gameID]; t != nil {
		t.Stop()
	}
	c.timers[gameID] = time.AfterFunc(c.opts.AutoReadyDelay, func() {
		c.autoReadySweep(context.Background(), gameID, round)
	})
}

func (c *Coordinator) stopTimer(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.timers[gameID]; t != nil {
		t.Stop()
		delete(c.timers, gameID)
	}
}

// Close stops pending auto-ready timers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
