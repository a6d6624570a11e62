// Package room tracks the live connections of each game and fans engine
// events out to them.
package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallpaper-guesser/internal/roundsync"
	"wallpaper-guesser/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	EventCaughtUp       = "caught_up"
	EventPlayerPresence = "player_presence"
	EventError          = "error"

	defaultGracePeriod = 30 * time.Second
	defaultBufferSize  = 256
)

// Conn is one live connection. Send must not block.
type Conn interface {
	ID() string
	Send(ev StreamEvent) error
	Close()
}

// Syncer rebuilds a game's round state on join.
type Syncer interface {
	Reconcile(ctx context.Context, gameID string) (roundsync.View, error)
	Snapshot(ctx context.Context, gameID string) (roundsync.View, error)
}

// MembershipStore is consulted before an empty room is dropped.
type MembershipStore interface {
	GetGame(ctx context.Context, gameID string) (*store.Game, error)
	ListParticipants(ctx context.Context, gameID string) ([]string, error)
}

type MemberStatus struct {
	PlayerID string `json:"player_id"`
	Online   bool   `json:"online"`
	Finished bool   `json:"finished"`
	Ready    bool   `json:"ready"`
}

type CaughtUpPayload struct {
	PlayerID    string                 `json:"player_id"`
	Round       int                    `json:"round"`
	TotalRounds int                    `json:"total_rounds"`
	Phase       roundsync.Phase        `json:"phase"`
	Members     []MemberStatus         `json:"members"`
	Result      *roundsync.RoundResult `json:"result,omitempty"`
	Sync        roundsync.View         `json:"sync"`
}

type PlayerPresencePayload struct {
	PlayerID string         `json:"player_id"`
	Online   bool           `json:"online"`
	Members  []MemberStatus `json:"members"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// Room is the set of live connections of one game.
type Room struct {
	gameID      string
	members     map[string]Conn
	buffer      *EventBuffer
	last        roundsync.View
	deleteTimer *time.Timer
}

type Options struct {
	GracePeriod time.Duration
	BufferSize  int
}

type Manager struct {
	syncer Syncer
	store  MembershipStore
	opts   Options

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(syncer Syncer, st MembershipStore, opts Options) *Manager {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &Manager{
		syncer: syncer,
		store:  st,
		opts:   opts,
		rooms:  map[string]*Room{},
	}
}

func (m *Manager) ensureRoomLocked(gameID string) *Room {
	r := m.rooms[gameID]
	if r == nil {
		r = &Room{
			gameID:  gameID,
			members: map[string]Conn{},
			buffer:  NewEventBuffer(m.opts.BufferSize),
		}
		m.rooms[gameID] = r
	}
	return r
}

func membersLocked(r *Room, v roundsync.View) []MemberStatus {
	finished := map[string]bool{}
	for _, p := range v.FinishedCurrent {
		finished[p] = true
	}
	ready := map[string]bool{}
	for _, p := range v.Ready {
		ready[p] = true
	}
	out := make([]MemberStatus, 0, len(v.Participants))
	for _, p := range v.Participants {
		_, online := r.members[p]
		out = append(out, MemberStatus{PlayerID: p, Online: online, Finished: finished[p], Ready: ready[p]})
	}
	return out
}

// Join registers conn as playerID's only live connection in the game,
// closing any connection it replaces, and sends it a caught_up snapshot.
func (m *Manager) Join(ctx context.Context, gameID, playerID string, conn Conn) error {
	view, err := m.syncer.Reconcile(ctx, gameID)
	if err != nil {
		return err
	}
	member := false
	for _, p := range view.Participants {
		if p == playerID {
			member = true
			break
		}
	}
	if !member {
		return fmt.Errorf("%w: %s is not in game %s", roundsync.ErrForbidden, playerID, gameID)
	}

	m.mu.Lock()
	r := m.ensureRoomLocked(gameID)
	if r.deleteTimer != nil {
		r.deleteTimer.Stop()
		r.deleteTimer = nil
	}
	old := r.members[playerID]
	r.members[playerID] = conn
	r.last = view
	members := membersLocked(r, view)
	m.mu.Unlock()

	if old != nil && old.ID() != conn.ID() {
		log.Info().Str("game_id", gameID).Str("player_id", playerID).Str("conn_id", old.ID()).Msg("replacing stale connection")
		old.Close()
	}

	caughtUp := CaughtUpPayload{
		PlayerID:    playerID,
		Round:       view.CurrentRound,
		TotalRounds: view.TotalRounds,
		Phase:       view.Phase,
		Members:     members,
		Sync:        view,
	}
	if res, ok := view.Results[playerID]; ok {
		caughtUp.Result = &res
	}
	if err := conn.Send(NewDirectEvent(EventCaughtUp, gameID, caughtUp)); err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Str("player_id", playerID).Msg("caught_up send failed")
	}
	m.Broadcast(gameID, EventPlayerPresence, PlayerPresencePayload{PlayerID: playerID, Online: true, Members: members})
	return nil
}

// Leave removes conn if it is still playerID's registered connection. It
// reports whether anything was removed.
func (m *Manager) Leave(gameID, playerID string, conn Conn) bool {
	m.mu.Lock()
	r := m.rooms[gameID]
	if r == nil {
		m.mu.Unlock()
		return false
	}
	current, ok := r.members[playerID]
	if !ok || current.ID() != conn.ID() {
		m.mu.Unlock()
		return false
	}
	delete(r.members, playerID)
	last := r.last
	m.scheduleCollectLocked(r)
	m.mu.Unlock()

	view, err := m.syncer.Snapshot(context.Background(), gameID)
	if err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Msg("presence snapshot failed, using last known state")
		view = last
	}
	m.mu.Lock()
	r.last = view
	members := membersLocked(r, view)
	m.mu.Unlock()

	m.Broadcast(gameID, EventPlayerPresence, PlayerPresencePayload{PlayerID: playerID, Online: false, Members: members})
	return true
}

func (m *Manager) scheduleCollectLocked(r *Room) {
	if len(r.members) > 0 || r.deleteTimer != nil || r.buffer.Watchers() > 0 {
		return
	}
	gameID := r.gameID
	r.deleteTimer = time.AfterFunc(m.opts.GracePeriod, func() {
		m.collect(context.Background(), gameID)
	})
}

// collect drops an empty room once its grace period passed, unless the store
// still shows an in-progress game with players who may reconnect.
func (m *Manager) collect(ctx context.Context, gameID string) {
	m.mu.Lock()
	r := m.rooms[gameID]
	if r == nil {
		m.mu.Unlock()
		return
	}
	r.deleteTimer = nil
	if len(r.members) > 0 || r.buffer.Watchers() > 0 {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	keep, err := m.stillActive(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("room membership check failed, keeping room")
		return
	}
	if keep {
		log.Debug().Str("game_id", gameID).Msg("keeping empty room for in-progress game")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur := m.rooms[gameID]; cur == r && len(r.members) == 0 && r.deleteTimer == nil && r.buffer.Watchers() == 0 {
		m.dropLocked(r)
	}
}

func (m *Manager) stillActive(ctx context.Context, gameID string) (bool, error) {
	if m.store == nil {
		return false, nil
	}
	game, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if game.Status != store.GameStatusInProgress {
		return false, nil
	}
	players, err := m.store.ListParticipants(ctx, gameID)
	if err != nil {
		return false, err
	}
	return len(players) > 0, nil
}

func (m *Manager) dropLocked(r *Room) {
	if r.deleteTimer != nil {
		r.deleteTimer.Stop()
	}
	r.buffer.Close()
	delete(m.rooms, r.gameID)
	log.Info().Str("game_id", r.gameID).Msg("room removed")
}

// Broadcast appends the event to the room buffer and sends it to every live
// connection.
func (m *Manager) Broadcast(gameID, event string, payload any) {
	m.mu.Lock()
	r := m.ensureRoomLocked(gameID)
	ev := r.buffer.Append(event, gameID, payload)
	conns := make([]Conn, 0, len(r.members))
	for _, c := range r.members {
		conns = append(conns, c)
	}
	m.scheduleCollectLocked(r)
	m.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			log.Debug().Err(err).Str("game_id", gameID).Str("conn_id", c.ID()).Str("event", event).Msg("broadcast send failed")
		}
	}
}

func (m *Manager) MemberCount(gameID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.rooms[gameID]; r != nil {
		return len(r.members)
	}
	return 0
}

func (m *Manager) ConnectedPlayers(gameID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[gameID]
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.members))
	for p := range r.members {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SessionEvicted drops the room of an idle game if nobody is connected.
func (m *Manager) SessionEvicted(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[gameID]
	if r == nil || len(r.members) > 0 || r.buffer.Watchers() > 0 {
		return
	}
	m.dropLocked(r)
}

// Events returns the game's event buffer, creating the room if needed. An
// unused room is collected after the grace period.
func (m *Manager) Events(gameID string) *EventBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.ensureRoomLocked(gameID)
	m.scheduleCollectLocked(r)
	return r.buffer
}

// Watch subscribes a stream reader to the game's room. Every Watch must be
// paired with Unwatch.
func (m *Manager) Watch(gameID string) (*EventBuffer, chan StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.ensureRoomLocked(gameID)
	if r.deleteTimer != nil {
		r.deleteTimer.Stop()
		r.deleteTimer = nil
	}
	return r.buffer, r.buffer.Subscribe()
}

// Unwatch removes a stream reader. The room is scheduled for collection
// once it has neither connections nor readers.
func (m *Manager) Unwatch(gameID string, buf *EventBuffer, ch chan StreamEvent) {
	buf.Unsubscribe(ch)
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.rooms[gameID]; r != nil && r.buffer == buf {
		m.scheduleCollectLocked(r)
	}
}

// Rooms reports how many rooms are live.
func (m *Manager) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// SendError delivers an error event to one connection.
func SendError(conn Conn, gameID, action string, err error) {
	_, code := roundsync.MapError(err)
	if sendErr := conn.Send(NewDirectEvent(EventError, gameID, ErrorPayload{Code: code, Message: err.Error(), Action: action})); sendErr != nil {
		log.Debug().Err(sendErr).Str("game_id", gameID).Str("conn_id", conn.ID()).Str("action", action).Msg("error send failed")
	}
}
