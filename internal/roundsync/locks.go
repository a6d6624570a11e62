package roundsync

import (
	"fmt"
	"sync"
)

// Operation names guarded by OperationLocks. Names that carry a player id
// let different players proceed in parallel.
const (
	opMoveNextRound = "move_next_round"
	opFinishGame    = "finish_game"
	opAutoReady     = "auto_ready"
)

func opMarkFinished(playerID string) string { return "mark_finished:" + playerID }
func opMarkReady(playerID string) string    { return "mark_ready:" + playerID }
func opSubmitGuess(playerID string, position int) string {
	return fmt.Sprintf("submit_guess:%s:%d", playerID, position)
}

// OperationLocks is a non-blocking per-game, per-operation try-lock.
type OperationLocks struct {
	mu   sync.Mutex
	held map[string]map[string]struct{}
}

func NewOperationLocks() *OperationLocks {
	return &OperationLocks{held: map[string]map[string]struct{}{}}
}

// TryAcquire returns false without blocking when (gameID, op) is held.
func (l *OperationLocks) TryAcquire(gameID, op string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.held[gameID]
	if ops == nil {
		ops = map[string]struct{}{}
		l.held[gameID] = ops
	}
	if _, busy := ops[op]; busy {
		return false
	}
	ops[op] = struct{}{}
	return true
}

func (l *OperationLocks) Release(gameID, op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.held[gameID]
	if ops == nil {
		return
	}
	delete(ops, op)
	if len(ops) == 0 {
		delete(l.held, gameID)
	}
}

// Do runs fn while holding (gameID, op). ran is false when the lock was
// already held; fn is not called in that case. The lock is released even if
// fn panics.
func (l *OperationLocks) Do(gameID, op string, fn func() error) (ran bool, err error) {
	if !l.TryAcquire(gameID, op) {
		return false, nil
	}
	defer l.Release(gameID, op)
	return true, fn()
}

// Held reports the operation names currently held for gameID.
func (l *OperationLocks) Held(gameID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.held[gameID]))
	for op := range l.held[gameID] {
		out = append(out, op)
	}
	return out
}

func (l *OperationLocks) sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
