package roundsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLocksTryAcquire(t *testing.T) {
	l := NewOperationLocks()
	require.True(t, l.TryAcquire("g1", opMarkReady("p1")))
	assert.False(t, l.TryAcquire("g1", opMarkReady("p1")))
	assert.True(t, l.TryAcquire("g1", opMarkReady("p2")))
	assert.True(t, l.TryAcquire("g2", opMarkReady("p1")))
	assert.ElementsMatch(t, []string{"mark_ready:p1", "mark_ready:p2"}, l.Held("g1"))

	l.Release("g1", opMarkReady("p1"))
	l.Release("g1", opMarkReady("p2"))
	l.Release("g2", opMarkReady("p1"))
	assert.Equal(t, 0, l.sessions())
	assert.Empty(t, l.Held("g1"))
}

func TestOperationLocksDoReleasesOnErrorAndPanic(t *testing.T) {
	l := NewOperationLocks()
	boom := errors.New("boom")

	ran, err := l.Do("g1", opFinishGame, func() error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, l.sessions())

	assert.Panics(t, func() {
		_, _ = l.Do("g1", opFinishGame, func() error { panic("bad") })
	})
	assert.Equal(t, 0, l.sessions())

	require.True(t, l.TryAcquire("g1", opFinishGame))
	ran, err = l.Do("g1", opFinishGame, func() error {
		t.Fatal("must not run while held")
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)
}
