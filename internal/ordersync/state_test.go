package ordersync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	assert.True(t, isTransitionAllowed(StateStart, StateRecordPersisted))
	assert.True(t, isTransitionAllowed(StateSubmitted, StateDuplicateConfirmed))
	assert.True(t, isTransitionAllowed(StateSessionOpened, StateClosed))
	assert.False(t, isTransitionAllowed(StateStart, StateSubmitted))
	assert.False(t, isTransitionAllowed(StateSessionOpened, StateReleased))
	assert.False(t, isTransitionAllowed(StateRecordFinalized, StateStart))
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	var observed [][2]State
	m := newMachine(func(from, to State) { observed = append(observed, [2]State{from, to}) })

	m.advance(StateRecordPersisted)
	m.advance(StateConfirmed)

	require.ErrorIs(t, m.invalid, ErrInvalidTransition)
	assert.Equal(t, StateRecordPersisted, m.current)
	assert.Equal(t, []State{StateStart, StateRecordPersisted}, m.transitions)
	assert.Equal(t, [][2]State{{StateStart, StateRecordPersisted}}, observed)
	assert.True(t, m.visited(StateStart))
	assert.False(t, m.visited(StateConfirmed))
}

func TestKeyedMutexHonorsContext(t *testing.T) {
	k := newKeyedMutex()

	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	other, err := k.Lock(context.Background(), "b")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	again()

	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}
