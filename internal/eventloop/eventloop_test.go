package eventloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/value"
)

func TestTickDrainsAllMicrotasksBeforeOnePostedEvent(t *testing.T) {
	l := New(nil)
	var order []string

	l.PostMicrotask(func(args []value.Value) (value.Value, error) {
		order = append(order, "micro1")
		return value.Undef(), nil
	}, nil)
	l.PostMicrotask(func(args []value.Value) (value.Value, error) {
		order = append(order, "micro2")
		return value.Undef(), nil
	}, nil)
	ev := l.AddEvent(func(args []value.Value) (value.Value, error) {
		order = append(order, "posted")
		return value.Undef(), nil
	}, true, nil, nil)
	l.PostEvent(ev, nil)

	status, err := l.Tick()
	require.NoError(t, err)
	assert.Equal(t, OK, status)
	assert.Equal(t, []string{"micro1", "micro2", "posted"}, order)
}

func TestTickReturnsAgainWhileWorkRemains(t *testing.T) {
	l := New(nil)
	ev1 := l.AddEvent(func(args []value.Value) (value.Value, error) { return value.Undef(), nil }, true, nil, nil)
	ev2 := l.AddEvent(func(args []value.Value) (value.Value, error) { return value.Undef(), nil }, true, nil, nil)
	l.PostEvent(ev1, nil)
	l.PostEvent(ev2, nil)

	status, err := l.Tick()
	require.NoError(t, err)
	// ev2 remains queued behind ev1; Tick only dispatches at most one
	// posted job per call, so the loop still has pending work.
	assert.Equal(t, AGAIN, status)
}

func TestTickPropagatesDispatchError(t *testing.T) {
	l := New(nil)
	boom := errors.New("boom")
	l.PostMicrotask(func(args []value.Value) (value.Value, error) { return value.Undef(), boom }, nil)

	status, err := l.Tick()
	assert.Equal(t, AGAIN, status)
	assert.ErrorIs(t, err, boom)
}

func TestOnceEventIsRemovedAfterDispatch(t *testing.T) {
	l := New(nil)
	calls := 0
	ev := l.AddEvent(func(args []value.Value) (value.Value, error) {
		calls++
		return value.Undef(), nil
	}, true, nil, nil)
	l.PostEvent(ev, nil)
	l.Tick()
	l.PostEvent(ev, nil) // deleted: must not re-enqueue
	l.Tick()
	assert.Equal(t, 1, calls)
}

func TestDelEventDequeuesPendingPost(t *testing.T) {
	l := New(nil)
	destroyed := false
	calls := 0
	ev := l.AddEvent(func(args []value.Value) (value.Value, error) {
		calls++
		return value.Undef(), nil
	}, false, nil, func() { destroyed = true })
	l.PostEvent(ev, nil)
	l.DelEvent(ev)
	l.Tick()
	assert.Equal(t, 0, calls)
	assert.True(t, destroyed)
}

func TestWaitingReflectsArmedTimerUntilItFires(t *testing.T) {
	l := New(nil)
	ev := l.AddEvent(func(args []value.Value) (value.Value, error) { return value.Undef(), nil }, true, nil, nil)
	l.StartTimer(ev, 10*time.Millisecond, nil)
	assert.True(t, l.Waiting())
	assert.True(t, l.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, l.Waiting())
	assert.True(t, l.Posted())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "AGAIN", AGAIN.String())
}
