package loop_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/loop"
)

func TestLoopOrder(t *testing.T) {
	var (
		l   = loop.New()
		got []int
	)
	for i := range 3 {
		l.Post(func() {
			got = append(got, i)
			if i == 0 {
				l.Post(func() {
					got = append(got, 10)
				})
			}
		})
	}
	require.NoError(t, l.Run(context.Background()))
	assert.True(t, slices.Equal(got, []int{0, 1, 2, 10}), "unexpected order %v", got)
	assert.Zero(t, l.Pending())
}

func TestLoopHold(t *testing.T) {
	var (
		l       = loop.New()
		release = l.Hold()
		done    bool
	)
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Post(func() {
			done = true
		})
		release()
	}()
	require.NoError(t, l.Run(context.Background()))
	assert.True(t, done)
}

func TestLoopUntil(t *testing.T) {
	var (
		l     = loop.New()
		count int
	)
	var tick func()
	tick = func() {
		count++
		l.Post(tick)
	}
	l.Post(tick)
	err := l.Until(context.Background(), func() bool {
		return count >= 5
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, l.Pending())

	l.Close()
	err = l.Until(context.Background(), func() bool {
		return count >= 100
	})
	assert.ErrorIs(t, err, loop.ErrStopped)
}

func TestLoopCancel(t *testing.T) {
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	release := l.Hold()
	defer release()
	cancel()
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}
