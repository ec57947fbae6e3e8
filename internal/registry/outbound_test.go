package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"roomhub/pkg/types"
)

func TestQueue_PreservesEnqueueOrder(t *testing.T) {
	q := newQueue(8)

	m1 := types.NewSystemFrame("first")
	m2 := types.NewSystemFrame("second")
	require.True(t, q.Enqueue(m1))
	require.True(t, q.Enqueue(m2))

	require.Same(t, m1, <-q.Frames())
	require.Same(t, m2, <-q.Frames())
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	q := newQueue(2)

	require.True(t, q.Enqueue(types.NewSystemFrame("oldest")))
	require.True(t, q.Enqueue(types.NewSystemFrame("middle")))
	require.True(t, q.Enqueue(types.NewSystemFrame("newest")))

	require.Equal(t, 2, q.Len())
	require.Equal(t, uint64(1), q.Dropped())

	first := <-q.Frames()
	second := <-q.Frames()
	require.Equal(t, "middle", first.Text, "oldest frame should have been evicted")
	require.Equal(t, "newest", second.Text)
}

func TestQueue_CloseStopsEnqueueButDrainsPending(t *testing.T) {
	q := newQueue(4)

	require.True(t, q.Enqueue(types.NewSystemFrame("pending")))
	q.Close()
	require.False(t, q.Enqueue(types.NewSystemFrame("late")))

	frame, ok := <-q.Frames()
	require.True(t, ok)
	require.Equal(t, "pending", frame.Text)

	_, ok = <-q.Frames()
	require.False(t, ok, "channel should report closed after draining")
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	q := newQueue(2)
	q.Close()
	q.Close()
	require.False(t, q.Enqueue(types.NewSystemFrame("nope")))
}

func TestQueue_ProducerNeverBlocksWithoutConsumer(t *testing.T) {
	q := newQueue(4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No consumer at all: producers still complete because the
		// queue evicts instead of blocking.
		for i := range 100 {
			q.Enqueue(types.NewSystemFrame(fmt.Sprintf("frame-%d", i)))
		}
	}()

	<-done
	require.Equal(t, 4, q.Len())
	require.Equal(t, uint64(96), q.Dropped())
}
