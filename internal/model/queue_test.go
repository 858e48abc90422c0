package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int](MutexQueue)

	require.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	require.False(t, ok)

	q.Push(1)
	q.Push(2)
	q.Push(3)
	require.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok = q.Pop()
	require.False(t, ok)
	require.Equal(t, 0, q.Len())
}

func TestQueueMessages(t *testing.T) {
	q := NewQueue[Message](MutexQueue)

	first := NewTextMessage("first")
	second := NewBinaryMessage([]byte{0x00, 0x01, 0x02})

	q.Push(first)
	q.Push(second)

	got, ok := q.Pop()
	require.True(t, ok)
	require.True(t, got.Equal(first))

	got, ok = q.Pop()
	require.True(t, ok)
	require.True(t, got.Equal(second))
}

// Writers push disjoint ranges concurrently, then readers drain
// concurrently; every element must come out exactly once.
func TestQueueConcurrent(t *testing.T) {
	const writers = 8
	const perWriter = 1000

	q := NewQueue[int](MutexQueue)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q.Push(base + i)
			}
		}(w * perWriter)
	}
	wg.Wait()
	require.Equal(t, writers*perWriter, q.Len())

	var mu sync.Mutex
	seen := make(map[int]bool)
	for r := 0; r < writers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				require.False(t, seen[v], "element %d popped twice", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, writers*perWriter)
}

func TestQueueInterleavedFIFO(t *testing.T) {
	q := NewQueue[string](MutexQueue)

	q.Push("a")
	q.Push("b")
	v, _ := q.Pop()
	require.Equal(t, "a", v)
	q.Push("c")
	v, _ = q.Pop()
	require.Equal(t, "b", v)
	v, _ = q.Pop()
	require.Equal(t, "c", v)
}
