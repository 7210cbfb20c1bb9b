package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
	assert.Equal(t, int64(100), NewClockAt(100).Current())
}

func TestClock_NextThenCurrent(t *testing.T) {
	c := NewClockAt(7)

	assert.Equal(t, int64(8), c.Next())
	assert.Equal(t, int64(9), c.Next())
	assert.Equal(t, int64(9), c.Current(), "Current must not advance the clock")
}

func TestClock_ConcurrentFramesGetDistinctSeqs(t *testing.T) {
	c := NewClock()
	const renderers = 50
	const framesEach = 40

	var wg sync.WaitGroup
	seqs := make(chan int64, renderers*framesEach)
	for i := 0; i < renderers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < framesEach; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d issued twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, renderers*framesEach)
}
