package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_AdvancesOneSecondPerCall(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, DefaultEpoch.Add(time.Second), clock.Now())
	assert.Equal(t, DefaultEpoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, int64(2), clock.Ticks())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClockAt(time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC))
	first := clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, first, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ts := clock.Now()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines*callsPerGoroutine, "every instant is unique")
}

func TestSequenceIDs(t *testing.T) {
	gen := NewSequenceIDs("")
	assert.Equal(t, "mut-0001", gen.Generate())
	assert.Equal(t, "mut-0002", gen.Generate())

	custom := NewSequenceIDs("scn")
	assert.Equal(t, "scn-0001", custom.Generate())
}
