package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAggregates(t *testing.T) {
	c := NewCollector()

	c.Record(OpGenerate, 100*time.Millisecond, nil)
	c.Record(OpGenerate, 300*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	op := snap.Operations[OpGenerate]
	assert.EqualValues(t, 2, op.Count)
	assert.EqualValues(t, 1, op.Failures)
	assert.EqualValues(t, 100, op.MinTimeMs)
	assert.EqualValues(t, 300, op.MaxTimeMs)
	assert.InDelta(t, 200, op.AvgTimeMs, 0.01)
}

func TestObservePropagatesError(t *testing.T) {
	c := NewCollector()
	want := errors.New("nope")

	got := c.Observe(OpIndexQuery, func() error { return want })
	assert.ErrorIs(t, got, want)

	snap := c.Snapshot()
	assert.EqualValues(t, 1, snap.Operations[OpIndexQuery].Failures)
}

func TestConcurrentRecord(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(OpEmbedding, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 100, c.Snapshot().Operations[OpEmbedding].Count)
}
