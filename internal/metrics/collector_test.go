package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpRetrievalScan, 10*time.Millisecond)
	c.RecordTiming(OpRetrievalScan, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.RetrievalScan)
	assert.Equal(t, int64(2), snap.RetrievalScan.Count)
	assert.Equal(t, int64(40), snap.RetrievalScan.TotalTimeMs)
	assert.InDelta(t, 20.0, snap.RetrievalScan.AvgTimeMs, 0.001)
	assert.Equal(t, int64(10), snap.RetrievalScan.MinTimeMs)
	assert.Equal(t, int64(30), snap.RetrievalScan.MaxTimeMs)
	assert.Nil(t, snap.RetrievalVector)
}

func TestRecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 100, 20)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 300, 40)

	snap := c.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(400), *snap.LLMGenerate.TotalInputTokens)
	assert.InDelta(t, 30.0, *snap.LLMGenerate.AvgOutputTokens, 0.001)
}

func TestRecordErrorOnly(t *testing.T) {
	c := NewCollector()
	c.RecordError(OpRetrievalVector)

	snap := c.Snapshot()
	require.NotNil(t, snap.RetrievalVector)
	assert.Equal(t, int64(1), snap.RetrievalVector.Errors)
	assert.Zero(t, snap.RetrievalVector.Count)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpQA, time.Millisecond)
	c.RecordError(OpQA)
	assert.Nil(t, c.Snapshot().QA)
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpIndex, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().Index.Count)
}
