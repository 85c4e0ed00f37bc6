package statistics

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics_ConcurrentCounting(t *testing.T) {
	stats := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.IncrementSourcesFound()
				stats.IncrementSourcesProcessed()
				stats.AddBytesIn(10)
				stats.AddBytesOut(5)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 800, stats.SourcesFound)
	assert.EqualValues(t, 800, stats.GetSourcesProcessed())
	assert.EqualValues(t, 8000, stats.BytesIn)
	assert.EqualValues(t, 4000, stats.BytesOut)
	assert.InDelta(t, 50.0, stats.PercentSaved(), 0.01)
}

func TestStatistics_Finalize(t *testing.T) {
	stats := NewStatistics()
	stats.IncrementSourcesProcessed()
	stats.IncrementSourcesProcessed()

	stats.Finalize()

	require.False(t, stats.EndTime.IsZero())
	assert.Greater(t, stats.Duration.Nanoseconds(), int64(0))
	assert.Greater(t, stats.FilesPerSecond, 0.0)
}

func TestStatistics_PercentSaved_NoInput(t *testing.T) {
	stats := NewStatistics()
	assert.Zero(t, stats.PercentSaved())
}

func TestStatistics_ErrorSummary(t *testing.T) {
	stats := NewStatistics()
	assert.Equal(t, "No errors occurred during processing", stats.GetErrorSummary())

	stats.AddError("bad.jpg", "shrink", "decode failed")
	summary := stats.GetErrorSummary()
	assert.Contains(t, summary, "Errors (1 total)")
	assert.Contains(t, summary, "bad.jpg")
	assert.Contains(t, summary, "decode failed")
}

func TestStatistics_ErrorSummaryCapped(t *testing.T) {
	stats := NewStatistics()
	for i := 0; i < 15; i++ {
		stats.AddError("x.jpg", "shrink", "boom")
	}

	summary := stats.GetErrorSummary()
	assert.Contains(t, summary, "Errors (15 total)")
	assert.Contains(t, summary, "and 5 more errors")
	assert.Equal(t, 10, strings.Count(summary, "x.jpg"))
}

func TestStatistics_Summary(t *testing.T) {
	stats := NewStatistics()
	stats.IncrementSourcesFound()
	stats.IncrementImagesShrunk()
	stats.AddBytesIn(2048)
	stats.AddBytesOut(1024)
	stats.Finalize()

	summary := stats.GetSummary()
	assert.Contains(t, summary, "Submitted: 1")
	assert.Contains(t, summary, "Shrunk: 1")
	assert.Contains(t, summary, "2.0 KB")
	assert.Contains(t, summary, "Saved: 50.0%")
}
