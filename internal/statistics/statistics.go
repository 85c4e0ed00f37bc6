package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics accumulates counters for one shrink batch. Counter
// updates are atomic so workers can report without coordination.
type Statistics struct {
	SourcesFound     int64
	SourcesProcessed int64
	ImagesShrunk     int64
	SourcesSkipped   int64
	SourcesFailed    int64
	RemoteFetches    int64

	BytesIn  int64
	BytesOut int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []ItemError

	mutex sync.RWMutex
}

// ItemError records one failed source.
type ItemError struct {
	Source    string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a Statistics with the clock started.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]ItemError, 0),
	}
}

// IncrementSourcesFound increases the count of submitted sources by 1.
func (s *Statistics) IncrementSourcesFound() {
	atomic.AddInt64(&s.SourcesFound, 1)
}

// IncrementSourcesProcessed increases the count of completed items by 1.
func (s *Statistics) IncrementSourcesProcessed() {
	atomic.AddInt64(&s.SourcesProcessed, 1)
}

// IncrementImagesShrunk increases the count of written outputs by 1.
func (s *Statistics) IncrementImagesShrunk() {
	atomic.AddInt64(&s.ImagesShrunk, 1)
}

// IncrementSourcesSkipped increases the count of skipped sources by 1.
func (s *Statistics) IncrementSourcesSkipped() {
	atomic.AddInt64(&s.SourcesSkipped, 1)
}

// IncrementSourcesFailed increases the count of failed sources by 1.
func (s *Statistics) IncrementSourcesFailed() {
	atomic.AddInt64(&s.SourcesFailed, 1)
}

// IncrementRemoteFetches increases the count of staged downloads by 1.
func (s *Statistics) IncrementRemoteFetches() {
	atomic.AddInt64(&s.RemoteFetches, 1)
}

// AddBytesIn adds to the total input bytes read.
func (s *Statistics) AddBytesIn(n int64) {
	atomic.AddInt64(&s.BytesIn, n)
}

// AddBytesOut adds to the total output bytes written.
func (s *Statistics) AddBytesOut(n int64) {
	atomic.AddInt64(&s.BytesOut, n)
}

// AddError records a failed source.
func (s *Statistics) AddError(source, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, ItemError{
		Source:    source,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize stops the clock and computes the derived figures.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	processed := atomic.LoadInt64(&s.SourcesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(processed) / s.Duration.Seconds()
	}
}

// PercentSaved returns the byte savings over the whole batch.
func (s *Statistics) PercentSaved() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in <= 0 {
		return 0
	}
	return float64(in-out) * 100 / float64(in)
}

// GetSummary returns a formatted summary of the batch.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fmt.Sprintf(`Image Compactor Summary:

Sources:
		Submitted: %d
		Processed: %d
		Shrunk: %d
		Skipped: %d
		Failed: %d
		Remote Fetches: %d

Size:
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.SourcesFound),
		atomic.LoadInt64(&s.SourcesProcessed),
		atomic.LoadInt64(&s.ImagesShrunk),
		atomic.LoadInt64(&s.SourcesSkipped),
		atomic.LoadInt64(&s.SourcesFailed),
		atomic.LoadInt64(&s.RemoteFetches),
		formatBytes(atomic.LoadInt64(&s.BytesIn)),
		formatBytes(atomic.LoadInt64(&s.BytesOut)),
		s.PercentSaved(),
		s.Duration,
		s.FilesPerSecond)
}

// GetErrorSummary returns a summary of failed sources, capped at ten
// entries.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.Source,
			err.Error)
	}
	return result
}

// GetSourcesProcessed returns the number of completed items.
func (s *Statistics) GetSourcesProcessed() int64 {
	return atomic.LoadInt64(&s.SourcesProcessed)
}

// GetSourcesFailed returns the number of failed items.
func (s *Statistics) GetSourcesFailed() int64 {
	return atomic.LoadInt64(&s.SourcesFailed)
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
