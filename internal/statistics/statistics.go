package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains all statistics for an icon conversion batch.
type Statistics struct {
	ImagesFound     int64
	ImagesProcessed int64
	ImagesConverted int64
	ImagesFailed    int64

	UnreadableImages int64
	EncodeFailures   int64
	Cancelled        int64

	FramesWritten   int64
	OutputsReplaced int64
	BytesRead       int64
	BytesWritten    int64

	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	ImagesPerSecond float64

	Errors []StatError

	SizeStats map[string]int64

	mutex sync.RWMutex
}

// StatError represents an error that occurred during conversion.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		SizeStats: make(map[string]int64),
		Errors:    make([]StatError, 0),
	}
}

// AddImagesFound increases the count of found images by n.
func (s *Statistics) AddImagesFound(n int) {
	atomic.AddInt64(&s.ImagesFound, int64(n))
}

// IncrementImagesProcessed increases the count of processed images by 1.
func (s *Statistics) IncrementImagesProcessed() {
	atomic.AddInt64(&s.ImagesProcessed, 1)
}

// IncrementImagesConverted increases the count of converted images by 1.
func (s *Statistics) IncrementImagesConverted() {
	atomic.AddInt64(&s.ImagesConverted, 1)
}

// IncrementImagesFailed increases the count of failed images by 1.
func (s *Statistics) IncrementImagesFailed() {
	atomic.AddInt64(&s.ImagesFailed, 1)
}

// IncrementUnreadableImages increases the count of undecodable sources by 1.
func (s *Statistics) IncrementUnreadableImages() {
	atomic.AddInt64(&s.UnreadableImages, 1)
}

// IncrementEncodeFailures increases the count of failed encodes or writes by 1.
func (s *Statistics) IncrementEncodeFailures() {
	atomic.AddInt64(&s.EncodeFailures, 1)
}

// IncrementCancelled increases the count of images skipped by cancellation by 1.
func (s *Statistics) IncrementCancelled() {
	atomic.AddInt64(&s.Cancelled, 1)
}

// IncrementOutputsReplaced increases the count of overwritten output files by 1.
func (s *Statistics) IncrementOutputsReplaced() {
	atomic.AddInt64(&s.OutputsReplaced, 1)
}

// AddFrames records the frames baked into one icon.
func (s *Statistics) AddFrames(sizes []string) {
	atomic.AddInt64(&s.FramesWritten, int64(len(sizes)))

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, size := range sizes {
		s.SizeStats[size]++
	}
}

// AddBytesRead adds to the total bytes of source images read.
func (s *Statistics) AddBytesRead(bytes int64) {
	atomic.AddInt64(&s.BytesRead, bytes)
}

// AddBytesWritten adds to the total bytes of icon files written.
func (s *Statistics) AddBytesWritten(bytes int64) {
	atomic.AddInt64(&s.BytesWritten, bytes)
}

// Finalize calculates duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	processed := atomic.LoadInt64(&s.ImagesProcessed)
	if s.Duration.Seconds() > 0 {
		s.ImagesPerSecond = float64(processed) / s.Duration.Seconds()
	}
}

// AddError records an error that occurred during conversion.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	perSecond := s.ImagesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Icon Conversion Summary:

Images:
		Found: %d
		Processed: %d
		Converted: %d
		Failed: %d

Failures:
		Unreadable: %d
		Encode/Write: %d
		Cancelled: %d

Output:
		Frames Written: %d
		Files Replaced: %d
		Bytes Read: %s
		Bytes Written: %s

Performance:
		Duration: %v
		Images/Second: %.2f`,
		atomic.LoadInt64(&s.ImagesFound),
		atomic.LoadInt64(&s.ImagesProcessed),
		atomic.LoadInt64(&s.ImagesConverted),
		atomic.LoadInt64(&s.ImagesFailed),
		atomic.LoadInt64(&s.UnreadableImages),
		atomic.LoadInt64(&s.EncodeFailures),
		atomic.LoadInt64(&s.Cancelled),
		atomic.LoadInt64(&s.FramesWritten),
		atomic.LoadInt64(&s.OutputsReplaced),
		formatBytes(atomic.LoadInt64(&s.BytesRead)),
		formatBytes(atomic.LoadInt64(&s.BytesWritten)),
		duration,
		perSecond)
}

// GetSizeBreakdown returns how many frames of each size were written.
func (s *Statistics) GetSizeBreakdown() map[string]int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]int64, len(s.SizeStats))
	for k, v := range s.SizeStats {
		out[k] = v
	}
	return out
}

// GetErrorSummary returns a summary of errors that occurred during conversion.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during conversion"
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
			err.FilePath,
			err.Error)
	}
	return result
}

// GetErrors returns a copy of the recorded errors.
func (s *Statistics) GetErrors() []StatError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]StatError(nil), s.Errors...)
}

// GetDuration returns the total duration of the batch.
func (s *Statistics) GetDuration() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Duration
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
