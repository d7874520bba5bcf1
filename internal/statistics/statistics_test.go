package statistics

import (
	"strings"
	"sync"
	"testing"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	s := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementImagesProcessed()
			s.IncrementImagesConverted()
			s.AddFrames([]string{"16x16", "32x32"})
			s.AddBytesWritten(100)
		}()
	}
	wg.Wait()
	s.Finalize()

	if s.ImagesProcessed != 50 || s.ImagesConverted != 50 {
		t.Errorf("processed=%d converted=%d, want 50/50", s.ImagesProcessed, s.ImagesConverted)
	}
	if s.FramesWritten != 100 {
		t.Errorf("frames = %d, want 100", s.FramesWritten)
	}
	breakdown := s.GetSizeBreakdown()
	if breakdown["16x16"] != 50 || breakdown["32x32"] != 50 {
		t.Errorf("unexpected breakdown: %v", breakdown)
	}
	if s.BytesWritten != 5000 {
		t.Errorf("bytes written = %d", s.BytesWritten)
	}
}

func TestGetSummary(t *testing.T) {
	s := NewStatistics()
	s.AddImagesFound(3)
	s.IncrementImagesConverted()
	s.IncrementImagesFailed()
	s.IncrementUnreadableImages()
	s.AddBytesWritten(2048)
	s.Finalize()

	summary := s.GetSummary()
	for _, want := range []string{"Found: 3", "Converted: 1", "Failed: 1", "Unreadable: 1", "2.0 KB"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestGetErrorSummary(t *testing.T) {
	s := NewStatistics()
	if got := s.GetErrorSummary(); got != "No errors occurred during conversion" {
		t.Errorf("empty summary = %q", got)
	}

	for i := 0; i < 12; i++ {
		s.AddError("bad.png", "decode", "not an image")
	}
	got := s.GetErrorSummary()
	if !strings.Contains(got, "Errors (12 total)") || !strings.Contains(got, "... and 2 more errors") {
		t.Errorf("unexpected error summary:\n%s", got)
	}
	if len(s.GetErrors()) != 12 {
		t.Errorf("GetErrors len = %d", len(s.GetErrors()))
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KB",
		1536:        "1.5 KB",
		1024 * 1024: "1.0 MB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
