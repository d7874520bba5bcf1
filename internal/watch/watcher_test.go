package watch

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"ico-maker-go/internal/converter"
	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/logger"
)

func newEngine() *converter.Engine {
	return converter.NewEngine(converter.DefaultOptions(), logger.Discard(), nil, nil, nil)
}

// dropImage writes a PNG elsewhere and renames it into dir so the watcher
// only ever sees a complete file.
func dropImage(t *testing.T, dir, name string) string {
	t.Helper()
	staging := filepath.Join(t.TempDir(), name)
	if err := imaging.Save(imaging.New(32, 32, color.NRGBA{G: 255, A: 255}), staging); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(staging, dst); err != nil {
		t.Fatal(err)
	}
	return dst
}

func TestWatcherConvertsDroppedImage(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	sizes := icon.NewSelection(icon.Size{Width: 16, Height: 16}, icon.Size{Width: 32, Height: 32})

	w, err := NewWatcher(in, converter.Target{Directory: out, BaseName: "ignored"}, sizes,
		[]string{".png"}, 50*time.Millisecond, newEngine(), logger.Discard())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Unsupported files are ignored.
	if err := os.WriteFile(filepath.Join(in, "readme.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	src := dropImage(t, in, "logo.png")

	select {
	case ev := <-w.Events():
		if ev.FilePath != src {
			t.Errorf("event for %s, want %s", ev.FilePath, src)
		}
		if ev.Result.Err != nil {
			t.Fatalf("conversion failed: %v", ev.Result.Err)
		}
		want := filepath.Join(out, "logo.ico")
		if ev.Result.OutputPath != want {
			t.Errorf("output = %s, want %s", ev.Result.OutputPath, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("icon not written: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for conversion event")
	}
}

func TestWatcherRejectsBadSetup(t *testing.T) {
	dir := t.TempDir()
	sizes := icon.NewSelection(icon.Size{Width: 16, Height: 16})

	if _, err := NewWatcher(dir, converter.Target{}, sizes, nil, time.Millisecond, newEngine(), logger.Discard()); !errors.Is(err, converter.ErrMissingOutputDir) {
		t.Errorf("missing output dir: err = %v", err)
	}
	if _, err := NewWatcher(dir, converter.Target{Directory: t.TempDir()}, nil, nil, time.Millisecond, newEngine(), logger.Discard()); !errors.Is(err, converter.ErrNoSizesSelected) {
		t.Errorf("no sizes: err = %v", err)
	}
	if _, err := NewWatcher(dir, converter.Target{Directory: dir}, sizes, nil, time.Millisecond, newEngine(), logger.Discard()); err == nil {
		t.Error("expected error when watching the output directory")
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), converter.Target{Directory: t.TempDir()},
		icon.NewSelection(icon.FallbackSize), []string{".png"}, time.Millisecond, newEngine(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
}
