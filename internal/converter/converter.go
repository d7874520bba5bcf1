package converter

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"ico-maker-go/internal/icon"
)

// IconExtension is the extension of every file the converter writes.
const IconExtension = ".ico"

// Target is the destination of a conversion: a directory plus an optional base name.
type Target struct {
	Directory string
	BaseName  string
}

// PathFor returns the icon path for the given source image.
// Without a base name the output is named after the source stem. Directory
// parts of a base name are dropped so the icon always lands in Directory.
func (t Target) PathFor(imagePath string) string {
	name := baseNameOnly(t.BaseName)
	if name == "" {
		base := filepath.Base(imagePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(t.Directory, name+IconExtension)
}

func baseNameOnly(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, IconExtension)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// Request describes one batch conversion.
type Request struct {
	Images []string
	Target Target
	Sizes  icon.Selection
}

// Result describes the outcome of converting a single image.
type Result struct {
	InputPath    string
	OutputPath   string
	Sizes        icon.Selection
	BytesWritten int64
	Replaced     bool
	StartedAt    time.Time
	FinishedAt   time.Time
	Err          error
}

// Success reports whether the icon was written.
func (r Result) Success() bool {
	return r.Err == nil
}

// Duration returns how long the conversion took.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PlanEntry describes what a conversion would do without doing it.
type PlanEntry struct {
	InputPath  string
	OutputPath string
	Width      int
	Height     int
	Sizes      icon.Selection
	Err        error
}

// Converter defines the interface front ends drive.
type Converter interface {
	// ConvertBatch validates the request and converts every image, in input order.
	// A non-nil error means pre-flight validation failed and nothing was written.
	ConvertBatch(ctx context.Context, req Request) ([]Result, error)
	// ConvertOne converts a single image into one multi-resolution icon.
	ConvertOne(imagePath string, target Target, sizes icon.Selection) Result
	// Plan reports the output path and sizes of each image without writing.
	Plan(req Request) ([]PlanEntry, error)
}

// ValidateInputs runs the pre-flight checks in order: inputs, output directory, sizes.
func ValidateInputs(images []string, outputDir string, sizes icon.Selection) error {
	if len(images) == 0 || strings.TrimSpace(images[0]) == "" {
		return ErrMissingInput
	}
	if strings.TrimSpace(outputDir) == "" {
		return ErrMissingOutputDir
	}
	if len(sizes) == 0 {
		return ErrNoSizesSelected
	}
	return nil
}
