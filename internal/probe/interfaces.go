package probe

import (
	"path/filepath"
	"slices"
	"strings"
)

// Prober inspects a source image without decoding its pixels.
type Prober interface {
	Probe(filePath string) (*Metadata, error)
	SupportsFile(filePath string) bool
}

// CachedProber extends Prober with caching capabilities.
type CachedProber interface {
	Prober
	ClearCache()
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	Size         int
	HitRate      float64
	TotalQueries int64
}

// Source identifies which backend produced the metadata.
type Source int

const (
	SourceUnknown Source = iota
	SourceImageConfig
	SourceEXIF
	SourceExiftool
)

// String returns a human-readable description of the metadata source.
func (s Source) String() string {
	switch s {
	case SourceImageConfig:
		return "Image Header"
	case SourceEXIF:
		return "Image Header + EXIF"
	case SourceExiftool:
		return "exiftool"
	default:
		return "Unknown"
	}
}

// Metadata describes a source image.
type Metadata struct {
	Path        string `json:"path" yaml:"path"`
	Format      string `json:"format" yaml:"format"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	Orientation int    `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Camera      string `json:"camera,omitempty" yaml:"camera,omitempty"`
	Software    string `json:"software,omitempty" yaml:"software,omitempty"`
	Source      Source `json:"-" yaml:"-"`
}

// OrientedSize returns the dimensions after applying the EXIF orientation.
// Orientations 5 through 8 transpose the image.
func (m *Metadata) OrientedSize() (int, int) {
	if m.Orientation >= 5 && m.Orientation <= 8 {
		return m.Height, m.Width
	}
	return m.Width, m.Height
}

// OrientationLabel returns the exiftool style name of the orientation.
func (m *Metadata) OrientationLabel() string {
	if label, ok := orientationLabels[m.Orientation]; ok {
		return label
	}
	return "Unknown"
}

var orientationLabels = map[int]string{
	1: "Horizontal (normal)",
	2: "Mirror horizontal",
	3: "Rotate 180",
	4: "Mirror vertical",
	5: "Mirror horizontal and rotate 270 CW",
	6: "Rotate 90 CW",
	7: "Mirror horizontal and rotate 90 CW",
	8: "Rotate 270 CW",
}

func orientationFromLabel(label string) int {
	for n, l := range orientationLabels {
		if strings.EqualFold(l, label) {
			return n
		}
	}
	return 0
}

// DefaultExtensions lists the raster formats that can be converted.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".webp", ".tiff", ".tif", ".gif"}

func hasExtension(filePath string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(filePath)))
}
