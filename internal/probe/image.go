package probe

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageProber reads image headers for format and dimensions and EXIF tags when present.
type ImageProber struct {
	logger     *logrus.Logger
	extensions []string
	cache      *sync.Map
	stats      CacheStats
	mutex      sync.RWMutex
}

// NewImageProber returns a new ImageProber. A nil extension list means DefaultExtensions.
func NewImageProber(logger *logrus.Logger, extensions []string) *ImageProber {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &ImageProber{
		logger:     logger,
		extensions: extensions,
		cache:      &sync.Map{},
	}
}

// Probe returns the metadata of the image at filePath.
func (p *ImageProber) Probe(filePath string) (*Metadata, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("not a file: %s", filePath)
	}

	cache := p.currentCache()
	key := cacheKey(filePath, fileInfo)
	if value, ok := cache.Load(key); ok {
		p.incrementCacheHits()
		md := value.(Metadata)
		return &md, nil
	}
	p.incrementCacheMisses()

	md, err := p.readConfig(filePath)
	if err != nil {
		return nil, err
	}
	p.readEXIF(filePath, md)

	cache.Store(key, *md)
	return md, nil
}

// SupportsFile reports whether the file extension is one the prober accepts.
func (p *ImageProber) SupportsFile(filePath string) bool {
	return hasExtension(filePath, p.extensions)
}

// ClearCache removes all entries from the internal cache and resets statistics.
func (p *ImageProber) ClearCache() {
	p.mutex.Lock()
	p.cache = &sync.Map{}
	p.stats = CacheStats{}
	p.mutex.Unlock()
}

// GetCacheStats returns cache statistics for this prober.
func (p *ImageProber) GetCacheStats() CacheStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := p.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	p.cache.Range(func(_, _ any) bool {
		stats.Size++
		return true
	})
	return stats
}

func (p *ImageProber) readConfig(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	return &Metadata{
		Path:   filePath,
		Format: strings.ToUpper(format),
		Width:  cfg.Width,
		Height: cfg.Height,
		Source: SourceImageConfig,
	}, nil
}

// readEXIF fills orientation and camera tags. Missing EXIF is not an error.
func (p *ImageProber) readEXIF(filePath string, md *Metadata) {
	file, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		p.logger.Debugf("No EXIF data in %s: %v", filePath, err)
		return
	}
	md.Source = SourceEXIF

	if tag, err := x.Get(exif.Orientation); err == nil {
		if n, err := tag.Int(0); err == nil {
			md.Orientation = n
		}
	}

	var camera []string
	for _, field := range []exif.FieldName{exif.Make, exif.Model} {
		if tag, err := x.Get(field); err == nil {
			if v, err := tag.StringVal(); err == nil && strings.TrimSpace(v) != "" {
				camera = append(camera, strings.TrimSpace(v))
			}
		}
	}
	md.Camera = strings.Join(camera, " ")

	if tag, err := x.Get(exif.Software); err == nil {
		if v, err := tag.StringVal(); err == nil {
			md.Software = strings.TrimSpace(v)
		}
	}
}

func (p *ImageProber) currentCache() *sync.Map {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.cache
}

func cacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (p *ImageProber) incrementCacheHits() {
	p.mutex.Lock()
	p.stats.Hits++
	p.stats.TotalQueries++
	p.mutex.Unlock()
}

func (p *ImageProber) incrementCacheMisses() {
	p.mutex.Lock()
	p.stats.Misses++
	p.stats.TotalQueries++
	p.mutex.Unlock()
}
