package probe

import (
	"fmt"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
)

// ExiftoolProber reads metadata through a long running exiftool process.
// It requires the exiftool binary on PATH.
type ExiftoolProber struct {
	logger     *logrus.Logger
	extensions []string
	et         *exiftool.Exiftool
	mutex      sync.Mutex
}

// NewExiftoolProber starts exiftool. Callers must Close the prober.
func NewExiftoolProber(logger *logrus.Logger, extensions []string) (*ExiftoolProber, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &ExiftoolProber{
		logger:     logger,
		extensions: extensions,
		et:         et,
	}, nil
}

// Probe returns the metadata exiftool reports for filePath.
func (p *ExiftoolProber) Probe(filePath string) (*Metadata, error) {
	p.mutex.Lock()
	files := p.et.ExtractMetadata(filePath)
	p.mutex.Unlock()

	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", filePath)
	}
	fm := files[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("exiftool: %w", fm.Err)
	}

	md := &Metadata{Path: filePath, Source: SourceExiftool}

	width, errW := fm.GetInt("ImageWidth")
	height, errH := fm.GetInt("ImageHeight")
	if errW != nil || errH != nil {
		return nil, fmt.Errorf("exiftool found no image dimensions in %s", filePath)
	}
	md.Width = int(width)
	md.Height = int(height)

	if v, err := fm.GetString("FileType"); err == nil {
		md.Format = strings.ToUpper(v)
	}
	if v, err := fm.GetString("Orientation"); err == nil {
		md.Orientation = orientationFromLabel(v)
	}

	var camera []string
	for _, key := range []string{"Make", "Model"} {
		if v, err := fm.GetString(key); err == nil && strings.TrimSpace(v) != "" {
			camera = append(camera, strings.TrimSpace(v))
		}
	}
	md.Camera = strings.Join(camera, " ")

	if v, err := fm.GetString("Software"); err == nil {
		md.Software = strings.TrimSpace(v)
	}

	p.logger.Debugf("exiftool metadata for %s: %dx%d %s", filePath, md.Width, md.Height, md.Format)
	return md, nil
}

// SupportsFile reports whether the file extension is one the prober accepts.
func (p *ExiftoolProber) SupportsFile(filePath string) bool {
	return hasExtension(filePath, p.extensions)
}

// Close stops the exiftool process.
func (p *ExiftoolProber) Close() error {
	return p.et.Close()
}
