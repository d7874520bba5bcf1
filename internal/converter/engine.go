package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/logger"
	"ico-maker-go/internal/probe"
	"ico-maker-go/internal/statistics"
)

// Options tunes the conversion policy.
type Options struct {
	// FilterBySource drops sizes larger than the source image, falling back to 16x16.
	FilterBySource bool
	// Workers is the number of images converted in parallel. Zero means one per CPU.
	Workers int
	// AutoOrient applies the EXIF orientation before resampling.
	AutoOrient bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		FilterBySource: true,
		Workers:        runtime.NumCPU(),
		AutoOrient:     true,
	}
}

// ResultHookFunc receives every result as soon as it is known. It may be called
// from several goroutines at once.
type ResultHookFunc func(Result)

// Engine is the default implementation of the Converter interface.
type Engine struct {
	opts    Options
	logger  *logrus.Logger
	stats   *statistics.Statistics
	encoder Encoder
	prober  probe.Prober
	hook    ResultHookFunc
}

// NewEngine returns a new Engine.
func NewEngine(
	opts Options,
	log *logrus.Logger,
	stats *statistics.Statistics,
	encoder Encoder,
	prober probe.Prober,
) *Engine {
	return NewEngineWithHook(opts, log, stats, encoder, prober, nil)
}

// NewEngineWithHook returns an Engine that reports each result to hook, e.g. for a websocket.
func NewEngineWithHook(
	opts Options,
	log *logrus.Logger,
	stats *statistics.Statistics,
	encoder Encoder,
	prober probe.Prober,
	hook ResultHookFunc,
) *Engine {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	if encoder == nil {
		encoder = NewICOEncoder()
	}
	if prober == nil {
		prober = probe.NewImageProber(log, nil)
	}
	return &Engine{
		opts:    opts,
		logger:  log,
		stats:   stats,
		encoder: encoder,
		prober:  prober,
		hook:    hook,
	}
}

// Statistics returns the statistics the engine records into.
func (e *Engine) Statistics() *statistics.Statistics {
	return e.stats
}

// ConvertBatch validates the request and converts every image.
// Results are returned in input order whatever the worker count.
func (e *Engine) ConvertBatch(ctx context.Context, req Request) ([]Result, error) {
	if err := ValidateInputs(req.Images, req.Target.Directory, req.Sizes); err != nil {
		return nil, err
	}

	e.stats.AddImagesFound(len(req.Images))
	log := logger.WithBatch(e.logger, len(req.Images), req.Target.Directory)
	log.Infof("Converting with sizes %s", req.Sizes)

	groups := outputGroups(req)
	numWorkers := e.workerCount(len(groups))

	jobs := make(chan []int, len(groups))
	results := make([]Result, len(req.Images))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for group := range jobs {
				for _, i := range group {
					path := req.Images[i]
					var r Result
					if err := ctx.Err(); err != nil {
						r = e.cancelled(path, req.Target, err)
					} else {
						r = e.ConvertOne(path, req.Target, req.Sizes)
					}
					results[i] = r
					if e.hook != nil {
						e.hook(r)
					}
				}
			}
		}()
	}

	for _, group := range groups {
		jobs <- group
	}
	close(jobs)
	wg.Wait()

	e.stats.Finalize()
	log.Infof("Conversion finished: %d converted, %d failed",
		atomic.LoadInt64(&e.stats.ImagesConverted), atomic.LoadInt64(&e.stats.ImagesFailed))
	return results, nil
}

// outputGroups buckets input indices by output path, in input order. Inputs
// sharing an output run sequentially so the last one wins.
func outputGroups(req Request) [][]int {
	byPath := make(map[string]int, len(req.Images))
	var groups [][]int
	for i, path := range req.Images {
		out := req.Target.PathFor(path)
		g, ok := byPath[out]
		if !ok {
			g = len(groups)
			byPath[out] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// workerCount returns how many output groups may be converted at once.
func (e *Engine) workerCount(groups int) int {
	n := e.opts.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(min(n, groups), 1)
}

// ConvertOne converts a single image into one multi-resolution icon.
func (e *Engine) ConvertOne(imagePath string, target Target, sizes icon.Selection) Result {
	res := Result{
		InputPath:  imagePath,
		OutputPath: target.PathFor(imagePath),
		StartedAt:  time.Now(),
	}
	log := logger.WithConversion(e.logger, imagePath, res.OutputPath)
	e.stats.IncrementImagesProcessed()

	img, err := e.open(imagePath)
	if err != nil {
		res.Err = &UnreadableImageError{Path: imagePath, Err: err}
		res.FinishedAt = time.Now()
		e.stats.IncrementImagesFailed()
		e.stats.IncrementUnreadableImages()
		e.stats.AddError(imagePath, "decode", err.Error())
		log.Errorf("Cannot read image: %v", err)
		return res
	}

	b := img.Bounds()
	res.Sizes = icon.Resolve(sizes, b.Dx(), b.Dy(), e.opts.FilterBySource)
	log.Debugf("Source is %dx%d, baking sizes %s", b.Dx(), b.Dy(), res.Sizes)

	written, replaced, err := e.write(res.OutputPath, img, res.Sizes)
	res.FinishedAt = time.Now()
	if err != nil {
		res.Err = &EncodeError{Path: imagePath, Output: res.OutputPath, Err: err}
		e.stats.IncrementImagesFailed()
		e.stats.IncrementEncodeFailures()
		e.stats.AddError(imagePath, "encode", err.Error())
		log.Errorf("Cannot write icon %s: %v", res.OutputPath, err)
		return res
	}

	res.BytesWritten = written
	res.Replaced = replaced
	e.stats.IncrementImagesConverted()
	e.stats.AddFrames(res.Sizes.Strings())
	e.stats.AddBytesWritten(written)
	if replaced {
		e.stats.IncrementOutputsReplaced()
		log.Debugf("Replaced existing icon %s", res.OutputPath)
	}
	log.Infof("Converted: %s -> %s", imagePath, res.OutputPath)
	return res
}

// Plan probes each image and reports what ConvertBatch would write.
func (e *Engine) Plan(req Request) ([]PlanEntry, error) {
	if err := ValidateInputs(req.Images, req.Target.Directory, req.Sizes); err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(req.Images))
	for _, path := range req.Images {
		entry := PlanEntry{InputPath: path, OutputPath: req.Target.PathFor(path)}

		md, err := e.prober.Probe(path)
		if err != nil {
			entry.Err = &UnreadableImageError{Path: path, Err: err}
			entries = append(entries, entry)
			continue
		}

		entry.Width, entry.Height = md.Width, md.Height
		if e.opts.AutoOrient {
			entry.Width, entry.Height = md.OrientedSize()
		}
		entry.Sizes = icon.Resolve(req.Sizes, entry.Width, entry.Height, e.opts.FilterBySource)
		entries = append(entries, entry)
	}
	return entries, nil
}

// open decodes the image and normalizes it to 8-bit NRGBA.
func (e *Engine) open(imagePath string) (*image.NRGBA, error) {
	if strings.TrimSpace(imagePath) == "" {
		return nil, fmt.Errorf("empty image path")
	}
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", imagePath)
	}

	img, err := imaging.Open(imagePath, imaging.AutoOrientation(e.opts.AutoOrient))
	if err != nil {
		return nil, err
	}
	e.stats.AddBytesRead(info.Size())
	return imaging.Clone(img), nil
}

// write encodes to a temporary sibling file and renames it over outPath.
func (e *Engine) write(outPath string, img image.Image, sizes icon.Selection) (int64, bool, error) {
	var buf bytes.Buffer
	if err := e.encoder.Encode(&buf, img, sizes); err != nil {
		return 0, false, err
	}

	_, statErr := os.Stat(outPath)
	replaced := statErr == nil

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+"-*.tmp")
	if err != nil {
		return 0, false, fmt.Errorf("create tmp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(buf.Bytes())
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0644)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, false, fmt.Errorf("write tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, false, fmt.Errorf("rename: %w", err)
	}
	return int64(buf.Len()), replaced, nil
}

func (e *Engine) cancelled(imagePath string, target Target, err error) Result {
	now := time.Now()
	e.stats.IncrementImagesFailed()
	e.stats.IncrementCancelled()
	e.stats.AddError(imagePath, "cancelled", err.Error())
	return Result{
		InputPath:  imagePath,
		OutputPath: target.PathFor(imagePath),
		StartedAt:  now,
		FinishedAt: now,
		Err:        err,
	}
}
