// Package report turns conversion results into user facing messages and files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ico-maker-go/internal/converter"
)

// Level of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message is the content of one notification.
type Message struct {
	Level Level  `json:"level"`
	File  string `json:"file,omitempty"`
	Text  string `json:"text"`
}

// FileMessage describes the outcome for one image.
func FileMessage(r converter.Result) Message {
	name := filepath.Base(r.InputPath)
	if r.Success() {
		return Message{
			Level: LevelInfo,
			File:  r.InputPath,
			Text:  fmt.Sprintf("%s converted to %s (%s)", name, r.OutputPath, r.Sizes),
		}
	}
	return Message{
		Level: LevelError,
		File:  r.InputPath,
		Text:  fmt.Sprintf("%s failed: %v", name, r.Err),
	}
}

// Summary is the single message closing a batch.
func Summary(results []converter.Result) Message {
	failed := 0
	for _, r := range results {
		if !r.Success() {
			failed++
		}
	}
	total := len(results)

	switch {
	case total == 0:
		return Message{Level: LevelError, Text: "No images were converted"}
	case failed == 0:
		return Message{Level: LevelInfo, Text: fmt.Sprintf("All %d %s converted successfully", total, plural(total))}
	default:
		return Message{
			Level: LevelError,
			Text:  fmt.Sprintf("%d of %d %s converted, %d failed", total-failed, total, plural(total), failed),
		}
	}
}

// Messages returns one message per result followed by the summary.
func Messages(results []converter.Result) []Message {
	out := make([]Message, 0, len(results)+1)
	for _, r := range results {
		out = append(out, FileMessage(r))
	}
	return append(out, Summary(results))
}

func plural(n int) string {
	if n == 1 {
		return "image"
	}
	return "images"
}

// Entry is one result in a report file.
type Entry struct {
	Input      string   `yaml:"input" json:"input"`
	Output     string   `yaml:"output,omitempty" json:"output,omitempty"`
	Sizes      []string `yaml:"sizes,omitempty" json:"sizes,omitempty"`
	Bytes      int64    `yaml:"bytes,omitempty" json:"bytes,omitempty"`
	Replaced   bool     `yaml:"replaced,omitempty" json:"replaced,omitempty"`
	DurationMS int64    `yaml:"duration_ms" json:"duration_ms"`
	Failure    string   `yaml:"failure,omitempty" json:"failure,omitempty"`
	Error      string   `yaml:"error,omitempty" json:"error,omitempty"`
}

// Document is the machine readable summary of a batch.
type Document struct {
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`
	Converted   int       `yaml:"converted" json:"converted"`
	Failed      int       `yaml:"failed" json:"failed"`
	Summary     string    `yaml:"summary" json:"summary"`
	Results     []Entry   `yaml:"results" json:"results"`
}

// NewDocument builds a report document from results.
func NewDocument(results []converter.Result) Document {
	doc := Document{
		GeneratedAt: time.Now().UTC(),
		Summary:     Summary(results).Text,
		Results:     make([]Entry, 0, len(results)),
	}
	for _, r := range results {
		entry := Entry{
			Input:      r.InputPath,
			DurationMS: r.Duration().Milliseconds(),
		}
		if r.Success() {
			doc.Converted++
			entry.Output = r.OutputPath
			entry.Sizes = r.Sizes.Strings()
			entry.Bytes = r.BytesWritten
			entry.Replaced = r.Replaced
		} else {
			doc.Failed++
			entry.Failure = converter.FailureKind(r.Err)
			entry.Error = r.Err.Error()
		}
		doc.Results = append(doc.Results, entry)
	}
	return doc
}

// WriteYAML writes the report for results to path.
func WriteYAML(path string, results []converter.Result) error {
	data, err := yaml.Marshal(NewDocument(results))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
