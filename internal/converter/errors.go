package converter

import (
	"context"
	"errors"
	"fmt"
)

// Pre-flight failures. They abort a batch before any file is touched.
var (
	ErrMissingInput     = errors.New("no input image selected")
	ErrMissingOutputDir = errors.New("no output directory selected")
	ErrNoSizesSelected  = errors.New("no icon size selected")
)

// UnreadableImageError reports a source that could not be opened or decoded.
type UnreadableImageError struct {
	Path string
	Err  error
}

func (e *UnreadableImageError) Error() string {
	return fmt.Sprintf("unreadable image %s: %v", e.Path, e.Err)
}

func (e *UnreadableImageError) Unwrap() error { return e.Err }

// EncodeError reports a failure while encoding or writing the icon file.
type EncodeError struct {
	Path   string
	Output string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s -> %s: %v", e.Path, e.Output, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// FailureKind classifies a per-file error for reporting.
func FailureKind(err error) string {
	var unreadable *UnreadableImageError
	var encode *EncodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unreadable):
		return "unreadable"
	case errors.As(err, &encode):
		return "encode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
