package assembly

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFFmpegNotFound    = errors.New("ffmpeg binary not found")
	ErrNoClips           = errors.New("no audio clips found to combine")
	ErrFFmpegFailed      = errors.New("ffmpeg failed")
	ErrToolOutputMissing = errors.New("ffmpeg reported success but produced no output file")
)

// FFmpegError is a non-zero ffmpeg exit. Stderr is kept verbatim.
type FFmpegError struct {
	Operation string // "concat" or "metadata"
	Args      []string
	Err       error
	Stderr    string
}

func (e *FFmpegError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg %s failed: %v\n%s", e.Operation, e.Err, strings.TrimRight(e.Stderr, "\n"))
	}
	return fmt.Sprintf("ffmpeg %s failed: %v", e.Operation, e.Err)
}

func (e *FFmpegError) Unwrap() error { return e.Err }

func (e *FFmpegError) Is(target error) bool { return target == ErrFFmpegFailed }
