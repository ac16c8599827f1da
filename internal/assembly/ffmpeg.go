package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Metadata is stamped onto the final artifact.
type Metadata struct {
	Title  string
	Artist string
}

// Assembler concatenates per-line clips into the final artifact.
type Assembler interface {
	Assemble(ctx context.Context, dir string, meta Metadata) (string, error)
}

// FFmpegAssembler uses the ffmpeg concat demuxer with stream copy, so clips
// are joined without re-encoding.
type FFmpegAssembler struct {
	ffmpegPath string
	runner     Runner
	logger     *slog.Logger
}

// NewFFmpegAssembler creates an assembler. A nil runner runs ffmpeg as a
// child process.
func NewFFmpegAssembler(ffmpegPath string, runner Runner, logger *slog.Logger) *FFmpegAssembler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegAssembler{ffmpegPath: ffmpegPath, runner: runner, logger: logger}
}

// ValidateBinary checks that ffmpeg is on PATH.
func (a *FFmpegAssembler) ValidateBinary() error {
	if _, err := exec.LookPath(a.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, a.ffmpegPath)
	}
	return nil
}

// Assemble writes dir/final_podcast.mp3 from the clips in dir and returns
// its path. Any previous final artifact is removed first.
func (a *FFmpegAssembler) Assemble(ctx context.Context, dir string, meta Metadata) (string, error) {
	final := filepath.Join(dir, FinalName)
	if err := os.Remove(final); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove previous podcast: %w", err)
	}

	clips, err := ListClips(dir)
	if err != nil {
		return "", err
	}
	if len(clips) == 0 {
		return "", ErrNoClips
	}

	if err := writeManifest(dir, clips); err != nil {
		return "", err
	}

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", ManifestName, "-c", "copy", FinalName}
	if stderr, err := a.runner.Run(ctx, dir, a.ffmpegPath, args...); err != nil {
		return "", &FFmpegError{Operation: "concat", Args: args, Err: err, Stderr: stderr}
	}
	if !nonEmpty(final) {
		return "", ErrToolOutputMissing
	}

	if err := a.stamp(ctx, dir, meta); err != nil {
		a.logger.WarnContext(ctx, "metadata stamping failed, keeping untagged podcast", "error", err)
	}
	return final, nil
}

// stamp rewrites container metadata into a temporary file and only then
// renames it over the final artifact.
func (a *FFmpegAssembler) stamp(ctx context.Context, dir string, meta Metadata) error {
	if meta.Title == "" && meta.Artist == "" {
		return nil
	}
	tagged := filepath.Join(dir, taggedName)
	defer os.Remove(tagged)

	args := []string{"-y", "-i", FinalName, "-map", "0", "-c", "copy"}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}
	args = append(args, taggedName)

	if stderr, err := a.runner.Run(ctx, dir, a.ffmpegPath, args...); err != nil {
		return &FFmpegError{Operation: "metadata", Args: args, Err: err, Stderr: stderr}
	}
	if !nonEmpty(tagged) {
		return ErrToolOutputMissing
	}
	if err := os.Rename(tagged, filepath.Join(dir, FinalName)); err != nil {
		return fmt.Errorf("replace podcast with tagged copy: %w", err)
	}
	return nil
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
