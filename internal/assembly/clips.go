package assembly

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	FinalName    = "final_podcast.mp3"
	ManifestName = "files.txt"

	taggedName = "final_podcast.tagged.mp3"
)

var clipNameRe = regexp.MustCompile(`^(\d+)_(.+)\.mp3$`)

// Clip is a per-line artifact found on disk.
type Clip struct {
	Seq     int
	Speaker string
	Name    string
}

// ListClips returns the per-line artifacts in dir, ordered by the numeric
// sequence prefix of their names.
func ListClips(dir string) ([]Clip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list clips: %w", err)
	}

	var clips []Clip
	for _, e := range entries {
		if e.IsDir() || e.Name() == FinalName {
			continue
		}
		m := clipNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		clips = append(clips, Clip{Seq: seq, Speaker: m[2], Name: e.Name()})
	}

	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].Seq != clips[j].Seq {
			return clips[i].Seq < clips[j].Seq
		}
		return clips[i].Name < clips[j].Name
	})
	return clips, nil
}

// writeManifest writes the concat demuxer input list.
func writeManifest(dir string, clips []Clip) error {
	var b strings.Builder
	for _, c := range clips {
		fmt.Fprintf(&b, "file '%s'\n", c.Name)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Cleanup removes every transient file in dir, keeping only the final
// artifact. A missing directory or file is not an error; a file that exists
// but cannot be removed is logged and skipped. It returns how many files
// were removed.
func Cleanup(dir string, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("could not list working directory", "dir", dir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == FinalName {
			continue
		}
		if !strings.HasSuffix(name, ".mp3") && name != ManifestName {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("could not delete transient file", "file", name, "error", err)
			}
			continue
		}
		removed++
	}
	return removed
}
