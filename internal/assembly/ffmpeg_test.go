package assembly

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	args []string
}

// fakeRunner imitates ffmpeg: a concat call joins the manifest's files, a
// metadata call copies the input and appends the tags.
type fakeRunner struct {
	calls      []call
	concatErr  error
	stampErr   error
	skipOutput bool
	stderr     string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{dir: dir, args: args})
	out := args[len(args)-1]

	if contains(args, "concat") {
		if f.concatErr != nil {
			return f.stderr, f.concatErr
		}
		if f.skipOutput {
			return "", nil
		}
		manifest, err := os.ReadFile(filepath.Join(dir, ManifestName))
		if err != nil {
			return "", err
		}
		var joined strings.Builder
		for _, line := range strings.Split(strings.TrimSpace(string(manifest)), "\n") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return "", err
			}
			joined.Write(data)
		}
		return "", os.WriteFile(filepath.Join(dir, out), []byte(joined.String()), 0644)
	}

	if f.stampErr != nil {
		return "stamp stderr", f.stampErr
	}
	data, err := os.ReadFile(filepath.Join(dir, FinalName))
	if err != nil {
		return "", err
	}
	var tags []string
	for i, a := range args {
		if a == "-metadata" {
			tags = append(tags, args[i+1])
		}
	}
	return "", os.WriteFile(filepath.Join(dir, out), append(data, []byte("|"+strings.Join(tags, ","))...), 0644)
}

func contains(args []string, v string) bool {
	for _, a := range args {
		if a == v {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeClips(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(strings.TrimSuffix(n, ".mp3")+";"), 0644))
	}
}

func TestListClipsSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "002_Jamie.mp3", "001_Alex.mp3", "010_Alex.mp3", "1000_Jamie Lee.mp3", "099_Alex.mp3")
	writeClips(t, dir, FinalName, "notes.mp3", "files.txt", "003_Alex.wav")

	clips, err := ListClips(dir)
	require.NoError(t, err)

	var names []string
	for _, c := range clips {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"001_Alex.mp3", "002_Jamie.mp3", "010_Alex.mp3", "099_Alex.mp3", "1000_Jamie Lee.mp3"}, names)
	assert.Equal(t, "Jamie Lee", clips[4].Speaker)
	assert.Equal(t, 1000, clips[4].Seq)
}

func TestListClipsMissingDir(t *testing.T) {
	clips, err := ListClips(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, clips)
}

func TestAssembleConcatenatesInOrderAndStamps(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "002_Jamie.mp3", "001_Alex.mp3", "010_Alex.mp3")

	runner := &fakeRunner{}
	a := NewFFmpegAssembler("", runner, quietLogger())
	out, err := a.Assemble(context.Background(), dir, Metadata{Title: "Future of AI", Artist: "AI Podcast Generator"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FinalName), out)

	manifest, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "file '001_Alex.mp3'\nfile '002_Jamie.mp3'\nfile '010_Alex.mp3'\n", string(manifest))

	require.Len(t, runner.calls, 2)
	assert.Equal(t, dir, runner.calls[0].dir)
	assert.Equal(t, []string{"-y", "-f", "concat", "-safe", "0", "-i", "files.txt", "-c", "copy", "final_podcast.mp3"}, runner.calls[0].args)
	assert.Contains(t, runner.calls[1].args, "title=Future of AI")
	assert.Contains(t, runner.calls[1].args, "artist=AI Podcast Generator")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "001_Alex;002_Jamie;010_Alex;|title=Future of AI,artist=AI Podcast Generator", string(data))

	_, err = os.Stat(filepath.Join(dir, taggedName))
	assert.True(t, os.IsNotExist(err))
}

func TestAssembleNoClipsRunsNothing(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, FinalName)

	runner := &fakeRunner{}
	_, err := NewFFmpegAssembler("", runner, quietLogger()).Assemble(context.Background(), dir, Metadata{})
	assert.ErrorIs(t, err, ErrNoClips)
	assert.Empty(t, runner.calls)

	_, err = os.Stat(filepath.Join(dir, FinalName))
	assert.True(t, os.IsNotExist(err), "stale final artifact must be removed")
}

func TestAssembleFFmpegFailureCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "001_Alex.mp3")

	runner := &fakeRunner{concatErr: errors.New("exit status 1"), stderr: "files.txt: Invalid data found\n"}
	_, err := NewFFmpegAssembler("", runner, quietLogger()).Assemble(context.Background(), dir, Metadata{Title: "x"})
	require.ErrorIs(t, err, ErrFFmpegFailed)

	var fe *FFmpegError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "concat", fe.Operation)
	assert.Equal(t, "files.txt: Invalid data found\n", fe.Stderr)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Len(t, runner.calls, 1)
}

func TestAssembleToolOutputMissing(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "001_Alex.mp3")

	_, err := NewFFmpegAssembler("", &fakeRunner{skipOutput: true}, quietLogger()).Assemble(context.Background(), dir, Metadata{})
	assert.ErrorIs(t, err, ErrToolOutputMissing)
}

func TestAssembleStampFailureKeepsUntagged(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "001_Alex.mp3", "002_Jamie.mp3")

	runner := &fakeRunner{stampErr: errors.New("exit status 1")}
	out, err := NewFFmpegAssembler("", runner, quietLogger()).Assemble(context.Background(), dir, Metadata{Title: "x"})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "001_Alex;002_Jamie;", string(data))
}

func TestAssembleTwiceLeavesOneFinal(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	a := NewFFmpegAssembler("", runner, quietLogger())

	writeClips(t, dir, "001_Alex.mp3", "002_Jamie.mp3")
	_, err := a.Assemble(context.Background(), dir, Metadata{})
	require.NoError(t, err)
	Cleanup(dir, quietLogger())

	writeClips(t, dir, "001_Riley.mp3")
	out, err := a.Assemble(context.Background(), dir, Metadata{})
	require.NoError(t, err)
	Cleanup(dir, quietLogger())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "001_Riley;", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FinalName, entries[0].Name())
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "001_Alex.mp3", "002_Jamie.mp3", FinalName, ManifestName, "brief.yaml")

	assert.Equal(t, 3, Cleanup(dir, quietLogger()))
	assert.Equal(t, 0, Cleanup(dir, quietLogger()))
	assert.Equal(t, 0, Cleanup(filepath.Join(dir, "missing"), quietLogger()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{FinalName, "brief.yaml"}, names)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "1:05", FormatDuration(65.9))
	assert.Equal(t, "12:34", FormatDuration(754))
}

func TestAssembleWithRealFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	dir := t.TempDir()
	for _, name := range []string{"001_Alex.mp3", "002_Jamie.mp3"} {
		cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=0.5",
			"-c:a", "libmp3lame", "-b:a", "64k", filepath.Join(dir, name))
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("ffmpeg cannot encode mp3 here: %v\n%s", err, out)
		}
	}

	out, err := NewFFmpegAssembler("", nil, quietLogger()).Assemble(context.Background(), dir, Metadata{Title: "Test", Artist: "panelcast"})
	require.NoError(t, err)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
