package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/panelcast/internal/retry"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/voice"
)

// fakeProvider fails the first failures[text] calls for a line.
type fakeProvider struct {
	failures map[string]int
	err      error
	calls    map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	f.calls[text]++
	if f.calls[text] <= f.failures[text] {
		if f.err != nil {
			return nil, f.err
		}
		return nil, &StatusError{StatusCode: 500, Body: "boom"}
	}
	return []byte("mp3:" + voiceID + ":" + text), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() retry.Policy {
	p := DefaultPolicy()
	p.Delay = time.Millisecond
	return p
}

var assignment = voice.Assignment{Voices: map[string]string{"alex": "m1", "jamie": "f1"}}

func TestClipName(t *testing.T) {
	assert.Equal(t, "001_Alex.mp3", ClipName(0, "Alex"))
	assert.Equal(t, "010_Jamie Lee.mp3", ClipName(9, "Jamie Lee"))
	assert.Equal(t, "1000_Alex.mp3", ClipName(999, "Alex"))
}

func TestSynthesizeAllWritesClipsInOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio_clips")
	lines := []script.Line{
		{Index: 0, Speaker: "Alex", Text: "Hi there"},
		{Index: 1, Speaker: "Jamie", Text: "Hello!"},
	}

	var progress []int
	s := NewSynthesizer(newFakeProvider(), fastPolicy(), quietLogger())
	s.OnLine = func(done, total int, line script.Line) { progress = append(progress, done) }

	clips, err := s.SynthesizeAll(context.Background(), lines, assignment, dir)
	require.NoError(t, err)
	require.Len(t, clips, 2)
	assert.Equal(t, filepath.Join(dir, "001_Alex.mp3"), clips[0].Path)
	assert.Equal(t, filepath.Join(dir, "002_Jamie.mp3"), clips[1].Path)
	assert.Equal(t, []int{1, 2}, progress)

	data, err := os.ReadFile(clips[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "mp3:f1:Hello!", string(data))
}

func TestSynthesizeAllRetriesThenSucceeds(t *testing.T) {
	p := newFakeProvider()
	p.failures["Hi there"] = 2

	clips, err := NewSynthesizer(p, fastPolicy(), quietLogger()).SynthesizeAll(
		context.Background(),
		[]script.Line{{Index: 0, Speaker: "Alex", Text: "Hi there"}},
		assignment, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, clips, 1)
	assert.Equal(t, 3, p.calls["Hi there"])
}

func TestSynthesizeAllDropsLineAfterThreeFailures(t *testing.T) {
	p := newFakeProvider()
	p.failures["Hello!"] = 3
	p.err = errors.New("connection reset")
	dir := t.TempDir()

	lines := []script.Line{
		{Index: 0, Speaker: "Alex", Text: "Hi there"},
		{Index: 1, Speaker: "Jamie", Text: "Hello!"},
		{Index: 2, Speaker: "Alex", Text: "Bye"},
	}
	clips, err := NewSynthesizer(p, fastPolicy(), quietLogger()).SynthesizeAll(context.Background(), lines, assignment, dir)
	require.NoError(t, err)
	require.Len(t, clips, 2)
	assert.Equal(t, 0, clips[0].Index)
	assert.Equal(t, 2, clips[1].Index)
	assert.Equal(t, 3, p.calls["Hello!"])

	_, err = os.Stat(filepath.Join(dir, "002_Jamie.mp3"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "003_Alex.mp3"))
	assert.NoError(t, err)
}

func TestSynthesizeAllSkipsUnknownSpeakerWithoutCalling(t *testing.T) {
	p := newFakeProvider()
	lines := []script.Line{
		{Index: 0, Speaker: "Narrator", Text: "Once upon a time"},
		{Index: 1, Speaker: "Alex", Text: "Hi"},
	}
	clips, err := NewSynthesizer(p, fastPolicy(), quietLogger()).SynthesizeAll(context.Background(), lines, assignment, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, clips, 1)
	assert.Zero(t, p.calls["Once upon a time"])
}

func TestSynthesizeAllNoAudio(t *testing.T) {
	p := newFakeProvider()
	p.failures["Hi"] = 100
	_, err := NewSynthesizer(p, fastPolicy(), quietLogger()).SynthesizeAll(
		context.Background(),
		[]script.Line{{Index: 0, Speaker: "Alex", Text: "Hi"}, {Index: 1, Speaker: "Nobody", Text: "x"}},
		assignment, t.TempDir())
	assert.ErrorIs(t, err, ErrNoAudioGenerated)
}

func TestIsTransportFailure(t *testing.T) {
	assert.True(t, isTransportFailure(errors.New("dial tcp: refused")))
	assert.False(t, isTransportFailure(&StatusError{StatusCode: 429}))
	assert.False(t, isTransportFailure(ErrEmptyAudio))
}

func TestPoolsFor(t *testing.T) {
	for _, name := range ProviderNames() {
		p, err := PoolsFor(name)
		require.NoError(t, err)
		assert.Len(t, p.Male, 3, name)
		assert.Len(t, p.Female, 3, name)
	}
	_, err := PoolsFor("gemini")
	assert.Error(t, err)
}
