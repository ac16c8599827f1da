package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, KindURL, Detect("https://example.com/a"))
	assert.Equal(t, KindURL, Detect("http://example.com"))
	assert.Equal(t, KindPDF, Detect("paper.PDF"))
	assert.Equal(t, KindText, Detect("notes.md"))
}

func TestTruncateWords(t *testing.T) {
	out, cut := truncateWords("one two  three\nfour", 2)
	assert.True(t, cut)
	assert.Equal(t, "one two", out)

	out, cut = truncateWords("one two", 5)
	assert.False(t, cut)
	assert.Equal(t, "one two", out)
}

func TestTitleFromText(t *testing.T) {
	assert.Equal(t, "First line", titleFromText("First line\nsecond", 80))
	assert.Equal(t, "Untitled", titleFromText("", 80))
	assert.Equal(t, "abc...", titleFromText("abcdef", 3))
}

func TestLoadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	body := "Quantum notes\n" + strings.Repeat("word ", MaxBackgroundWords+10)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	bg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Quantum notes", bg.Title)
	assert.Equal(t, "notes.txt", bg.Source)
	assert.True(t, bg.Truncated)
	assert.Equal(t, MaxBackgroundWords, bg.WordCount)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	_, err := Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestLoadDirectory(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestURLReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		para := strings.Repeat("Researchers reported a sustained plasma run lasting several minutes, a record for the facility. ", 6)
		_, _ = w.Write([]byte("<html><head><title>Fusion Update</title></head><body><article><h1>Fusion Update</h1><p>" +
			para + "</p><p>" + para + "</p></article></body></html>"))
	}))
	defer srv.Close()

	bg, err := NewURLReader(srv.Client()).Read(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, bg.Text, "sustained plasma run")
	assert.Equal(t, srv.URL, bg.Source)
}

func TestURLReaderClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewURLReader(srv.Client()).Read(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, int32(1), calls.Load())
}
