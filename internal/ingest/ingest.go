// Package ingest turns an optional background source (web page, PDF or text
// file) into plain text the script writer can draw on.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type Kind string

const (
	KindURL  Kind = "url"
	KindPDF  Kind = "pdf"
	KindText Kind = "text"

	// maxInputSize bounds the bytes read from any source (25 MB).
	maxInputSize = 25 * 1024 * 1024

	// MaxBackgroundWords caps the text handed to the script writer.
	MaxBackgroundWords = 6000
)

var ErrNoContent = errors.New("no readable content in source")

// Background is the extracted material for one source.
type Background struct {
	Title     string
	Source    string
	Text      string
	WordCount int
	Truncated bool
}

// Reader extracts Background from one kind of source.
type Reader interface {
	Read(ctx context.Context, source string) (*Background, error)
}

func Detect(source string) Kind {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return KindURL
	}
	if strings.HasSuffix(strings.ToLower(source), ".pdf") {
		return KindPDF
	}
	return KindText
}

func NewReader(source string) Reader {
	switch Detect(source) {
	case KindURL:
		return NewURLReader(nil)
	case KindPDF:
		return pdfReader{}
	default:
		return textReader{}
	}
}

// Load reads source with the matching Reader and trims the result to
// MaxBackgroundWords.
func Load(ctx context.Context, source string) (*Background, error) {
	bg, err := NewReader(source).Read(ctx, source)
	if err != nil {
		return nil, err
	}
	bg.Text, bg.Truncated = truncateWords(bg.Text, MaxBackgroundWords)
	bg.WordCount = wordCount(bg.Text)
	return bg, nil
}

func newBackground(text, title, source string) (*Background, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", source, ErrNoContent)
	}
	if title == "" {
		title = titleFromText(text, 80)
	}
	return &Background{Title: title, Source: source, Text: text, WordCount: wordCount(text)}, nil
}

func wordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// truncateWords keeps the first max words, cutting at a word boundary.
func truncateWords(text string, max int) (string, bool) {
	count := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			count++
			if count > max {
				return strings.TrimSpace(text[:i]), true
			}
		}
	}
	return text, false
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxLen {
		line = string(r[:maxLen]) + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
