package script

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyScript means no "Label: text" lines were found.
var ErrEmptyScript = errors.New("no dialogue lines found in script")

// Line is one spoken line. Index is its position in playback order.
type Line struct {
	Index   int
	Speaker string
	Text    string
}

// A label is letters and spaces, optionally wrapped in markdown emphasis
// ("**Alex:**"). Anything else on its own line is narration and is dropped.
var (
	dialogueRe = regexp.MustCompile(`^[\t *_]*(\p{L}[\p{L} ]*?)[*_]*[\t ]*:[*_]*[\t ]*(.+)$`)
	labelRe    = regexp.MustCompile(`^[\t *_]*(\p{L}[\p{L} ]*?)[*_]*[\t ]*:[*_]*[\t ]*$`)
)

// Extract scans script text for dialogue lines in order. A label alone on
// its line takes the next non-blank line as its text, unless that line is
// itself labelled.
func Extract(text string) ([]Line, error) {
	var (
		lines   []Line
		pending string
	)
	add := func(speaker, said string) {
		speaker = strings.TrimSpace(speaker)
		said = strings.TrimSpace(said)
		if speaker == "" || said == "" {
			return
		}
		lines = append(lines, Line{Index: len(lines), Speaker: speaker, Text: said})
	}

	for _, row := range strings.Split(text, "\n") {
		row = strings.TrimRight(row, "\r")
		if strings.TrimSpace(row) == "" {
			continue
		}
		if m := labelRe.FindStringSubmatch(row); m != nil {
			pending = m[1]
			continue
		}
		if m := dialogueRe.FindStringSubmatch(row); m != nil {
			add(m[1], m[2])
			pending = ""
			continue
		}
		if pending != "" {
			add(pending, row)
			pending = ""
		}
	}

	if len(lines) == 0 {
		return nil, ErrEmptyScript
	}
	return lines, nil
}
