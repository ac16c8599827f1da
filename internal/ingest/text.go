package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type textReader struct{}

func (textReader) Read(_ context.Context, source string) (*Background, error) {
	if err := checkFile(source); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return newBackground(string(data), "", filepath.Base(source))
}
