package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

type pdfReader struct{}

func (pdfReader) Read(ctx context.Context, source string) (*Background, error) {
	if err := checkFile(source); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open PDF %s: %w", source, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	bg, err := newBackground(sb.String(), "", filepath.Base(source))
	if err != nil {
		return nil, fmt.Errorf("%w (scanned or image-only PDFs have no text layer)", err)
	}
	return bg, nil
}
