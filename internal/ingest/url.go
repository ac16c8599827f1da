package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/apresai/panelcast/internal/retry"
)

const fetchTimeout = 30 * time.Second

// URLReader fetches a web page and keeps its main article text.
type URLReader struct {
	client *http.Client
	policy retry.Policy
}

// NewURLReader returns a reader using client, or a client with a 30 second
// timeout when nil.
func NewURLReader(client *http.Client) *URLReader {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &URLReader{client: client, policy: retry.Backoff(3, time.Second, 5*time.Second)}
}

func (u *URLReader) Read(ctx context.Context, source string) (*Background, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", source, err)
	}

	var bg *Background
	err = u.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", source, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("fetch %s: HTTP %d", source, resp.StatusCode)
			if resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		article, err := readability.FromReader(io.LimitReader(resp.Body, maxInputSize), parsed)
		if err != nil {
			return retry.Permanent(fmt.Errorf("extract article from %s: %w", source, err))
		}
		b, err := newBackground(article.TextContent, article.Title, source)
		if err != nil {
			return retry.Permanent(err)
		}
		bg = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bg, nil
}
