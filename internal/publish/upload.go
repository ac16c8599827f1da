package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const uploadTimeout = 60 * time.Second

var ErrUpload = errors.New("upload failed")

// UploadError is a non-2xx answer from the upload endpoint.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (status %d): %s", e.StatusCode, e.Body)
}

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// Episode is what gets published.
type Episode struct {
	Path        string
	Title       string
	Description string
	Status      string // "publish" or "draft"
	Explicit    bool
}

// Result is the host's answer to a successful upload.
type Result struct {
	StatusCode   int
	EpisodeID    string
	PermalinkURL string
	Body         string
}

// Publisher uploads a finished episode in one multipart request.
type Publisher struct {
	uploadURL  string
	httpClient *http.Client
}

func NewPublisher(uploadURL string) *Publisher {
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	return &Publisher{
		uploadURL:  uploadURL,
		httpClient: &http.Client{Timeout: uploadTimeout},
	}
}

// Publish refuses to run without a token in the session. It is not retried.
func (p *Publisher) Publish(ctx context.Context, session *Session, ep Episode) (*Result, error) {
	token, err := session.Token()
	if err != nil {
		return nil, err
	}
	if ep.Status == "" {
		ep.Status = "publish"
	}

	f, err := os.Open(ep.Path)
	if err != nil {
		return nil, fmt.Errorf("open episode: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeEpisodeForm(mw, f, ep))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	res := &Result{StatusCode: resp.StatusCode, Body: string(body)}
	var parsed struct {
		Episode struct {
			ID           string `json:"id"`
			PermalinkURL string `json:"permalink_url"`
		} `json:"episode"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		res.EpisodeID = parsed.Episode.ID
		res.PermalinkURL = parsed.Episode.PermalinkURL
	}
	return res, nil
}

func writeEpisodeForm(mw *multipart.Writer, audio io.Reader, ep Episode) error {
	fields := [][2]string{
		{"title", ep.Title},
		{"description", ep.Description},
		{"content_type", "episode"},
		{"status", ep.Status},
		{"explicit", strconv.FormatBool(ep.Explicit)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(ep.Path)))
	h.Set("Content-Type", "audio/mpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return mw.Close()
}
