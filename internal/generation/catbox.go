package generation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
)

const (
	defaultCatboxEndpoint = "https://catbox.moe/user/api.php"
	uploadTimeout         = 5 * time.Minute
)

// Uploader pushes rendered videos to the file host so the social
// platform can fetch them by URL.
type Uploader struct {
	client   *http.Client
	endpoint string
}

// NewUploader creates an Uploader. A nil client gets a default with a
// generous timeout since uploads carry full videos.
func NewUploader(client *http.Client) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: uploadTimeout}
	}
	return &Uploader{client: client, endpoint: defaultCatboxEndpoint}
}

// WithEndpoint overrides the upload endpoint; used by tests.
func (u *Uploader) WithEndpoint(endpoint string) *Uploader {
	u.endpoint = endpoint
	return u
}

// Upload sends one file and returns its public URL. userhash ties the
// upload to the configured account; empty means anonymous.
func (u *Uploader) Upload(ctx context.Context, path, userhash string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return "", fmt.Errorf("upload: write field: %w", err)
	}
	if userhash != "" {
		if err := writer.WriteField("userhash", userhash); err != nil {
			return "", fmt.Errorf("upload: write field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("fileToUpload", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("upload: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("upload: copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("upload: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamError{Status: resp.StatusCode, Body: string(raw), Op: "upload"}
	}

	url := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(url, "http") {
		return "", fmt.Errorf("upload: unexpected response %q", url)
	}
	return url, nil
}
