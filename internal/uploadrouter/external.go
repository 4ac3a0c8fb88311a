package uploadrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
)

// externalHostClient uploads to the configured Chevereto-style hosting API:
// a multipart POST carrying the image and optional metadata, authenticated
// via an X-API-Key header, returning a public URL and deletion handle.
type externalHostClient struct {
	baseURL string
	httpc   *http.Client
}

func newExternalHostClient(cfg config.HostingConfig) *externalHostClient {
	return &externalHostClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

// ping checks that the hosting base URL is reachable, without authenticating
// or uploading anything.
func (c *externalHostClient) ping(ctx context.Context) error {
	if c.baseURL == "" {
		return apperr.Configuration("uploadrouter", "hosting base URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return apperr.Internal("uploadrouter", "build ping request", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperr.Transport("uploadrouter", "ping request failed", err)
	}
	defer resp.Body.Close()
	return nil
}

type cheveretoImage struct {
	URL            string `json:"url"`
	DeleteURL      string `json:"delete_url"`
	ExpirationDate string `json:"expiration_date_gmt"`
}

type cheveretoResponse struct {
	StatusCode int            `json:"status_code"`
	Image      cheveretoImage `json:"image"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *externalHostClient) upload(ctx context.Context, apiKey string, image []byte, filename string, opts UploadOptions) (Outcome, error) {
	if c.baseURL == "" {
		return Outcome{}, apperr.Configuration("uploadrouter", "hosting base URL is not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("source", filename)
	if err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "build multipart body", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "write image to multipart body", err)
	}

	if opts.AlbumID != "" {
		_ = writer.WriteField("album_id", opts.AlbumID)
	}
	if opts.Title != "" {
		_ = writer.WriteField("title", opts.Title)
	}
	if opts.Description != "" {
		_ = writer.WriteField("description", opts.Description)
	}
	if len(opts.Tags) > 0 {
		_ = writer.WriteField("tags", strings.Join(opts.Tags, ","))
	}
	_ = writer.WriteField("format", "json")
	if err := writer.Close(); err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "close multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/1/upload", &body)
	if err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, apperr.Timeout("uploadrouter", "upload request timed out")
		}
		return Outcome{}, apperr.Transport("uploadrouter", "upload request failed", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, apperr.Upstream("uploadrouter", fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(data)))
	}

	var out cheveretoResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "decode upload response", err)
	}
	if out.StatusCode != http.StatusOK {
		msg := out.Error.Message
		if msg == "" {
			msg = "unknown hosting API error"
		}
		return Outcome{}, apperr.Upstream("uploadrouter", msg)
	}

	return Outcome{URL: out.Image.URL, DeleteHash: out.Image.DeleteURL}, nil
}
