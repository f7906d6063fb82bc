// Package jobapi is the HTTP client for the remote image compression service.
package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

var (
	// ErrNoFiles is returned by UploadImages when called without files.
	ErrNoFiles = errors.New("no files to upload")
	// ErrInvalidName rejects artifact names that could escape the download path.
	ErrInvalidName = errors.New("invalid artifact name")
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job service: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("job service: %d: %s", e.StatusCode, e.Message)
}

// File is one image handed to UploadImages.
type File struct {
	Name    string
	Content io.Reader
}

// Artifact is a streamed download. Body must be closed by the caller.
type Artifact struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// envelope mirrors the service's {success, message, data} responses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the remote job service.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListJobs returns every job in server order.
func (c *Client) ListJobs(ctx context.Context) ([]model.Job, error) {
	return c.listJobs(ctx, "/jobs")
}

// ListJobsByStatus returns the jobs the server reports for status. The service
// answers 404 when nothing matches, which is reported as an empty list.
func (c *Client) ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	canonical, ok := model.ParseStatus(string(status))
	if !ok {
		return nil, fmt.Errorf("list jobs: unknown status %q", status)
	}
	jobs, err := c.listJobs(ctx, "/jobs/status/"+url.PathEscape(string(canonical)))
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return []model.Job{}, nil
	}
	return jobs, err
}

func (c *Client) listJobs(ctx context.Context, path string) ([]model.Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	jobs, err := decodeJobs(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return jobs, nil
}

// UploadImages posts files as multipart "images" parts.
func (c *Client) UploadImages(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("images", filepath.Base(f.Name))
		if err != nil {
			return fmt.Errorf("create form part: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// RetryJob asks the service to reprocess a failed job.
func (c *Client) RetryJob(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/"+strconv.FormatInt(id, 10)+"/retry", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// DownloadArtifact streams a compressed image.
func (c *Client) DownloadArtifact(ctx context.Context, name string) (*Artifact, error) {
	if !ValidArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/images-compressed/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// ValidArtifactName rejects empty, absolute, dotted or non-clean names.
func ValidArtifactName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Clean(name) == name
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	// path segments are escaped by the callers.
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// do sends req and converts non-2xx responses into *APIError. On success the
// caller owns resp.Body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("job service request failed",
			"method", req.Method, "path", req.URL.Path,
			"request_id", req.Header.Get(RequestIDHeader), "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("job service request",
		"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode,
		"request_id", req.Header.Get(RequestIDHeader), "duration", time.Since(start))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		apiErr.Message = env.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}

// decodeJobs accepts the envelope or a bare JSON array.
func decodeJobs(r io.Reader) ([]model.Job, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []model.Job{}, nil
	}
	if raw[0] == '{' {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace(env.Data)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []model.Job{}, nil
	}
	var jobs []model.Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	return jobs, nil
}
