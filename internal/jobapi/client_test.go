package jobapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListJobsDecodesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Errorf("missing request id header")
		}
		io.WriteString(w, `{"success":true,"message":"success get jobs","data":[
			{"id":2,"filename":"b.png","status":"complete","compressed_file_name":"b-small.png","original_size":2048,"compressed_size":1024},
			{"id":1,"filename":"a.jpg","status":"failed","error_message":"corrupt"}
		]}`)
	})
	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != 2 || jobs[0].Status != model.StatusCompleted {
		t.Fatalf("server order or status canonicalization lost: %+v", jobs[0])
	}
	if jobs[1].ErrorMessage == nil || *jobs[1].ErrorMessage != "corrupt" {
		t.Fatalf("error message not decoded: %+v", jobs[1])
	}
}

func TestListJobsNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"ok","data":null}`)
	})
	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if jobs == nil || len(jobs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", jobs)
	}
}

func TestListJobsBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":7,"filename":"x.jpg","status":"pending"}]`)
	})
	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != 7 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestListJobsByStatusCanonicalAndNotFound(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"message":"job not found","data":null}`)
	})
	jobs, err := c.ListJobsByStatus(context.Background(), model.JobStatus("complete"))
	if err != nil {
		t.Fatalf("a 404 must read as an empty list: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	if gotPath != "/jobs/status/completed" {
		t.Fatalf("status not canonicalized on the wire: %s", gotPath)
	}
}

func TestServerErrorBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"success":false,"message":"database down","data":null}`)
	})
	_, err := c.ListJobs(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "database down" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestUploadImagesMultipart(t *testing.T) {
	var names []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for _, fh := range r.MultipartForm.File["images"] {
			names = append(names, fh.Filename)
		}
		io.WriteString(w, `{"success":true,"message":"ok","data":{"imageId":[1,2]}}`)
	})
	err := c.UploadImages(context.Background(), []File{
		{Name: "/tmp/one.jpg", Content: strings.NewReader("jpeg-bytes")},
		{Name: "two.png", Content: strings.NewReader("png-bytes")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if strings.Join(names, ",") != "one.jpg,two.png" {
		t.Fatalf("unexpected parts: %v", names)
	}
	if err := c.UploadImages(context.Background(), nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestRetryJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/42/retry" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"success":true,"message":"Job queued for retry","data":null}`)
	})
	if err := c.RetryJob(context.Background(), 42); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestDownloadArtifact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images-compressed/x.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		io.WriteString(w, "compressed")
	})
	art, err := c.DownloadArtifact(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer art.Body.Close()
	data, _ := io.ReadAll(art.Body)
	if string(data) != "compressed" || art.ContentType != "image/jpeg" {
		t.Fatalf("unexpected artifact %q %q", data, art.ContentType)
	}
	for _, bad := range []string{"", "..", "../etc/passwd", "/abs.jpg", `a\b.jpg`} {
		if _, err := c.DownloadArtifact(context.Background(), bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", bad, err)
		}
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}
