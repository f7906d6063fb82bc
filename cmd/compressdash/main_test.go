package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dharsanguruparan/compressdash/internal/config"
	"github.com/dharsanguruparan/compressdash/internal/mockapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
	"github.com/dharsanguruparan/compressdash/internal/view"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want command
	}{
		{"n", command{kind: cmdNext}},
		{"p", command{kind: cmdPrev}},
		{"g 4", command{kind: cmdGoto, page: 4}},
		{"f failed", command{kind: cmdFilter, filter: model.FilterFor(model.StatusFailed)}},
		{"f complete", command{kind: cmdFilter, filter: model.FilterFor(model.StatusCompleted)}},
		{"f all", command{kind: cmdFilter, filter: model.FilterAll}},
		{"r", command{kind: cmdRefresh}},
		{"retry #12", command{kind: cmdRetry, id: 12}},
		{"download 3", command{kind: cmdDownload, id: 3}},
		{"details 3", command{kind: cmdDetails, id: 3}},
		{"upload a.jpg b.png", command{kind: cmdUpload, paths: []string{"a.jpg", "b.png"}}},
		{"Q", command{kind: cmdQuit}},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.line)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.line, err)
		}
		if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(command{})); diff != "" {
			t.Fatalf("parse %q mismatch (-want +got):\n%s", tc.line, diff)
		}
	}

	for _, bad := range []string{"g", "g x", "f bogus", "retry", "retry -1", "upload", "dance"} {
		if _, err := parseCommand(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("COMPRESSDASH_API_URL", "http://env:9000")
	t.Setenv("COMPRESSDASH_ITEMS_PER_PAGE", "7")
	opts := &rootOptions{apiURL: "http://flag:8000", escalateAfter: 0, logLevel: "debug"}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://flag:8000" || cfg.ItemsPerPage != 7 || cfg.EscalateAfter != 0 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := (&rootOptions{escalateAfter: -1, logLevel: "loud"}).loadConfig(); err == nil {
		t.Fatalf("expected invalid log level error")
	}
}

func sampleSnapshot(n int, page int) storage.Snapshot {
	jobs := make([]model.Job, n)
	for i := range jobs {
		jobs[i] = model.Job{ID: int64(i + 1), Filename: "img" + string(rune('a'+i)) + ".jpg", Status: model.StatusPending}
	}
	return storage.Snapshot{Jobs: jobs, Page: page, ItemsPerPage: 5}
}

func TestRenderDashboard(t *testing.T) {
	out := renderDashboard(view.Build(sampleSnapshot(12, 2)))
	for _, want := range []string{"imgf.jpg", "imgj.jpg", "Showing 6 to 10 of 12 results", "Showing 12 jobs"} {
		if !strings.Contains(out, want) {
			t.Fatalf("frame missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "imga.jpg") {
		t.Fatalf("frame shows a job from another page:\n%s", out)
	}

	loading := sampleSnapshot(3, 1)
	loading.Loading = true
	if out := renderDashboard(view.Build(loading)); !strings.Contains(out, "Loading jobs...") || strings.Contains(out, "imga.jpg") {
		t.Fatalf("loading frame should hide the table:\n%s", out)
	}

	failed := sampleSnapshot(0, 1)
	failed.Err = "Failed to load jobs. Please try again."
	failed.ErrProminent = true
	out = renderDashboard(view.Build(failed))
	if !strings.Contains(out, failed.Err) || !strings.Contains(out, "No jobs found.") {
		t.Fatalf("error frame missing banner or empty state:\n%s", out)
	}
}

func TestRenderPagerMarksCurrentPage(t *testing.T) {
	d := view.Build(sampleSnapshot(12, 1))
	pager := renderPager(d)
	if !strings.Contains(pager, "n »") || strings.Contains(pager, "« p") {
		t.Fatalf("unexpected pager on first page: %q", pager)
	}
	single := view.Build(sampleSnapshot(3, 1))
	if renderPager(single) != "" {
		t.Fatalf("single page should have no pager")
	}
}

func TestOpenImagesSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "a.jpg")
	empty := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(full, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	files, closeFiles, err := openImages([]string{full, empty, dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFiles()
	if len(files) != 1 || files[0].Name != full {
		t.Fatalf("expected only %s, got %+v", full, files)
	}
	if _, _, err := openImages([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func newMockServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := mockapi.NewRegistry()
	if err := mockapi.Seed(reg, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hub := mockapi.NewHub(logger)
	proc := mockapi.NewProcessor(reg, hub, 1, 0, logger)
	s := mockapi.New(&config.Config{MaxUploadBytes: 1 << 20}, reg, proc, hub, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("COMPRESSDASH_POLL_INTERVAL", "1h")
	t.Setenv("COMPRESSDASH_LOG_LEVEL", "error")
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsCommandAgainstMockService(t *testing.T) {
	srv := newMockServer(t)
	out, err := runCLI(t, "jobs", "--api-url", srv.URL, "--status", "failed")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, want := range []string{"family_portrait.jpg", "error_large.tiff", `with status "failed"`, "retry 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "beach_sunrise.jpg") {
		t.Fatalf("filter leaked other statuses:\n%s", out)
	}
}

func TestDownloadCommandWritesFile(t *testing.T) {
	srv := newMockServer(t)
	dir := t.TempDir()
	out, err := runCLI(t, "download", "1", "--api-url", srv.URL, "--dir", dir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	loc := strings.TrimSpace(out)
	if filepath.Dir(loc) != dir {
		t.Fatalf("artifact saved outside %s: %s", dir, loc)
	}
	if info, err := os.Stat(loc); err != nil || info.Size() == 0 {
		t.Fatalf("artifact missing or empty: %v", err)
	}

	if _, err := runCLI(t, "download", "5", "--api-url", srv.URL, "--dir", dir); err == nil {
		t.Fatalf("expected failed job download to error")
	}
}

func TestWatchQuitsOnCommand(t *testing.T) {
	srv := newMockServer(t)
	t.Setenv("COMPRESSDASH_POLL_INTERVAL", "1h")
	opts := &rootOptions{apiURL: srv.URL, escalateAfter: -1, logLevel: "error"}
	sess, err := opts.newSession(model.FilterAll)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	var out bytes.Buffer
	scr := &screen{out: &out, store: sess.store}
	sink, err := buildSink(context.Background(), sess.cfg, t.TempDir(), false)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- runWatch(context.Background(), sess, sink, scr, strings.NewReader("help\nbogus\nq\n"))
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not quit")
	}
	if !sess.store.Closed() {
		t.Fatalf("controller not stopped on quit")
	}
	frame := out.String()
	if !strings.Contains(frame, "Image Compression Dashboard") || !strings.Contains(frame, "unknown command") {
		t.Fatalf("unexpected watch output:\n%s", frame)
	}
}
