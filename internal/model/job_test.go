package model

import (
	"encoding/json"
	"testing"
)

func TestParseStatusCanonicalizes(t *testing.T) {
	cases := map[string]JobStatus{
		"pending":     StatusPending,
		" Processing": StatusProcessing,
		"complete":    StatusCompleted,
		"COMPLETED":   StatusCompleted,
		"failed":      StatusFailed,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseStatus("archived"); ok {
		t.Fatalf("expected archived to be rejected")
	}
}

func TestDecodeJobTolerantStatus(t *testing.T) {
	var jobs []Job
	data := `[
		{"id":1,"filename":"a.jpg","status":"complete","compressed_url":"/images/a_small.jpg"},
		{"id":2,"filename":"b.jpg","status":"queued"},
		{"id":3,"filename":"c.jpg","status":null}
	]`
	if err := json.Unmarshal([]byte(data), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if jobs[0].Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", jobs[0].Status)
	}
	if jobs[0].ArtifactName() != "a_small.jpg" {
		t.Fatalf("expected artifact from compressed_url, got %q", jobs[0].ArtifactName())
	}
	if jobs[1].Status.Known() {
		t.Fatalf("queued must not be a known status")
	}
	if got := jobs[1].Status.Label(); got != "Queued" {
		t.Fatalf("fallback label = %q", got)
	}
	if got := jobs[2].Status.Label(); got != "Unknown" {
		t.Fatalf("empty status label = %q", got)
	}
}

func TestJobAction(t *testing.T) {
	name := "x.jpg"
	failed := Job{ID: 1, Status: StatusFailed}
	if failed.Action() != ActionRetry {
		t.Fatalf("failed job should expose Retry, got %v", failed.Action())
	}
	done := Job{ID: 2, Status: StatusCompleted, CompressedFileName: &name}
	if done.Action() != ActionDownload {
		t.Fatalf("completed job should expose Download, got %v", done.Action())
	}
	empty := ""
	noArtifact := Job{ID: 3, Status: StatusCompleted, CompressedFileName: &empty}
	if noArtifact.Action() != ActionNone {
		t.Fatalf("completed job without artifact should expose nothing")
	}
	// Inconsistent combinations are tolerated.
	odd := Job{ID: 4, Status: StatusPending, CompressedFileName: &name}
	if odd.Action() != ActionNone {
		t.Fatalf("pending job should expose nothing")
	}
}

func TestParseFilter(t *testing.T) {
	for _, in := range []string{"", "all", "ALL"} {
		f, err := ParseFilter(in)
		if err != nil || f != FilterAll {
			t.Fatalf("ParseFilter(%q) = %q, %v", in, f, err)
		}
	}
	f, err := ParseFilter("complete")
	if err != nil || f != Filter(StatusCompleted) {
		t.Fatalf("expected complete alias to map to completed, got %q %v", f, err)
	}
	if _, err := ParseFilter("bogus"); err == nil {
		t.Fatalf("expected error for bogus filter")
	}
	if n := len(FilterOptions()); n != 5 {
		t.Fatalf("expected five filter options, got %d", n)
	}
}
