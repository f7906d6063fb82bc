package mockapi

import (
	"errors"
	"strings"
	"testing"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

func TestRegistryCreateAndList(t *testing.T) {
	reg := NewRegistry()
	a := reg.Create("a.jpg", []byte("aaa"))
	b := reg.Create("b.png", []byte("bb"))
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("unexpected ids %d %d", a.ID, b.ID)
	}
	if a.Status != model.StatusPending || a.OriginalSize == nil || *a.OriginalSize != 3 {
		t.Fatalf("unexpected new job %+v", a)
	}
	list := reg.List()
	if len(list) != 2 || list[0].ID != 2 {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if got := reg.ListByStatus(model.StatusFailed); len(got) != 0 {
		t.Fatalf("expected no failed jobs, got %d", len(got))
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	job := reg.Create("a.jpg", []byte("aaa"))
	*job.OriginalSize = 99
	stored, err := reg.Get(job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *stored.OriginalSize != 3 {
		t.Fatalf("caller mutated the registry through a returned pointer")
	}
}

func TestRegistryRetry(t *testing.T) {
	reg := NewRegistry()
	job := reg.Create("a.jpg", nil)
	if _, err := reg.Retry(job.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable, got %v", err)
	}
	msg := "boom"
	if _, err := reg.Update(job.ID, func(j *model.Job) {
		j.Status = model.StatusFailed
		j.ErrorMessage = &msg
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	retried, err := reg.Retry(job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != model.StatusPending || retried.ErrorMessage != nil {
		t.Fatalf("retry did not reset the job: %+v", retried)
	}
	if _, err := reg.Retry(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertAdvancesIDs(t *testing.T) {
	reg := NewRegistry()
	reg.Insert(model.Job{ID: 7, Filename: "x.jpg", Status: model.StatusPending})
	next := reg.Create("y.jpg", nil)
	if next.ID != 8 {
		t.Fatalf("expected id 8 after seeding id 7, got %d", next.ID)
	}
}

func TestArtifactName(t *testing.T) {
	name := artifactName("My Holiday.JPG")
	if !strings.HasPrefix(name, "compressed_my-holiday-") || !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("unexpected artifact name %q", name)
	}
	if artifactName("My Holiday.JPG") == name {
		t.Fatalf("artifact names should be unique")
	}
}

func TestCompressRejectsNonImages(t *testing.T) {
	if _, _, err := compressImage([]byte("plain text")); err == nil {
		t.Fatalf("expected decode error")
	}
}
