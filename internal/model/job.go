// Package model contains the job types shared across the dashboard packages.
package model

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// JobStatus describes where a compression job is in its lifecycle. A named
// string type keeps statuses from mixing with arbitrary strings.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Statuses lists the closed enumeration in lifecycle order.
var Statuses = []JobStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus canonicalizes a wire or user supplied status. The legacy
// "complete" spelling maps to StatusCompleted. The bool is false for values
// outside the enumeration.
func ParseStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "processing":
		return StatusProcessing, true
	case "completed", "complete":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	}
	return JobStatus(s), false
}

// Known reports whether s is one of the four canonical statuses.
func (s JobStatus) Known() bool {
	c, ok := ParseStatus(string(s))
	return ok && c == s
}

func canonical(s JobStatus) JobStatus {
	c, _ := ParseStatus(string(s))
	return c
}

// Label returns a display label. Unknown statuses fall back to the raw value
// with its first letter upper-cased.
func (s JobStatus) Label() string {
	switch canonical(s) {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return "Unknown"
	}
	r, size := utf8.DecodeRuneInString(raw)
	return string(unicode.ToUpper(r)) + raw[size:]
}

// UnmarshalJSON canonicalizes the status at the decode boundary and never
// rejects an unknown value.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// null or a non-string leaves an empty status which renders as Unknown.
		*s = ""
		return nil
	}
	parsed, _ := ParseStatus(raw)
	*s = parsed
	return nil
}

// Job is one image compression task as reported by the remote service.
// Optional fields are pointers so "absent" stays distinct from zero.
type Job struct {
	ID                 int64      `json:"id"`
	Filename           string     `json:"filename"`
	OriginalSize       *int64     `json:"original_size,omitempty"`
	CompressedSize     *int64     `json:"compressed_size,omitempty"`
	CompressedFileName *string    `json:"compressed_file_name,omitempty"`
	Status             JobStatus  `json:"status"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts the legacy compressed_url field and derives the
// artifact name from its last path segment when compressed_file_name is
// missing.
func (j *Job) UnmarshalJSON(data []byte) error {
	type plain Job
	var wire struct {
		plain
		CompressedURL *string `json:"compressed_url"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	*j = Job(wire.plain)
	if j.CompressedFileName == nil && wire.CompressedURL != nil && *wire.CompressedURL != "" {
		name := path.Base(*wire.CompressedURL)
		if name != "." && name != "/" {
			j.CompressedFileName = &name
		}
	}
	return nil
}

// ArtifactName returns the compressed file name or "" when absent.
func (j Job) ArtifactName() string {
	if j.CompressedFileName == nil {
		return ""
	}
	return *j.CompressedFileName
}

// Action is the per-row operation a job exposes to the user.
type Action int

const (
	ActionNone Action = iota
	ActionDownload
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionDownload:
		return "Download"
	case ActionRetry:
		return "Retry"
	default:
		return "-"
	}
}

// Action derives the available row action. Download wins only when the job is
// completed and names an artifact; failed jobs offer Retry.
func (j Job) Action() Action {
	switch canonical(j.Status) {
	case StatusCompleted:
		if j.ArtifactName() != "" {
			return ActionDownload
		}
	case StatusFailed:
		return ActionRetry
	}
	return ActionNone
}
