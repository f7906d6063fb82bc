package syncctl

import (
	"errors"
	"fmt"
)

// User-facing messages. Raw transport errors never reach the renderer; they
// stay in the log and behind UserError.Unwrap.
const (
	MsgLoadFailed    = "Failed to load jobs. Please try again."
	MsgRefreshFailed = "Failed to refresh jobs. Please try again."
	MsgUploadFailed  = "Failed to upload images. Please try again."
	MsgNoValidImages = "No valid image files selected."
)

var (
	// ErrStopped is returned by operations on a controller that is not running.
	ErrStopped = errors.New("syncctl: controller not running")
	// ErrNotDownloadable is returned by Download for jobs without an artifact.
	ErrNotDownloadable = errors.New("syncctl: job has no downloadable artifact")
)

// UserError carries a message safe to show to the user plus the cause.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func retryFailed(id int64) string {
	return fmt.Sprintf("Failed to retry job #%d. Please try again.", id)
}

func downloadFailed(name string) string {
	return fmt.Sprintf("Failed to download %s. Please try again.", name)
}

// Message extracts the user-facing text of err. Errors that are not
// UserErrors are replaced by fallback.
func Message(err error, fallback string) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return fallback
}
