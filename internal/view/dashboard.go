package view

import (
	"fmt"

	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
)

// Row is one display-ready table row.
type Row struct {
	Number         int
	Job            model.Job
	Action         model.Action
	Status         string
	Created        string
	Updated        string
	OriginalSize   string
	CompressedSize string
	Savings        string
	Error          string
}

// Banner is the error overlay shown above the table.
type Banner struct {
	Message   string
	Prominent bool
}

// Dashboard is everything a renderer needs for one frame.
type Dashboard struct {
	Rows       []Row
	Pages      []PageItem
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	Summary    string
	CountLine  string
	Filter     model.Filter
	Banner     *Banner
	Loading    bool
	Refreshing bool
	Empty      bool
	Generation uint64
}

// NewRow formats a job for display.
func NewRow(number int, job model.Job) Row {
	return Row{
		Number:         number,
		Job:            job,
		Action:         job.Action(),
		Status:         StatusLabel(job.Status),
		Created:        FormatTime(job.CreatedAt),
		Updated:        FormatTime(job.UpdatedAt),
		OriginalSize:   FormatSize(job.OriginalSize),
		CompressedSize: FormatSize(job.CompressedSize),
		Savings:        Savings(job.OriginalSize, job.CompressedSize),
		Error:          Text(job.ErrorMessage),
	}
}

// Build projects a store snapshot into a Dashboard.
func Build(snap storage.Snapshot) Dashboard {
	page := Project(snap.Jobs, snap.Page, snap.ItemsPerPage)
	rows := make([]Row, 0, len(page.Jobs))
	for i, job := range page.Jobs {
		rows = append(rows, NewRow(RowNumber(page.StartIndex, i), job))
	}
	total := len(snap.Jobs)
	totalPages := TotalPages(total, snap.ItemsPerPage)
	d := Dashboard{
		Rows:       rows,
		Page:       snap.Page,
		TotalPages: totalPages,
		HasPrev:    snap.Page > 1,
		HasNext:    snap.Page < totalPages,
		Summary:    RangeSummary(snap.Page, snap.ItemsPerPage, total),
		CountLine:  CountLine(total, snap.Filter),
		Filter:     snap.Filter,
		Loading:    snap.Loading,
		Refreshing: snap.Refreshing,
		Empty:      total == 0,
		Generation: snap.Generation,
	}
	// A single page needs no pager.
	if totalPages > 1 {
		d.Pages = PageNumbers(snap.Page, totalPages)
	}
	if snap.Err != "" {
		d.Banner = &Banner{Message: snap.Err, Prominent: snap.ErrProminent}
	}
	return d
}

// CountLine renders `Showing N jobs` with the active filter when set.
func CountLine(total int, filter model.Filter) string {
	noun := "jobs"
	if total == 1 {
		noun = "job"
	}
	line := fmt.Sprintf("Showing %d %s", total, noun)
	if status, ok := filter.Status(); ok {
		line += fmt.Sprintf(" with status %q", string(status))
	}
	return line
}
