// Package view derives what the dashboard shows from a job store snapshot.
// Everything here is pure: no I/O, no clocks except where a caller passes one.
package view

import (
	"fmt"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

// maxVisiblePages is the page count up to which every page gets a button.
const maxVisiblePages = 5

// Page is the slice of jobs visible on one page.
type Page struct {
	Jobs       []model.Job
	StartIndex int
}

// Project returns jobs[(page-1)*perPage : page*perPage] clipped to bounds.
// A page past the end yields an empty slice, never an error.
func Project(jobs []model.Job, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	start := (page - 1) * perPage
	if start >= len(jobs) {
		return Page{Jobs: []model.Job{}, StartIndex: start}
	}
	end := start + perPage
	if end > len(jobs) {
		end = len(jobs)
	}
	// The three-index slice caps capacity so appends by a caller cannot write
	// into the store's backing array.
	return Page{Jobs: jobs[start:end:end], StartIndex: start}
}

// RowNumber is the 1-based display number of the local'th row on a page.
func RowNumber(startIndex, local int) int {
	return startIndex + local + 1
}

// TotalPages returns ceil(total/perPage).
func TotalPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	if perPage < 1 {
		perPage = 1
	}
	return (total + perPage - 1) / perPage
}

// PageItem is a numbered page button or an ellipsis separator.
type PageItem struct {
	Number   int
	Ellipsis bool
}

func (p PageItem) String() string {
	if p.Ellipsis {
		return "..."
	}
	return fmt.Sprint(p.Number)
}

// PageNumbers computes the page buttons for the pager. Up to five pages are
// listed in full; beyond that the first and last page are always present with
// ellipses around a window near the current page.
func PageNumbers(current, totalPages int) []PageItem {
	if totalPages <= 0 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	var items []PageItem
	add := func(from, to int) {
		for i := from; i <= to; i++ {
			items = append(items, PageItem{Number: i})
		}
	}
	gap := func() { items = append(items, PageItem{Ellipsis: true}) }

	switch {
	case totalPages <= maxVisiblePages:
		add(1, totalPages)
	case current <= 3:
		add(1, 4)
		gap()
		add(totalPages, totalPages)
	case current >= totalPages-2:
		add(1, 1)
		gap()
		add(totalPages-3, totalPages)
	default:
		add(1, 1)
		gap()
		add(current-1, current+1)
		gap()
		add(totalPages, totalPages)
	}
	return items
}

// RangeSummary renders "Showing X to Y of Z results".
func RangeSummary(page, perPage, total int) string {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	from := min((page-1)*perPage+1, total)
	to := min(page*perPage, total)
	return fmt.Sprintf("Showing %d to %d of %d results", from, to, total)
}
