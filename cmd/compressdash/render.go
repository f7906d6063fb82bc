package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/view"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "125", Dark: "205"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "246"})
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "136", Dark: "226"})
	processingStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "33"})
	completedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "46"})
	failedStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "196"})

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "196"}).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "124", Dark: "196"}).
			Padding(0, 1)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "166", Dark: "208"})
	flashStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "46"})
	currentStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
)

var tableHeaders = []string{"#", "File", "Status", "Original", "Compressed", "Saved", "Created", "Action"}

func statusStyle(status model.JobStatus) lipgloss.Style {
	switch status {
	case model.StatusPending:
		return pendingStyle
	case model.StatusProcessing:
		return processingStyle
	case model.StatusCompleted:
		return completedStyle
	case model.StatusFailed:
		return failedStyle
	}
	return mutedStyle
}

// renderDashboard draws one frame: header, banner, table or placeholder,
// summary and pager.
func renderDashboard(d view.Dashboard) string {
	var b strings.Builder

	header := titleStyle.Render("Image Compression Dashboard")
	header += "  " + mutedStyle.Render("filter: "+filterLabel(d.Filter))
	if d.Refreshing {
		header += "  " + processingStyle.Render("refreshing...")
	}
	b.WriteString(header + "\n")

	if d.Banner != nil {
		if d.Banner.Prominent {
			b.WriteString(bannerStyle.Render(d.Banner.Message) + "\n")
		} else {
			b.WriteString(noticeStyle.Render("! "+d.Banner.Message) + "\n")
		}
	}

	switch {
	case d.Loading:
		b.WriteString(mutedStyle.Render("Loading jobs...") + "\n")
		return b.String()
	case d.Empty:
		b.WriteString(mutedStyle.Render("No jobs found.") + "\n")
		return b.String()
	}

	b.WriteString(mutedStyle.Render(d.CountLine) + "\n")
	b.WriteString(renderTable(d.Rows) + "\n")
	b.WriteString(mutedStyle.Render(d.Summary) + "\n")
	if pager := renderPager(d); pager != "" {
		b.WriteString(pager + "\n")
	}
	return b.String()
}

func renderTable(rows []view.Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "248", Dark: "242"})).
		Headers(tableHeaders...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(rows) {
				return statusStyle(rows[row].Job.Status).Inherit(cellStyle)
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(
			strconv.Itoa(r.Number),
			r.Job.Filename,
			r.Status,
			r.OriginalSize,
			r.CompressedSize,
			r.Savings,
			r.Created,
			actionLabel(r),
		)
	}
	return t.Render()
}

func actionLabel(r view.Row) string {
	switch r.Action {
	case model.ActionDownload:
		return fmt.Sprintf("download %d", r.Job.ID)
	case model.ActionRetry:
		return fmt.Sprintf("retry %d", r.Job.ID)
	}
	return r.Action.String()
}

func renderPager(d view.Dashboard) string {
	if len(d.Pages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Pages)+2)
	if d.HasPrev {
		parts = append(parts, "« p")
	}
	for _, item := range d.Pages {
		if !item.Ellipsis && item.Number == d.Page {
			parts = append(parts, currentStyle.Render(" "+item.String()+" "))
			continue
		}
		parts = append(parts, item.String())
	}
	if d.HasNext {
		parts = append(parts, "n »")
	}
	return strings.Join(parts, " ")
}

func filterLabel(f model.Filter) string {
	for _, opt := range model.FilterOptions() {
		if opt.Value == f {
			return opt.Label
		}
	}
	return f.String()
}

// renderDetails describes a single job for the details command.
func renderDetails(job model.Job, now time.Time) string {
	lines := []struct{ k, v string }{
		{"ID", strconv.FormatInt(job.ID, 10)},
		{"File", job.Filename},
		{"Status", view.StatusLabel(job.Status)},
		{"Original", view.FormatSize(job.OriginalSize)},
		{"Compressed", view.FormatSize(job.CompressedSize)},
		{"Saved", view.Savings(job.OriginalSize, job.CompressedSize)},
		{"Artifact", orPlaceholder(job.ArtifactName())},
		{"Error", view.Text(job.ErrorMessage)},
		{"Created", view.FormatTime(job.CreatedAt) + " (" + view.FormatAge(job.CreatedAt, now) + ")"},
		{"Updated", view.FormatTime(job.UpdatedAt) + " (" + view.FormatAge(job.UpdatedAt, now) + ")"},
	}
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%-10s", l.k)), l.v)
	}
	return b.String()
}

func orPlaceholder(s string) string {
	if s == "" {
		return view.Placeholder
	}
	return s
}
