package model

import (
	"fmt"
	"strings"
)

// Filter is the status selector value. The zero value means "no filter".
type Filter string

// FilterAll selects every job.
const FilterAll Filter = ""

// FilterOption is one entry of the status selector.
type FilterOption struct {
	Value Filter
	Label string
}

// FilterOptions returns the five selector entries in display order.
func FilterOptions() []FilterOption {
	return []FilterOption{
		{Value: FilterAll, Label: "All Status"},
		{Value: Filter(StatusPending), Label: "Pending"},
		{Value: Filter(StatusProcessing), Label: "Processing"},
		{Value: Filter(StatusCompleted), Label: "Completed"},
		{Value: Filter(StatusFailed), Label: "Failed"},
	}
}

// ParseFilter accepts "", "all" or any status spelling ParseStatus knows.
func ParseFilter(s string) (Filter, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return FilterAll, nil
	}
	status, ok := ParseStatus(trimmed)
	if !ok {
		return FilterAll, fmt.Errorf("unknown status filter %q", s)
	}
	return Filter(status), nil
}

// FilterFor wraps a status.
func FilterFor(status JobStatus) Filter {
	return Filter(canonical(status))
}

// Status returns the filtered status; ok is false for FilterAll.
func (f Filter) Status() (JobStatus, bool) {
	if f == FilterAll {
		return "", false
	}
	return JobStatus(f), true
}

func (f Filter) String() string {
	if f == FilterAll {
		return "all"
	}
	return string(f)
}
