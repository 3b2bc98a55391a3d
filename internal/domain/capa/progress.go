package capa

import (
	"math"
	"time"
)

// Progress is the rounded share of completed action items, 0 when there are none.
func Progress(c CAPA) int {
	total := len(c.ActionItems)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, item := range c.ActionItems {
		if item.Status == ActionCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// IsOverdue compares the target date against the current day, ignoring time of day.
func (c CAPA) IsOverdue(now time.Time) bool {
	if c.Status.IsTerminal() || c.TargetDate == nil {
		return false
	}
	return dateOnly(*c.TargetDate).Before(dateOnly(now))
}

// IsOverdue reports whether an unfinished item is past its due date. It does not
// change the item status; the overdue label is set explicitly.
func (a ActionItem) IsOverdue(now time.Time) bool {
	if a.Status == ActionCompleted || a.DueDate.IsZero() {
		return false
	}
	return dateOnly(a.DueDate).Before(dateOnly(now))
}

const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD calendar date in UTC.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, invalidValue("date", raw)
	}
	return t, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := dateOnly(*t)
	return &v
}
