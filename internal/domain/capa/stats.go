package capa

import "time"

type Statistics struct {
	Total        int
	ByType       map[Type]int
	Open         int
	Verification int
	Closed       int
	Cancelled    int
	Overdue      int
}

// Summarize folds the collection; the open bucket covers draft, open and in_progress.
func Summarize(items []CAPA, now time.Time) Statistics {
	stats := Statistics{
		ByType: map[Type]int{
			TypeCorrective: 0,
			TypePreventive: 0,
		},
	}
	for _, c := range items {
		stats.Total++
		stats.ByType[c.Type]++
		switch c.Status {
		case StatusDraft, StatusOpen, StatusInProgress:
			stats.Open++
		case StatusVerification:
			stats.Verification++
		case StatusClosed:
			stats.Closed++
		case StatusCancelled:
			stats.Cancelled++
		}
		if c.IsOverdue(now) {
			stats.Overdue++
		}
	}
	return stats
}
