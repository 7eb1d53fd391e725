package api

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortQueueItemsNewestFirst orders queue items by CreatedAt descending, breaking ties by ID descending.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]QueueItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ti := ParseQueueTime(sorted[i].CreatedAt)
		tj := ParseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// ParseQueueTime parses an API timestamp, returning the zero time when empty or malformed.
func ParseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ProgressLabel renders the progress column of a queue listing.
func ProgressLabel(item QueueItem) string {
	p := item.Progress
	if p.Stage == "" {
		return ""
	}
	label := p.Stage
	if p.Percent > 0 && p.Percent < 100 {
		label = fmt.Sprintf("%s %.0f%%", label, p.Percent)
	}
	if msg := strings.TrimSpace(p.Message); msg != "" {
		label += ": " + msg
	}
	return label
}

// ClipCounts reports how many cached clips an item has and how many are polished.
func ClipCounts(item QueueItem) (total, polished int) {
	for _, c := range item.Clips {
		total++
		if c.Polished {
			polished++
		}
	}
	return total, polished
}

// DisplayVOD prefers the VOD id and falls back to the URL.
func DisplayVOD(item QueueItem) string {
	if item.VODID != "" {
		return item.VODID
	}
	if item.VODURL != "" {
		return item.VODURL
	}
	return "-"
}
