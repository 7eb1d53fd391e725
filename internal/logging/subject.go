package logging

import "strings"

// FormatSubject renders the console subject, e.g. "Analysis · VOD #4 (scoring)".
// Blank parts are left out.
func FormatSubject(lane, itemID, stage string) string {
	var b strings.Builder
	if lane = strings.TrimSpace(lane); lane != "" {
		b.WriteString(strings.ToUpper(lane[:1]))
		b.WriteString(strings.ToLower(lane[1:]))
	}
	itemID = strings.TrimSpace(itemID)
	stage = strings.TrimSpace(stage)
	if itemID == "" && stage == "" {
		return b.String()
	}
	if b.Len() > 0 {
		b.WriteString(" · ")
	}
	if itemID == "" {
		b.WriteString(stage)
		return b.String()
	}
	b.WriteString("VOD #" + itemID)
	if stage != "" {
		b.WriteString(" (" + stage + ")")
	}
	return b.String()
}
