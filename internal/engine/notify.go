package engine

import (
	"fmt"
	"html"
	"strings"
)

// WarningText is the direct message sent to a member about to be removed.
func WarningText(th Thresholds) string {
	return fmt.Sprintf("You haven't sent a message in %d days. Post something today or you will be removed.", th.WarnAfter)
}

// WarnSummary is the chat message listing members warned in a sweep.
func WarnSummary(th Thresholds, names []string) string {
	return summary(fmt.Sprintf("Warning: %d Days Inactive", th.WarnAfter), names)
}

// RemoveSummary is the chat message listing members removed in a sweep.
func RemoveSummary(th Thresholds, names []string) string {
	return summary(fmt.Sprintf("Removed: %d Days Inactive", th.RemoveAfter), names)
}

func summary(header string, names []string) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(header))
	b.WriteString("</b>")
	for _, n := range names {
		b.WriteString("\n• ")
		b.WriteString(html.EscapeString(n))
	}
	return b.String()
}
