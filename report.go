package wbpilot

import (
	"fmt"
	"strings"
	"time"
)

// RunReport is the summary posted to the chat at the end of every run,
// whatever the outcome.
type RunReport struct {
	Mode          Mode
	Started       time.Time
	Finished      time.Time
	OrdersTotal   int
	OrdersDone    int
	OrdersSkipped int
	ArtifactsSent int
	FailedFiles   []string
	TokenDaysLeft int
	Cancelled     bool
	Err           error
}

// Render produces the chat message for the report.
func (r RunReport) Render() string {
	var b strings.Builder
	switch {
	case r.Cancelled:
		b.WriteString("🛑 <b>Run cancelled</b>\n")
	case r.Err != nil:
		b.WriteString("❌ <b>Run failed</b>\n")
		fmt.Fprintf(&b, "<b>Reason:</b> %s\n", r.Err.Error())
	default:
		b.WriteString("✅ <b>Run completed</b>\n")
	}

	fmt.Fprintf(&b, "<b>Mode:</b> %s\n", r.Mode)
	if !r.Started.IsZero() && !r.Finished.IsZero() {
		fmt.Fprintf(&b, "<b>Duration:</b> %s\n", r.Finished.Sub(r.Started).Round(time.Second))
	}
	fmt.Fprintf(&b, "<b>Orders:</b> %d of %d processed", r.OrdersDone, r.OrdersTotal)
	if r.OrdersSkipped > 0 {
		fmt.Fprintf(&b, " (%d already done)", r.OrdersSkipped)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "<b>Files sent:</b> %d\n", r.ArtifactsSent)

	if len(r.FailedFiles) > 0 {
		fmt.Fprintf(&b, "⚠️ <b>Not delivered:</b> %s\n", strings.Join(r.FailedFiles, ", "))
	}
	if r.TokenDaysLeft >= 0 && r.TokenDaysLeft <= 5 {
		fmt.Fprintf(&b, "⚠️ <b>API token expires in %d days</b>\n", r.TokenDaysLeft)
	}
	if r.TokenDaysLeft < 0 {
		b.WriteString("🚫 <b>API token has expired</b>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
