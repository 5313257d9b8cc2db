// Package report renders trimming statistics for people and machines.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/planbiir/gpxtrim/internal/trim"
)

const ruleWidth = 55

// Text writes one block per track: activity start, the table of removed
// pauses and the elapsed-time totals.
func Text(w io.Writer, label string, stats []trim.Stats) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== %s ===\n\n", label)
	if len(stats) == 0 {
		b.WriteString("No tracks found.\n")
	}

	for _, st := range stats {
		writeTrack(&b, st)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTrack(b *strings.Builder, st trim.Stats) {
	if st.ActivityStart.IsZero() {
		b.WriteString("Activity date  -\n")
		b.WriteString("Start time  -\n")
	} else {
		start := st.ActivityStart.UTC()
		fmt.Fprintf(b, "Activity date  %s\n", start.Format(time.DateOnly))
		fmt.Fprintf(b, "Start time  %s UTC\n", start.Format(time.TimeOnly))
	}
	b.WriteString(" \n")

	fmt.Fprintf(b, "%5s  %15s  %12s  %12s  %9s\n", "Pause", "Relative time", "Duration", "Removed", "Drift")
	for i, p := range st.Pauses {
		drift := fmt.Sprintf("%3dm", int(math.Round(p.Drift)))
		fmt.Fprintf(b, "%5d  %15s  %12s  %12s  %9s\n",
			i+1, Relative(p.Start.Sub(st.ActivityStart)), HMS(p.Gap), HMS(p.Removed), drift)
	}

	b.WriteString(" \n")
	fmt.Fprintf(b, "Original elapsed time %12s\n", HMS(st.OrigElapsed))
	fmt.Fprintf(b, "Trimmed elapsed time %12s\n", HMS(st.TrimmedElapsed))
	fmt.Fprintf(b, "Total pause time %12s\n", HMS(st.RemovedTime))
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
}

// HMS formats d as "1h 2m 3s", dropping leading zero fields.
func HMS(d time.Duration) string {
	h, m, s := split(d)

	var parts []string
	if h != 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h != 0 || m != 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

// Relative formats d as zero-padded HH:MM:SS. Hours may exceed 24.
func Relative(d time.Duration) string {
	h, m, s := split(d)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// split rounds d to whole seconds. Negative durations count as zero.
func split(d time.Duration) (h, m, s int64) {
	total := max(int64(math.Round(d.Seconds())), 0)
	return total / 3600, total % 3600 / 60, total % 60
}
