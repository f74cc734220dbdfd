package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var summaryHeaders = []string{"STRATEGY", "FAMILY", "OP", "SIZE", "COUNT", "MEAN", "P50", "P99", "MIN", "MAX", "MSG/S"}

// WriteSummary prints one row per successful trial, then one line per
// failed trial with its reason. Failed trials never get timing columns.
func WriteSummary(w io.Writer, r *bench.Report) error {
	if _, err := fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Finished.Sub(r.Started).Round(time.Millisecond)); err != nil {
		return err
	}

	if len(r.Results) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(summaryHeaders...)
		for _, res := range r.Results {
			st := Summarize(res)
			t.Row(
				res.Strategy,
				string(res.Family),
				string(res.Op),
				strconv.Itoa(res.EncodedSize),
				strconv.Itoa(st.Count),
				formatDuration(st.Mean),
				formatDuration(st.P50),
				formatDuration(st.P99),
				formatDuration(st.Min),
				formatDuration(st.Max),
				strconv.FormatFloat(st.MsgPerSec, 'f', 0, 64),
			)
		}
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}

	if len(r.Failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%d failed trial(s):\n", len(r.Failures)); err != nil {
		return err
	}
	for _, res := range r.Failures {
		if _, err := fmt.Fprintf(w, "  %s %s [%s]: %v\n", res.Strategy, res.Op, bench.Kind(res.Err), res.Err); err != nil {
			return err
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
}
