// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// RunMetrics computes WPM, CPM, and accuracy for a run. Chars counts
// characters consumed from the target, rejected counts refused keystrokes.
func RunMetrics(chars, rejected int, durationMs int64) (wpm, cpm, accuracy float64) {
	if durationMs <= 0 {
		return 0, 0, 0
	}
	minutes := float64(durationMs) / 60000.0
	wpm = (float64(chars) / 5.0) / minutes
	cpm = float64(chars) / minutes
	den := float64(chars + rejected)
	if den > 0 {
		accuracy = float64(chars) / den
	}
	return wpm, cpm, accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Downsample averages values into at most width buckets.
func Downsample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := max((i+1)*len(values)/width, start+1)
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// RenderSummary prints a summary block for runs.
func RenderSummary(w io.Writer, runs []model.RunAggregate) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	var totalWPM, totalCPM, totalAcc float64
	var totalMs int64
	resets := 0
	bestWPM := 0.0
	for _, r := range runs {
		wpm, cpm, acc := RunMetrics(r.Chars, r.Rejected, r.DurationMs)
		totalWPM += wpm
		totalCPM += cpm
		totalAcc += acc
		totalMs += r.DurationMs
		resets += r.Resets
		bestWPM = math.Max(bestWPM, wpm)
	}
	count := float64(len(runs))
	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d", len(runs)),
		fmt.Sprintf("Time practiced: %s", (time.Duration(totalMs) * time.Millisecond).Round(time.Second)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
		fmt.Sprintf("Avg CPM: %.2f", totalCPM/count),
		fmt.Sprintf("Avg Accuracy: %.2f%%", (totalAcc/count)*100),
		fmt.Sprintf("Resets: %d", resets),
		"",
	}
	return writeLines(w, lines)
}

// RenderCurves prints WPM and accuracy trends as sparklines fitted to width.
func RenderCurves(w io.Writer, runs []model.RunAggregate, window, width int) error {
	if len(runs) < 2 {
		return nil
	}
	wpms := make([]float64, len(runs))
	accs := make([]float64, len(runs))
	for i, r := range runs {
		wpm, _, acc := RunMetrics(r.Chars, r.Rejected, r.DurationMs)
		wpms[i] = wpm
		accs[i] = acc * 100
	}
	wpms = MovingAverage(wpms, window)
	accs = MovingAverage(accs, window)

	// Room for the row label and the first/last values.
	const reserved = 36
	sparkWidth := 0
	if width > 0 {
		sparkWidth = max(width-reserved, 10)
	}
	lines := []string{
		fmt.Sprintf("Trend (moving average over %d runs)", max(window, 1)),
		fmt.Sprintf("WPM      %s  %.1f -> %.1f", Sparkline(Downsample(wpms, sparkWidth)), wpms[0], wpms[len(wpms)-1]),
		fmt.Sprintf("Accuracy %s  %.1f%% -> %.1f%%", Sparkline(Downsample(accs, sparkWidth)), accs[0], accs[len(accs)-1]),
		"",
	}
	return writeLines(w, lines)
}

// RenderRunTable prints the most recent runs, newest first.
func RenderRunTable(w io.Writer, runs []model.RunAggregate, limit int) error {
	if len(runs) == 0 {
		return nil
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	t := newTable("Recent Runs", "ID", "Run", "Ended", "Label", "WPM", "Accuracy", "Resets").alignRight(0, 4, 5, 6)
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		wpm, _, acc := RunMetrics(r.Chars, r.Rejected, r.DurationMs)
		short := r.RunID
		if len(short) > 8 {
			short = short[:8]
		}
		t.add(
			fmt.Sprintf("%d", r.ID),
			short,
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Label,
			fmt.Sprintf("%.1f", wpm),
			fmt.Sprintf("%.2f%%", acc*100),
			fmt.Sprintf("%d", r.Resets),
		)
	}
	return writeLines(w, t.lines())
}

// RenderCharTable prints per-character aggregates, most missed first.
func RenderCharTable(w io.Writer, aggs []model.CharAggregate, limit int) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	chars := TopMissedChars(aggs, limit)
	if len(chars) == 0 {
		_, err := fmt.Fprintln(w, "No missed characters.")
		return err
	}
	byChar := make(map[string]model.CharAggregate, len(aggs))
	for _, agg := range aggs {
		byChar[agg.Char] = agg
	}

	t := newTable("Most Missed Characters", "Char", "Misses", "Accuracy", "Avg Latency (ms)", "Hits").alignRight(1, 2, 3, 4)
	for _, ch := range chars {
		agg := byChar[ch]
		lat := 0.0
		if agg.LatencyCount > 0 {
			lat = float64(agg.LatencySumMs) / float64(agg.LatencyCount)
		}
		t.add(
			CharLabel(agg.Char),
			fmt.Sprintf("%d", agg.Incorrect),
			fmt.Sprintf("%.2f%%", accuracy(agg)*100),
			fmt.Sprintf("%.1f", lat),
			fmt.Sprintf("%d", agg.Correct),
		)
	}
	return writeLines(w, t.lines())
}

// CharLabel makes whitespace visible in tables.
func CharLabel(ch string) string {
	switch ch {
	case " ":
		return "<space>"
	case "\n":
		return "<enter>"
	case "\t":
		return "<tab>"
	default:
		return ch
	}
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
