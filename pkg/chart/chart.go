package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/simulation"
)

const (
	chartWidth  = 80
	chartHeight = 10
	xMarkers    = 8
)

// Generator generates ASCII charts
type Generator struct {
	width  int
	height int
}

// NewGenerator creates a new chart generator
func NewGenerator() *Generator {
	return &Generator{
		width:  chartWidth,
		height: chartHeight,
	}
}

// PlotWidth is the number of columns available for data points
func (g *Generator) PlotWidth() int {
	return g.width - 6
}

func (g *Generator) header(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")
}

// column maps a chart column to the time point it displays
func (g *Generator) column(x, points int) int {
	if points <= g.PlotWidth() {
		return x
	}
	idx := int(float64(x) / float64(g.PlotWidth()-1) * float64(points-1))
	if idx >= points {
		idx = points - 1
	}
	return idx
}

func (g *Generator) columns(points int) int {
	if points < g.PlotWidth() {
		return points
	}
	return g.PlotWidth()
}

// GenerateJobChart draws running jobs as slots, with waiting jobs stacked
// above them
func (g *Generator) GenerateJobChart(timePoints []simulation.TimePoint) string {
	if len(timePoints) == 0 {
		return "No data to display"
	}

	var sb strings.Builder
	g.header(&sb, "Jobs Over Time")

	maxRunning, maxWaiting := 0, 0
	for _, tp := range timePoints {
		maxRunning = max(maxRunning, tp.Running)
		maxWaiting = max(maxWaiting, tp.Waiting)
	}
	cols := g.columns(len(timePoints))

	for row := maxRunning + maxWaiting; row > maxRunning; row-- {
		sb.WriteString(fmt.Sprintf("%3d |", row))
		for x := 0; x < cols; x++ {
			tp := timePoints[g.column(x, len(timePoints))]
			if row-maxRunning <= tp.Waiting {
				sb.WriteString("*")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	if maxWaiting > 0 {
		sb.WriteString("    ")
		sb.WriteString(strings.Repeat("-", g.width-4))
		sb.WriteString("\n")
	}

	for slot := maxRunning; slot >= 1; slot-- {
		sb.WriteString(fmt.Sprintf("%3d |", slot))
		for x := 0; x < cols; x++ {
			if timePoints[g.column(x, len(timePoints))].Running >= slot {
				sb.WriteString("█")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	g.xAxis(&sb, timePoints)

	sb.WriteString("\n")
	sb.WriteString("Legend:\n")
	sb.WriteString(fmt.Sprintf("  Running slots (1-%d):\n", maxRunning))
	sb.WriteString("    █ - Running job\n")
	if maxWaiting > 0 {
		sb.WriteString(fmt.Sprintf("  Waiting rows (>%d):\n", maxRunning))
		sb.WriteString("    * - Job waiting for resources\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// GenerateUtilizationChart draws cluster utilization, one row per
// 100/height percent
func (g *Generator) GenerateUtilizationChart(timePoints []simulation.TimePoint) string {
	if len(timePoints) == 0 {
		return "No data to display"
	}

	var sb strings.Builder
	g.header(&sb, "Cluster Utilization (%)")

	cols := g.columns(len(timePoints))
	step := 100.0 / float64(g.height)
	for row := g.height; row >= 1; row-- {
		threshold := float64(row) * step
		sb.WriteString(fmt.Sprintf("%3.0f |", threshold))
		for x := 0; x < cols; x++ {
			// a bar reaches a row once it covers more than half of it
			if timePoints[g.column(x, len(timePoints))].Utilization >= threshold-step/2 {
				sb.WriteString("▓")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	g.xAxis(&sb, timePoints)
	sb.WriteString("\n")

	return sb.String()
}

func (g *Generator) xAxis(sb *strings.Builder, timePoints []simulation.TimePoint) {
	sb.WriteString("    +")
	sb.WriteString(strings.Repeat("-", g.PlotWidth()))
	sb.WriteString("\n")

	start := timePoints[0].Time
	total := int64(timePoints[len(timePoints)-1].Time - start)
	width := g.PlotWidth()
	labelLine := []rune(strings.Repeat(" ", width))

	tick := niceTick(total, xMarkers)
	for at := int64(0); at <= total; at += tick {
		position := 0
		if total > 0 {
			position = int(float64(at) / float64(total) * float64(width))
		}
		marker := fmt.Sprintf("%d", int64(start)+at)
		if position+len(marker) <= width {
			for i, ch := range marker {
				labelLine[position+i] = ch
			}
		}
	}

	sb.WriteString("     ")
	sb.WriteString(strings.TrimRight(string(labelLine), " "))
	sb.WriteString("\n")
}

// niceTick returns a 1, 2 or 5 times power of ten spacing giving at most
// markers intervals over total
func niceTick(total int64, markers int) int64 {
	if total <= 0 || markers <= 0 {
		return 1
	}
	raw := float64(total) / float64(markers)
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if tick := m * magnitude; tick >= raw {
			return max(int64(tick), 1)
		}
	}
	return max(int64(10*magnitude), 1)
}

// GenerateEventSummary generates a summary of events
func (g *Generator) GenerateEventSummary(events []metrics.Event) string {
	var sb strings.Builder
	g.header(&sb, "Event Summary")

	eventsByType := make(map[metrics.EventType]int)
	for _, event := range events {
		eventsByType[event.Type]++
	}

	sb.WriteString(fmt.Sprintf("Total Events: %d\n", len(events)))
	sb.WriteString(fmt.Sprintf("  - Jobs Submitted: %d\n", eventsByType[metrics.EventTypeJobSubmitted]))
	sb.WriteString(fmt.Sprintf("  - Jobs Started: %d\n", eventsByType[metrics.EventTypeJobStarted]))
	sb.WriteString(fmt.Sprintf("  - Jobs Finished: %d\n", eventsByType[metrics.EventTypeJobFinished]))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateWarnings lists the jobs that had to wait before starting
func (g *Generator) GenerateWarnings(warnings []metrics.Event) string {
	var sb strings.Builder
	g.header(&sb, "Warnings")

	if len(warnings) == 0 {
		sb.WriteString("No warnings!\n")
		return sb.String()
	}

	for _, warning := range warnings {
		sb.WriteString(fmt.Sprintf("[t=%d] %s\n", warning.Time, warning.Message))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Warnings: %d\n", len(warnings)))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateDetailedTimeline generates a detailed timeline of events
func (g *Generator) GenerateDetailedTimeline(events []metrics.Event, limit int) string {
	var sb strings.Builder

	title := "Detailed Timeline"
	if limit > 0 && limit < len(events) {
		title += fmt.Sprintf(" (showing first %d events)", limit)
	}
	g.header(&sb, title)

	displayCount := len(events)
	if limit > 0 && limit < displayCount {
		displayCount = limit
	}

	for i := 0; i < displayCount; i++ {
		event := events[i]

		typeIcon := " "
		switch event.Type {
		case metrics.EventTypeJobSubmitted:
			typeIcon = "S"
		case metrics.EventTypeJobStarted:
			typeIcon = "+"
		case metrics.EventTypeJobFinished:
			typeIcon = "-"
		}

		sb.WriteString(fmt.Sprintf("[%8s] %s [%d/%d] %s\n",
			FormatDuration(simclock.Duration(event.Time)),
			typeIcon,
			event.Running,
			event.Waiting,
			event.Message))
	}

	if limit > 0 && limit < len(events) {
		sb.WriteString(fmt.Sprintf("\n... and %d more events\n", len(events)-limit))
	}

	sb.WriteString("\n")

	return sb.String()
}

// GenerateWaitingTable lists every job with its waiting time in record
// order
func (g *Generator) GenerateWaitingTable(jobs []metrics.JobRecord) string {
	var sb strings.Builder
	g.header(&sb, "Waiting Times")

	if len(jobs) == 0 {
		sb.WriteString("No jobs\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-24s %-16s %8s %8s %8s %8s\n", "JOB", "NODE", "SUBMIT", "START", "END", "WAIT"))
	for _, j := range jobs {
		if !j.Started {
			sb.WriteString(fmt.Sprintf("%-24s %-16s %8d %8s %8s %8s\n", j.Name, "-", j.SubmitTime, "-", "-", "-"))
			continue
		}
		end := "-"
		if j.Finished {
			end = fmt.Sprintf("%d", j.EndTime)
		}
		sb.WriteString(fmt.Sprintf("%-24s %-16s %8d %8d %8s %8s\n",
			j.Name, j.Node, j.SubmitTime, j.StartTime, end, FormatDuration(j.WaitingTime)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// FormatDuration formats virtual time, one unit per second, in a
// human-readable way
func FormatDuration(d simclock.Duration) string {
	td := time.Duration(d) * time.Second
	if td < time.Minute {
		return fmt.Sprintf("%ds", int(td.Seconds()))
	}
	if td < time.Hour {
		return fmt.Sprintf("%dm%ds", int(td.Minutes()), int(td.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(td.Hours()), int(td.Minutes())%60)
}
