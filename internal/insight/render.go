package insight

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EmptyHint is shown by [Render] when there are no units.
const EmptyHint = "Insights will appear here as you research."

var (
	accent = lipgloss.Color("#6c5ce7")
	muted  = lipgloss.Color("#8b8fa3")
	high   = lipgloss.Color("#00b894")
	medium = lipgloss.Color("#fdcb6e")
	danger = lipgloss.Color("#e17055")

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	conflictStyle = lipgloss.NewStyle().Foreground(danger)
	barStyle      = lipgloss.NewStyle().Foreground(accent)
)

// sparks are the levels of a line chart, lowest first.
var sparks = []rune("▁▂▃▄▅▆▇█")

// Render projects units onto terminal text, one bordered card per unit,
// top first. width is the outer width of every card.
func Render(units []Unit, width int) string {
	if width < 20 {
		width = 20
	}
	if len(units) == 0 {
		return mutedStyle.Width(width).Render(EmptyHint)
	}
	cards := make([]string, 0, len(units))
	inner := width - cardStyle.GetHorizontalFrameSize()
	for _, u := range units {
		body := titleStyle.Render(u.Title) + "\n" + renderBody(u, inner)
		cards = append(cards, cardStyle.Width(width-cardStyle.GetHorizontalBorderSize()).Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderBody(u Unit, width int) string {
	switch u.Kind {
	case KindList:
		return bullets("▸", u.Items)
	case KindNews:
		return bullets("•", u.Items)
	case KindConflict:
		return renderConflicts(u.Conflicts)
	case KindTrust:
		return renderTrust(u.Trust)
	case KindBarChart:
		return renderBars(u.Chart, width)
	case KindDoughnut:
		return renderShares(u.Chart, width)
	case KindLineChart:
		return renderLine(u.Chart)
	default:
		return ""
	}
}

func bullets(mark string, items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = mark + " " + it
	}
	return strings.Join(lines, "\n")
}

func renderConflicts(cs []Conflict) string {
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(conflictStyle.Render("⚠ " + c.Message))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Values found: %s | Variance: %s%%",
			strings.Join(c.Values, ", "), c.Variance)))
	}
	return b.String()
}

func renderTrust(t *Trust) string {
	if t == nil {
		return ""
	}
	level := lipgloss.NewStyle().Bold(true).Foreground(medium)
	if t.Level == "high" {
		level = level.Foreground(high)
	}
	reliability := "n/a"
	if t.Reliability != nil {
		reliability = formatNumber(*t.Reliability)
	}
	lines := []string{
		level.Render(formatNumber(t.Confidence) + "% Confidence"),
		mutedStyle.Render("Reliability Score: " + reliability + "/100"),
	}
	if len(t.Sources) > 0 {
		lines = append(lines, "", titleStyle.Render(TitleSources))
		for _, s := range t.Sources {
			lines = append(lines, "• "+s.Domain)
		}
	}
	return strings.Join(lines, "\n")
}

// renderBars draws one horizontal bar per label and dataset, scaled to the
// largest absolute value in the chart.
func renderBars(c *Chart, width int) string {
	if c == nil || len(c.Labels) == 0 {
		return mutedStyle.Render("no data")
	}
	labelWidth := 0
	for _, l := range c.Labels {
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}
	labelWidth = min(labelWidth, width/3)
	peak := chartPeak(c)

	var lines []string
	for i, l := range c.Labels {
		for _, ds := range c.Datasets {
			v := value(ds, i)
			valText := formatNumber(v)
			room := max(width-labelWidth-lipgloss.Width(valText)-2, 1)
			n := 0
			if peak > 0 {
				n = int(math.Round(math.Abs(v) / peak * float64(room)))
			}
			name := l
			if len(c.Datasets) > 1 {
				name = l + " " + ds.Label
			}
			lines = append(lines, fmt.Sprintf("%s %s %s",
				pad(name, labelWidth), barStyle.Render(strings.Repeat("█", n)), valText))
		}
	}
	return strings.Join(lines, "\n")
}

// renderShares draws the slices of a doughnut chart as percentages.
func renderShares(c *Chart, width int) string {
	if c == nil || len(c.Datasets) == 0 {
		return mutedStyle.Render("no data")
	}
	ds := c.Datasets[0]
	var total float64
	for _, v := range ds.Values {
		total += math.Abs(v)
	}
	room := max(width-20, 1)
	lines := make([]string, 0, len(c.Labels))
	for i, l := range c.Labels {
		v := value(ds, i)
		share := 0.0
		if total > 0 {
			share = math.Abs(v) / total
		}
		bar := strings.Repeat("█", int(math.Round(share*float64(room))))
		lines = append(lines, fmt.Sprintf("%s %s %s%%", pad(l, 9), barStyle.Render(bar),
			strconv.FormatFloat(share*100, 'f', 0, 64)))
	}
	return strings.Join(lines, "\n")
}

// renderLine draws a sparkline of the first dataset with the first and
// last labels underneath.
func renderLine(c *Chart) string {
	if c == nil || len(c.Labels) == 0 || len(c.Datasets) == 0 || len(c.Datasets[0].Values) == 0 {
		return mutedStyle.Render("no data")
	}
	vals := c.Datasets[0].Values
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	var spark strings.Builder
	for _, v := range vals {
		idx := len(sparks) - 1
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparks)-1)))
		}
		spark.WriteRune(sparks[idx])
	}
	first, last := c.Labels[0], c.Labels[len(c.Labels)-1]
	return barStyle.Render(spark.String()) + "\n" +
		mutedStyle.Render(fmt.Sprintf("%s → %s  (%s → %s)",
			first, last, formatNumber(vals[0]), formatNumber(vals[len(vals)-1])))
}

func chartPeak(c *Chart) float64 {
	var peak float64
	for _, ds := range c.Datasets {
		for _, v := range ds.Values {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	return peak
}

func value(ds Dataset, i int) float64 {
	if i < len(ds.Values) {
		return ds.Values[i]
	}
	return 0
}

func pad(s string, w int) string {
	if lipgloss.Width(s) > w {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r))+1 > w {
			r = r[:len(r)-1]
		}
		return string(r) + "…"
	}
	return s + strings.Repeat(" ", w-lipgloss.Width(s))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
