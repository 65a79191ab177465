// Package insight turns a bot response into renderable insight units.
//
// [Derive] is a pure mapping from response text and an optional structured
// payload to a slice of [Unit] values. Units are returned in prepend order:
// a [Panel] inserts each one above everything already shown, so the last
// unit returned ends up on top. [Render] is a separate, stateless projection
// of units onto terminal text.
package insight

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/aura/pkg/chat"
)

// Kind tags the presentation of a unit.
type Kind string

const (
	KindList      Kind = "list"
	KindBarChart  Kind = "chart-bar"
	KindDoughnut  Kind = "chart-doughnut"
	KindLineChart Kind = "chart-line"
	KindTrust     Kind = "trust"
	KindNews      Kind = "news"
	KindConflict  Kind = "conflict"
)

// Unit titles.
const (
	TitleTopics        = "KEY TOPICS"
	TitleTable         = "Data Analysis"
	TitleConflicts     = "DATA CONFLICTS DETECTED"
	TitleNews          = "LATEST NEWS"
	TitleTrust         = "TRUST SCORE"
	TitleSources       = "TOP SOURCES"
	TitleMetrics       = "KEY METRICS"
	TitleSentiment     = "SENTIMENT ANALYSIS"
	TitleTrends        = "MARKET TRENDS"
	TitlePriorities    = "STRATEGIC PRIORITIES"
	TitleOpportunities = "KEY OPPORTUNITIES"
	TitleCompetitors   = "COMPETITIVE LANDSCAPE"
)

// Unit is one card or chart of the insight panel. Which of the optional
// fields is set depends on Kind.
type Unit struct {
	Kind  Kind
	Title string

	// Items holds the entries of list and news units.
	Items []string

	// Chart is set for the chart kinds.
	Chart *Chart

	// Trust is set for trust units.
	Trust *Trust

	// Conflicts is set for conflict units.
	Conflicts []Conflict
}

// Chart is the data of a bar, doughnut or line chart.
type Chart struct {
	Labels   []string
	Datasets []Dataset
}

// Dataset is one series of a chart, aligned with Chart.Labels.
type Dataset struct {
	Label  string
	Values []float64
}

// Trust carries the confidence indicator and the sources behind it.
type Trust struct {
	Confidence float64
	// Reliability is nil when the backend did not report one.
	Reliability *float64
	// Level is "high" above 80 percent confidence and "medium" otherwise.
	Level   string
	Sources []Source
}

// Source is a cited URL and its bare domain.
type Source struct {
	URL    string
	Domain string
}

// Conflict is a figure on which sources disagree.
type Conflict struct {
	Message  string
	Values   []string
	Variance string
}

// HighConfidence is the score above which trust is reported as high.
const HighConfidence = 80

// Derive maps a bot response to insight units in prepend order.
//
// Topics from markdown headings come first regardless of the payload. With a
// payload, each table yields a bar chart, followed by the structured units
// ordered so that conflicts are prepended last. Without one, a metrics chart
// is synthesized from revenue and growth figures found in the text. Missing
// or malformed fields never fail derivation.
func Derive(text string, data *chat.Payload) []Unit {
	var units []Unit
	if u, ok := topics(text); ok {
		units = append(units, u)
	}

	if data == nil {
		if m := ExtractMetrics(text); m.Len() > 0 {
			units = append(units, metricsUnit(m))
		}
		return units
	}

	for i, t := range data.Tables {
		u, err := tableUnit(t)
		if err != nil {
			slog.Warn("insight: skipping malformed table", "index", i, "title", t.Title, "err", err)
			continue
		}
		units = append(units, u)
	}

	add := func(u Unit, ok bool) {
		if ok {
			units = append(units, u)
		}
	}
	add(listUnit(TitleCompetitors, data.Competitors))
	add(listUnit(TitleOpportunities, data.Opportunities))
	add(listUnit(TitlePriorities, data.Priorities))
	add(trendsUnit(data.Trends))
	add(sentimentUnit(data.Sentiment))
	if data.Metrics != nil && data.Metrics.Len() > 0 {
		units = append(units, metricsUnit(data.Metrics))
	}
	add(trustUnit(data.ConfidenceScore, data.ReliabilityScore, data.Sources))
	add(newsUnit(data.RecentNews))
	add(conflictUnit(data.Conflicts))
	return units
}

// topics collects every line that starts with a level-2 or deeper heading.
func topics(text string) (Unit, bool) {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "##") {
			items = append(items, strings.TrimSpace(strings.ReplaceAll(line, "#", "")))
		}
	}
	if len(items) == 0 {
		return Unit{}, false
	}
	return Unit{Kind: KindList, Title: TitleTopics, Items: items}, true
}

func listUnit(title string, items []string) (Unit, bool) {
	if len(items) == 0 {
		return Unit{}, false
	}
	return Unit{Kind: KindList, Title: title, Items: append([]string(nil), items...)}, true
}

func newsUnit(items []string) (Unit, bool) {
	if len(items) == 0 {
		return Unit{}, false
	}
	return Unit{Kind: KindNews, Title: TitleNews, Items: append([]string(nil), items...)}, true
}

func conflictUnit(in []chat.Conflict) (Unit, bool) {
	if len(in) == 0 {
		return Unit{}, false
	}
	out := make([]Conflict, 0, len(in))
	for _, c := range in {
		vals := make([]string, len(c.Values))
		for i, v := range c.Values {
			vals[i] = v.String()
		}
		out = append(out, Conflict{Message: c.Message, Values: vals, Variance: c.Variance.String()})
	}
	return Unit{Kind: KindConflict, Title: TitleConflicts, Conflicts: out}, true
}

// trustUnit is only produced for a non-zero confidence score; sources
// without a score are not shown.
func trustUnit(confidence, reliability *float64, sources []string) (Unit, bool) {
	if confidence == nil || *confidence == 0 {
		return Unit{}, false
	}
	tr := &Trust{Confidence: *confidence, Level: "medium"}
	if *confidence > HighConfidence {
		tr.Level = "high"
	}
	if reliability != nil {
		r := *reliability
		tr.Reliability = &r
	}
	for _, s := range sources {
		tr.Sources = append(tr.Sources, Source{URL: s, Domain: Domain(s)})
	}
	return Unit{Kind: KindTrust, Title: TitleTrust, Trust: tr}, true
}

// Domain strips the scheme and path from a URL-ish string.
func Domain(url string) string {
	d := strings.TrimPrefix(url, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}

// MetricLabel is the display label of a metric name.
func MetricLabel(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
}

func metricsUnit(m *Metrics) Unit {
	c := &Chart{Datasets: []Dataset{{Label: "Value"}}}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		c.Labels = append(c.Labels, MetricLabel(pair.Key))
		c.Datasets[0].Values = append(c.Datasets[0].Values, pair.Value)
	}
	return Unit{Kind: KindBarChart, Title: TitleMetrics, Chart: c}
}

// Sentiment keys, in chart order.
var sentimentKeys = []struct{ key, label string }{
	{"positive", "Positive"},
	{"negative", "Negative"},
	{"neutral", "Neutral"},
}

func sentimentUnit(s map[string]float64) (Unit, bool) {
	if len(s) == 0 {
		return Unit{}, false
	}
	c := &Chart{Datasets: []Dataset{{}}}
	for _, k := range sentimentKeys {
		c.Labels = append(c.Labels, k.label)
		c.Datasets[0].Values = append(c.Datasets[0].Values, s[k.key])
	}
	return Unit{Kind: KindDoughnut, Title: TitleSentiment, Chart: c}, true
}

// trendsUnit needs at least two points to draw a line.
func trendsUnit(trends []chat.Trend) (Unit, bool) {
	if len(trends) < 2 {
		return Unit{}, false
	}
	c := &Chart{Datasets: []Dataset{{Label: "Trend"}}}
	for _, t := range trends {
		c.Labels = append(c.Labels, t.Label())
		c.Datasets[0].Values = append(c.Datasets[0].Values, trendValue(t))
	}
	return Unit{Kind: KindLineChart, Title: TitleTrends, Chart: c}, true
}

// trendValue is the first of value, revenue and growth that parses to a
// non-zero number.
func trendValue(t chat.Trend) float64 {
	for _, a := range t.Amounts() {
		if v := ParseNumber(a.String()); v != 0 {
			return v
		}
	}
	return 0
}

func tableUnit(t chat.Table) (Unit, error) {
	rows, err := t.Cells()
	if err != nil {
		return Unit{}, err
	}
	title := t.Title
	if title == "" {
		title = TitleTable
	}
	c := &Chart{}
	for _, row := range rows {
		label := ""
		if len(row) > 0 {
			label = row[0].String()
		}
		c.Labels = append(c.Labels, label)
	}
	for col := 1; col < len(t.Headers); col++ {
		ds := Dataset{Label: t.Headers[col], Values: make([]float64, len(rows))}
		for r, row := range rows {
			if col < len(row) {
				ds.Values[r] = ParseNumber(row[col].String())
			}
		}
		c.Datasets = append(c.Datasets, ds)
	}
	return Unit{Kind: KindBarChart, Title: title, Chart: c}, nil
}

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseNumber reads a display value such as "$1.2B" or "15%" as a number.
// Every character other than digits, '.' and '-' is removed and the longest
// numeric prefix of the rest is parsed; anything unparsable is 0.
func ParseNumber(s string) float64 {
	m := leadingNumber.FindString(nonNumeric.ReplaceAllString(s, ""))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
