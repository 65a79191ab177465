package insight

import (
	"regexp"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Metrics is an insertion-ordered metric name to value mapping.
type Metrics = orderedmap.OrderedMap[string, float64]

var (
	revenuePattern      = regexp.MustCompile(`(?i)revenue.*?\$([\d.]+)\s*(billion|million|B|M)`)
	growthPattern       = regexp.MustCompile(`(?i)growth.*?([\d.]+)%`)
	growthSuffixPattern = regexp.MustCompile(`(?i)([\d.]+)%\s*growth`)
)

// ExtractMetrics scans free text for a revenue figure and a growth
// percentage. It is used when a response carries no structured payload.
// The result holds "Revenue" and "Growth %" for whichever matched.
func ExtractMetrics(text string) *Metrics {
	m := orderedmap.New[string, float64]()
	if sub := revenuePattern.FindStringSubmatch(text); sub != nil {
		m.Set("Revenue", ParseNumber(sub[1]))
	}
	sub := growthPattern.FindStringSubmatch(text)
	if sub == nil {
		sub = growthSuffixPattern.FindStringSubmatch(text)
	}
	if sub != nil {
		m.Set("Growth %", ParseNumber(sub[1]))
	}
	return m
}
