package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Payload is the optional structured data returned alongside a bot response.
//
// Every field is independently optional. Decoding is tolerant: a field whose
// JSON does not match the expected shape is dropped with a warning and the
// remaining fields are kept, so one bad field never loses a whole response.
type Payload struct {
	Company string `json:"company,omitempty"`

	// Metrics maps metric names to values in the order the backend sent them.
	Metrics *orderedmap.OrderedMap[string, float64] `json:"metrics,omitempty"`

	// Sentiment holds the positive/negative/neutral triple. Missing keys read as 0.
	Sentiment map[string]float64 `json:"sentiment,omitempty"`

	Trends        []Trend    `json:"trends,omitempty"`
	Tables        []Table    `json:"tables,omitempty"`
	Competitors   []string   `json:"competitors,omitempty"`
	Priorities    []string   `json:"priorities,omitempty"`
	Opportunities []string   `json:"opportunities,omitempty"`
	RecentNews    []string   `json:"recent_news,omitempty"`
	Conflicts     []Conflict `json:"conflicts,omitempty"`

	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

// Trend is one point of a time series. The label comes from the first
// non-empty of Period, Year and Quarter; the value from the first non-empty
// of Value, Revenue and Growth.
type Trend struct {
	Period  Scalar `json:"period,omitempty"`
	Year    Scalar `json:"year,omitempty"`
	Quarter Scalar `json:"quarter,omitempty"`
	Value   Scalar `json:"value,omitempty"`
	Revenue Scalar `json:"revenue,omitempty"`
	Growth  Scalar `json:"growth,omitempty"`
}

// Label returns the x-axis label of the point.
func (t Trend) Label() string {
	return string(firstNonEmpty(t.Period, t.Year, t.Quarter))
}

// Amounts returns the candidate y-axis values in precedence order.
func (t Trend) Amounts() []Scalar {
	return []Scalar{t.Value, t.Revenue, t.Growth}
}

// Table is a tabular block of the payload. Rows is kept raw because its
// shape is only validated when the table is rendered.
type Table struct {
	Title   string          `json:"title,omitempty"`
	Headers []string        `json:"headers,omitempty"`
	Rows    json.RawMessage `json:"rows,omitempty"`
}

// Cells decodes Rows as a sequence of rows of scalar cells. Missing or null
// rows are not a sequence and are reported as an error, like any other
// malformed value. An empty sequence is valid.
func (t Table) Cells() ([][]Scalar, error) {
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("chat: table %q: no rows", t.Title)
	}
	var rows [][]Scalar
	if err := json.Unmarshal(t.Rows, &rows); err != nil {
		return nil, fmt.Errorf("chat: table %q rows: %w", t.Title, err)
	}
	if rows == nil {
		return nil, fmt.Errorf("chat: table %q rows: null", t.Title)
	}
	return rows, nil
}

// Conflict reports disagreeing values for the same figure across sources.
type Conflict struct {
	Message  string   `json:"message,omitempty"`
	Values   []Scalar `json:"values,omitempty"`
	Variance Scalar   `json:"variance,omitempty"`
}

// UnmarshalJSON decodes each known field on its own and drops those that
// fail. Only a body that is not a JSON object is an error.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("chat: payload: %w", err)
	}

	var out Payload
	fields := map[string]any{
		"company":           &out.Company,
		"metrics":           &out.Metrics,
		"sentiment":         &out.Sentiment,
		"trends":            &out.Trends,
		"tables":            &out.Tables,
		"competitors":       &out.Competitors,
		"priorities":        &out.Priorities,
		"opportunities":     &out.Opportunities,
		"recent_news":       &out.RecentNews,
		"conflicts":         &out.Conflicts,
		"confidence_score":  &out.ConfidenceScore,
		"reliability_score": &out.ReliabilityScore,
		"sources":           &out.Sources,
	}
	for name, msg := range raw {
		dst, ok := fields[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			slog.Warn("chat: dropping malformed payload field", "field", name, "err", err)
			resetField(&out, name)
		}
	}
	*p = out
	return nil
}

// resetField clears whatever a failed decode may have partially written.
func resetField(p *Payload, name string) {
	switch name {
	case "company":
		p.Company = ""
	case "metrics":
		p.Metrics = nil
	case "sentiment":
		p.Sentiment = nil
	case "trends":
		p.Trends = nil
	case "tables":
		p.Tables = nil
	case "competitors":
		p.Competitors = nil
	case "priorities":
		p.Priorities = nil
	case "opportunities":
		p.Opportunities = nil
	case "recent_news":
		p.RecentNews = nil
	case "conflicts":
		p.Conflicts = nil
	case "confidence_score":
		p.ConfidenceScore = nil
	case "reliability_score":
		p.ReliabilityScore = nil
	case "sources":
		p.Sources = nil
	}
}

// NewMetrics builds an ordered metrics map holding pairs in the given order.
func NewMetrics(pairs ...MetricPair) *orderedmap.OrderedMap[string, float64] {
	m := orderedmap.New[string, float64]()
	for _, p := range pairs {
		m.Set(p.Name, p.Value)
	}
	return m
}

// MetricPair is one named metric value.
type MetricPair struct {
	Name  string
	Value float64
}

func firstNonEmpty(vals ...Scalar) Scalar {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
