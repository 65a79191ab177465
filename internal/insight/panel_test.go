package insight

import (
	"context"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/aura/internal/observe"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, _ := newTestMetrics(t)
	return m
}

// unitCount returns the aura.insight.units count for kind.
func unitCount(t *testing.T, reader *sdkmetric.ManualReader, kind Kind) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "aura.insight.units" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("aura.insight.units is not a sum")
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("kind")); ok && v.AsString() == string(kind) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestPanel_ApplyPrepends(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	p := NewPanel(WithMetrics(m))
	if !p.Empty() {
		t.Fatal("new panel should be empty")
	}

	p.Apply(context.Background(), []Unit{
		{Kind: KindList, Title: "a"},
		{Kind: KindNews, Title: "b"},
	})
	p.Apply(context.Background(), []Unit{
		{Kind: KindList, Title: "c"},
		{Kind: KindConflict, Title: "d"},
	})

	if got, want := titles(p.Units()), []string{"d", "c", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
	if got := unitCount(t, reader, KindList); got != 2 {
		t.Errorf("want 2 list units recorded, got %d", got)
	}
	if got := unitCount(t, reader, KindConflict); got != 1 {
		t.Errorf("want 1 conflict unit recorded, got %d", got)
	}
}

func TestPanel_ApplyNothing(t *testing.T) {
	t.Parallel()
	p := NewPanel(WithMetrics(testMetrics(t)))
	p.Apply(context.Background(), nil)
	if !p.Empty() {
		t.Error("want panel still empty")
	}
}

func TestPanel_UnitsIsACopy(t *testing.T) {
	t.Parallel()
	p := NewPanel(WithMetrics(testMetrics(t)))
	p.Apply(context.Background(), []Unit{{Kind: KindList, Title: "a"}})
	got := p.Units()
	got[0].Title = "mutated"
	if p.Units()[0].Title != "a" {
		t.Error("Units must not expose internal storage")
	}
}

func TestPanel_Reset(t *testing.T) {
	t.Parallel()
	p := NewPanel(WithMetrics(testMetrics(t)))
	p.Apply(context.Background(), []Unit{{Kind: KindList, Title: "a"}})
	p.Reset()
	if !p.Empty() || len(p.Units()) != 0 {
		t.Errorf("want empty panel after reset, got %v", titles(p.Units()))
	}
}
