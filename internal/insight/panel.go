package insight

import (
	"context"
	"sync"

	"github.com/MrWong99/aura/internal/observe"
)

// Panel is the insight panel: an ordered stack of units, newest on top.
// It is safe for concurrent use.
type Panel struct {
	mu      sync.Mutex
	units   []Unit // top first
	metrics *observe.Metrics
}

// PanelOption configures a [Panel].
type PanelOption func(*Panel)

// WithMetrics records applied units on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PanelOption {
	return func(p *Panel) { p.metrics = m }
}

// NewPanel returns an empty panel.
func NewPanel(opts ...PanelOption) *Panel {
	p := &Panel{}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Apply prepends each unit in turn, so the last one ends up on top.
func (p *Panel) Apply(ctx context.Context, units []Unit) {
	if len(units) == 0 {
		return
	}
	p.mu.Lock()
	next := make([]Unit, 0, len(p.units)+len(units))
	for i := len(units) - 1; i >= 0; i-- {
		next = append(next, units[i])
	}
	p.units = append(next, p.units...)
	p.mu.Unlock()

	for _, u := range units {
		p.metrics.RecordInsightUnit(ctx, string(u.Kind))
	}
}

// Units returns a copy of the panel contents, top first.
func (p *Panel) Units() []Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Unit(nil), p.units...)
}

// Empty reports whether the panel shows nothing.
func (p *Panel) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.units) == 0
}

// Reset clears the panel.
func (p *Panel) Reset() {
	p.mu.Lock()
	p.units = nil
	p.mu.Unlock()
}
