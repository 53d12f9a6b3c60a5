// Package dashboard distributes an analytics payload to its presentation
// surfaces. It never fetches data.
package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KPIView displays the three headline figures.
type KPIView interface {
	ShowKPIs(k KPIs)
}

// SummaryView displays the narrative summary.
type SummaryView interface {
	ShowSummary(summary string)
}

// ChartRenderer renders one serialized chart spec at a fixed mount point.
type ChartRenderer interface {
	RenderChart(key ChartKey, spec string) error
}

// ChartClearer is implemented by renderers whose output outlives a payload.
// Present clears it before drawing the next payload.
type ChartClearer interface {
	ClearCharts() error
}

// ChartError lists the charts that were not rendered.
type ChartError struct {
	Missing   []ChartKey
	Malformed []ChartKey
	Failed    map[ChartKey]error
}

func (e *ChartError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+joinKeys(e.Missing))
	}
	if len(e.Malformed) > 0 {
		parts = append(parts, "malformed: "+joinKeys(e.Malformed))
	}
	if len(e.Failed) > 0 {
		keys := make([]ChartKey, 0, len(e.Failed))
		for k := range e.Failed {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		failed := make([]string, 0, len(keys))
		for _, k := range keys {
			failed = append(failed, fmt.Sprintf("%s (%v)", k, e.Failed[k]))
		}
		parts = append(parts, "render failed: "+strings.Join(failed, ", "))
	}
	return "charts not rendered: " + strings.Join(parts, "; ")
}

func (e *ChartError) empty() bool {
	return len(e.Missing) == 0 && len(e.Malformed) == 0 && len(e.Failed) == 0
}

func joinKeys(keys []ChartKey) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}

// Presenter fans a payload out to the KPI, summary and chart surfaces and
// keeps the payload currently on display.
type Presenter struct {
	kpis    KPIView
	summary SummaryView
	charts  ChartRenderer

	mu      sync.RWMutex
	current *Payload
}

// NewPresenter wires the three surfaces.
func NewPresenter(kpis KPIView, summary SummaryView, charts ChartRenderer) *Presenter {
	return &Presenter{kpis: kpis, summary: summary, charts: charts}
}

// Present replaces the current payload and writes it to every surface.
// Charts that are missing, not a JSON object, or rejected by the renderer are
// skipped; the rest still render and a *ChartError describes the skipped ones.
func (p *Presenter) Present(payload *Payload) error {
	if payload == nil {
		return fmt.Errorf("present: nil payload")
	}
	if c, ok := p.charts.(ChartClearer); ok {
		if err := c.ClearCharts(); err != nil {
			return fmt.Errorf("present: clear charts: %w", err)
		}
	}

	p.mu.Lock()
	p.current = payload
	p.mu.Unlock()

	p.kpis.ShowKPIs(payload.KPIs)
	p.summary.ShowSummary(payload.Summary)

	cerr := &ChartError{}
	for _, key := range AllChartKeys {
		spec, ok := payload.Charts[key]
		if !ok || strings.TrimSpace(spec) == "" {
			cerr.Missing = append(cerr.Missing, key)
			continue
		}
		if !isJSONObject(spec) {
			cerr.Malformed = append(cerr.Malformed, key)
			continue
		}
		if err := p.charts.RenderChart(key, spec); err != nil {
			if cerr.Failed == nil {
				cerr.Failed = make(map[ChartKey]error)
			}
			cerr.Failed[key] = err
		}
	}

	if cerr.empty() {
		return nil
	}
	return cerr
}

// Current returns the payload on display, or nil before the first Present.
func (p *Presenter) Current() *Payload {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func isJSONObject(spec string) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(spec), &obj) == nil && obj != nil
}

// Discard is a KPIView, SummaryView and ChartRenderer that drops everything.
// Headless front ends read the payload back through Current.
type Discard struct{}

func (Discard) ShowKPIs(KPIs)                      {}
func (Discard) ShowSummary(string)                 {}
func (Discard) RenderChart(ChartKey, string) error { return nil }
