// Package render provides chart renderers for the dashboard presenter and
// helpers for saving chat plot images.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatPNG  = "png"
)

// Outputs tracks the file written for each chart key.
type Outputs struct {
	mu    sync.RWMutex
	paths map[dashboard.ChartKey]string
}

func (o *Outputs) set(key dashboard.ChartKey, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paths == nil {
		o.paths = make(map[dashboard.ChartKey]string)
	}
	o.paths[key] = path
}

// Path returns the file last written for key.
func (o *Outputs) Path(key dashboard.ChartKey) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.paths[key]
	return p, ok
}

// clear removes every tracked file and forgets it.
func (o *Outputs) clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for key, p := range o.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(o.paths, key)
	}
	return errors.Join(errs...)
}

// Paths returns every written file keyed by chart, in a stable order.
func (o *Outputs) Paths() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.paths))
	for _, p := range o.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FileRenderer writes each serialized spec, pretty-printed, to
// <Dir>/<key>.json.
type FileRenderer struct {
	Dir string
	Outputs
}

// NewFileRenderer creates a renderer writing under dir.
func NewFileRenderer(dir string) *FileRenderer {
	return &FileRenderer{Dir: dir}
}

// ClearCharts implements dashboard.ChartClearer.
func (r *FileRenderer) ClearCharts() error {
	return r.clear()
}

// RenderChart implements dashboard.ChartRenderer.
func (r *FileRenderer) RenderChart(key dashboard.ChartKey, spec string) error {
	var pretty bytes.Buffer
	data := []byte(spec)
	if err := json.Indent(&pretty, data, "", "  "); err == nil {
		data = pretty.Bytes()
	}

	path, err := writeFile(r.Dir, string(key)+".json", data)
	if err != nil {
		return err
	}
	r.set(key, path)
	return nil
}

// PNGRenderer draws bar, pie and scatter figures to <Dir>/<key>.png with
// go-chart. Other figures are written as JSON.
type PNGRenderer struct {
	Dir    string
	Width  int
	Height int
	Outputs

	fallback *FileRenderer
	logger   logging.Logger
}

// NewPNGRenderer creates a PNG renderer writing under dir.
func NewPNGRenderer(dir string, logger logging.Logger) *PNGRenderer {
	return &PNGRenderer{
		Dir:      dir,
		Width:    1024,
		Height:   512,
		fallback: NewFileRenderer(dir),
		logger:   logging.OrDefault(logger),
	}
}

// ClearCharts implements dashboard.ChartClearer.
func (r *PNGRenderer) ClearCharts() error {
	return errors.Join(r.clear(), r.fallback.clear())
}

// RenderChart implements dashboard.ChartRenderer.
func (r *PNGRenderer) RenderChart(key dashboard.ChartKey, spec string) error {
	fig, err := parseFigure(spec)
	if err != nil {
		return r.renderFallback(key, spec, err)
	}

	var buf bytes.Buffer
	switch fig.kind() {
	case "bar":
		err = r.bar(fig).Render(chart.PNG, &buf)
	case "pie":
		var pie *chart.PieChart
		if pie, err = r.pie(fig); err == nil {
			err = pie.Render(chart.PNG, &buf)
		}
	case "scatter", "scattergl":
		var sc *chart.Chart
		if sc, err = r.scatter(fig); err == nil {
			err = sc.Render(chart.PNG, &buf)
		}
	default:
		err = fmt.Errorf("%w: trace type %q", ErrUnsupported, fig.Data[0].Type)
	}
	if err != nil {
		return r.renderFallback(key, spec, err)
	}

	path, err := writeFile(r.Dir, string(key)+".png", buf.Bytes())
	if err != nil {
		return err
	}
	r.set(key, path)
	return nil
}

func (r *PNGRenderer) renderFallback(key dashboard.ChartKey, spec string, cause error) error {
	if !errors.Is(cause, ErrUnsupported) {
		r.logger.Warn("Chart not drawable, writing spec", "chart", string(key), "error", cause)
	} else {
		r.logger.Debug("Chart type not drawn as PNG, writing spec", "chart", string(key), "reason", cause.Error())
	}
	if err := r.fallback.RenderChart(key, spec); err != nil {
		return err
	}
	if p, ok := r.fallback.Path(key); ok {
		r.set(key, p)
	}
	return nil
}

func (r *PNGRenderer) bar(fig *figure) *chart.BarChart {
	multi := len(fig.Data) > 1
	var bars []chart.Value
	for _, t := range fig.Data {
		ys, err := t.Y.floats()
		if err != nil {
			continue
		}
		for i, v := range ys {
			if i >= t.X.Len() {
				break
			}
			label := t.X.label(i)
			if multi && t.Name != "" {
				label += " / " + t.Name
			}
			bars = append(bars, chart.Value{Label: label, Value: v})
		}
	}

	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}

	width := r.Width
	if w := len(bars) * 60; w > width {
		width = w
	}
	barWidth := width / (2 * max(len(bars), 1))
	return &chart.BarChart{
		Title:    string(fig.Layout.Title),
		Width:    width,
		Height:   r.Height,
		BarWidth: barWidth,
		YAxis:    chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Bars:     bars,
	}
}

func (r *PNGRenderer) pie(fig *figure) (*chart.PieChart, error) {
	t := fig.Data[0]
	values, err := t.Values.floats()
	if err != nil {
		return nil, err
	}

	var total float64
	out := make([]chart.Value, 0, len(values))
	for i, v := range values {
		label := ""
		if i < t.Labels.Len() {
			label = t.Labels.label(i)
		}
		total += v
		out = append(out, chart.Value{Label: label, Value: v})
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: pie values sum to %v", ErrUnsupported, total)
	}

	return &chart.PieChart{
		Title:  string(fig.Layout.Title),
		Width:  r.Height,
		Height: r.Height,
		Values: out,
	}, nil
}

func (r *PNGRenderer) scatter(fig *figure) (*chart.Chart, error) {
	var series []chart.Series
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)

	for _, t := range fig.Data {
		xs, err := t.X.floats()
		if err != nil {
			return nil, err
		}
		ys, err := t.Y.floats()
		if err != nil {
			return nil, err
		}
		n := min(len(xs), len(ys))
		if n == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			xmin, xmax = math.Min(xmin, xs[i]), math.Max(xmax, xs[i])
			ymin, ymax = math.Min(ymin, ys[i]), math.Max(ymax, ys[i])
		}

		style := chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4}
		if t.Mode != "" && t.Mode != "markers" {
			style = chart.Style{StrokeWidth: 2}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    t.Name,
			XValues: xs[:n],
			YValues: ys[:n],
			Style:   style,
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: scatter without points", ErrUnsupported)
	}
	if xmin == xmax {
		xmin, xmax = xmin-1, xmax+1
	}
	if ymin == ymax {
		ymin, ymax = ymin-1, ymax+1
	}

	return &chart.Chart{
		Title:  string(fig.Layout.Title),
		Width:  r.Width,
		Height: r.Height,
		XAxis:  chart.XAxis{Range: &chart.ContinuousRange{Min: xmin, Max: xmax}},
		YAxis:  chart.YAxis{Range: &chart.ContinuousRange{Min: ymin, Max: ymax}},
		Series: series,
	}, nil
}

// New returns the renderer for format ("json" or "png").
func New(format, dir string, logger logging.Logger) (dashboard.ChartRenderer, error) {
	switch format {
	case FormatJSON, "":
		return NewFileRenderer(dir), nil
	case FormatPNG:
		return NewPNGRenderer(dir, logger), nil
	}
	return nil, fmt.Errorf("unknown chart format %q", format)
}

// SaveImage writes image bytes to dir/name and returns the path.
func SaveImage(dir, name string, data []byte) (string, error) {
	return writeFile(dir, name, data)
}

func writeFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
