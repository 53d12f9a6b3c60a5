package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChartKey names one of the fixed chart mount points.
type ChartKey string

const (
	SalesByProduct           ChartKey = "sales_by_product"
	SalesByRegion            ChartKey = "sales_by_region"
	SatisfactionVsUnits      ChartKey = "satisfaction_vs_units"
	UnitsByRegionProduct     ChartKey = "units_by_region_product"
	AvgSatisfactionByProduct ChartKey = "avg_satisfaction_by_product"
	SalesVsUnitsScatter      ChartKey = "sales_vs_units_scatter"
	SalesEfficiencyHeatmap   ChartKey = "sales_efficiency_heatmap"
)

// AllChartKeys lists the mount points in display order.
var AllChartKeys = []ChartKey{
	SalesByProduct,
	SalesByRegion,
	SatisfactionVsUnits,
	UnitsByRegionProduct,
	AvgSatisfactionByProduct,
	SalesVsUnitsScatter,
	SalesEfficiencyHeatmap,
}

// KPIValue is a KPI as the backend sent it. Numbers keep their literal JSON
// text and strings are kept unquoted, so 4.2 stays "4.2" and "$1,000" stays
// "$1,000".
type KPIValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *KPIValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = KPIValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("kpi value %s is neither number nor string", data)
		}
		*v = KPIValue(n.String())
	}
	return nil
}

// MarshalJSON writes the value as a JSON string.
func (v KPIValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// MarshalYAML writes the value as a plain scalar.
func (v KPIValue) MarshalYAML() (interface{}, error) {
	return string(v), nil
}

func (v KPIValue) String() string {
	return string(v)
}

// KPIs are the three headline figures.
type KPIs struct {
	TotalSales      KPIValue `json:"total_sales" yaml:"total_sales"`
	TotalUnits      KPIValue `json:"total_units_sold" yaml:"total_units_sold"`
	AvgSatisfaction KPIValue `json:"average_satisfaction" yaml:"average_satisfaction"`
}

// Payload is the analytics bundle returned after a successful upload.
// Charts values are serialized chart specs handed unmodified to a renderer.
type Payload struct {
	KPIs    KPIs                `json:"kpis" yaml:"kpis"`
	Summary string              `json:"summary" yaml:"summary"`
	Charts  map[ChartKey]string `json:"charts" yaml:"charts"`
}

// Decode parses a /dashboard response body.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode dashboard: %w", err)
	}
	if p.Charts == nil {
		p.Charts = make(map[ChartKey]string)
	}
	return &p, nil
}
