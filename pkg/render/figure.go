package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupported marks figures the PNG renderer cannot draw.
var ErrUnsupported = errors.New("render: unsupported figure")

// figure is the subset of a Plotly figure the PNG renderer understands.
type figure struct {
	Data   []trace `json:"data"`
	Layout layout  `json:"layout"`
}

type trace struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Mode   string `json:"mode"`
	X      array  `json:"x"`
	Y      array  `json:"y"`
	Labels array  `json:"labels"`
	Values array  `json:"values"`
}

type layout struct {
	Title title `json:"title"`
}

// title accepts both "title": "x" and "title": {"text": "x"}.
type title string

func (t *title) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = title(s)
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(data, &obj)
	*t = title(obj.Text)
	return nil
}

// array is a plain JSON array. Binary-encoded arrays ({"dtype", "bdata"})
// decode to a nil array with encoded set.
type array struct {
	items   []interface{}
	encoded bool
}

func (a *array) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &a.items); err == nil {
		return nil
	}
	a.items = nil
	a.encoded = true
	return nil
}

func (a array) Len() int { return len(a.items) }

func (a array) label(i int) string {
	switch v := a.items[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a array) floats() ([]float64, error) {
	if a.encoded {
		return nil, fmt.Errorf("%w: binary-encoded array", ErrUnsupported)
	}
	out := make([]float64, len(a.items))
	for i, item := range a.items {
		switch v := item.(type) {
		case float64:
			out[i] = v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: non-numeric value %q", ErrUnsupported, v)
			}
			out[i] = f
		default:
			return nil, fmt.Errorf("%w: value %v", ErrUnsupported, item)
		}
	}
	return out, nil
}

func parseFigure(spec string) (*figure, error) {
	var f figure
	if err := json.Unmarshal([]byte(spec), &f); err != nil {
		return nil, fmt.Errorf("parse figure: %w", err)
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: no traces", ErrUnsupported)
	}
	return &f, nil
}

// kind returns the shared trace type, or "" when traces differ.
func (f *figure) kind() string {
	k := f.Data[0].Type
	if k == "" {
		k = "scatter"
	}
	for _, t := range f.Data[1:] {
		tt := t.Type
		if tt == "" {
			tt = "scatter"
		}
		if tt != k {
			return ""
		}
	}
	return k
}
