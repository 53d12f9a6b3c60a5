package chat

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Role identifies who produced an entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Kind discriminates text entries from image-bearing plot entries.
type Kind string

const (
	KindText Kind = "text"
	KindPlot Kind = "plot"
)

// Fixed transcript texts.
const (
	PlotCaption  = "Here is the chart you requested:"
	ErrorPrefix  = "Sorry, I encountered an error: "
	GreetingText = "Hello! Your data has been processed. Ask me anything about it, or ask me to plot something."
)

// ErrEmptyInput is returned for blank user messages. Callers ignore it.
var ErrEmptyInput = errors.New("chat: empty message")

// Entry is one turn of the transcript. Kind=plot always carries a non-empty
// Image (base64); Kind=text always has Text set, possibly empty.
type Entry struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// ImageBytes decodes the entry's base64 image.
func (e Entry) ImageBytes() ([]byte, error) {
	if e.Kind != KindPlot {
		return nil, fmt.Errorf("entry %s is not a plot", e.ID)
	}
	return base64.StdEncoding.DecodeString(e.Image)
}

// Reply is an assistant answer, either TextReply or PlotReply.
type Reply interface {
	isReply()
}

// TextReply is a plain answer.
type TextReply struct {
	Answer string
}

// PlotReply carries a base64 chart image.
type PlotReply struct {
	Image   string
	Caption string
}

func (TextReply) isReply() {}
func (PlotReply) isReply() {}

// wireResponse is the /chat success body.
type wireResponse struct {
	Answer string `json:"answer"`
	Type   string `json:"type"`
	Image  string `json:"image"`
}

var errMissingPlotImage = errors.New("plot response without image")

// DecodeReply turns a /chat response body into a Reply. Anything that is not
// type "plot" is a text answer.
func DecodeReply(data []byte) (Reply, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	if w.Type == string(KindPlot) {
		if w.Image == "" {
			return nil, errMissingPlotImage
		}
		return PlotReply{Image: w.Image, Caption: PlotCaption}, nil
	}

	return TextReply{Answer: w.Answer}, nil
}
