package plugin

import (
	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/session"
)

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the bot entry the message produced
type ChatResponse struct {
	Entry chat.Entry `json:"entry"`
	Error string     `json:"error,omitempty"`
}

// UploadResponse is returned by the upload resource
type UploadResponse struct {
	Status    string             `json:"status"`
	State     session.State      `json:"state"`
	Dashboard *dashboard.Payload `json:"dashboard,omitempty"`
}

// TranscriptResponse lists the conversation in arrival order
type TranscriptResponse struct {
	Entries []chat.Entry `json:"entries"`
}

// StatusResponse combines coordinator and surface state
type StatusResponse struct {
	session.Status
	Surface session.Snapshot `json:"surface"`
}
