package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
)

func allowMethod(req *backend.CallResourceRequest, sender backend.CallResourceResponseSender, methods ...string) (bool, error) {
	for _, m := range methods {
		if req.Method == m {
			return true, nil
		}
	}
	return false, sendError(sender, 405, fmt.Sprintf("Method %s not allowed", req.Method))
}

// statusFor maps a failed call to a response code. Backend rejections and
// unreachable backends are both reported as a bad gateway.
func statusFor(err error) int {
	var terr *transfer.Error
	if errors.As(err, &terr) {
		return 502
	}
	return 500
}

// handleUpload forwards the raw request body as ?filename=
func (i *Instance) handleUpload(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodPost); !ok {
		return err
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return sendError(sender, 400, fmt.Sprintf("Invalid URL: %v", err))
	}
	fileName := strings.TrimSpace(u.Query().Get("filename"))
	if fileName == "" {
		return sendError(sender, 400, "filename query parameter is required")
	}
	if len(req.Body) == 0 {
		return sendError(sender, 400, "File content is required")
	}

	log.DefaultLogger.Info("Upload request", "file", fileName, "bytes", len(req.Body))

	if err := i.coord.Dispatch(ctx, session.FileFromBytes(fileName, req.Body)); err != nil {
		return sendError(sender, statusFor(err), transfer.Detail(err))
	}

	return sendJSON(sender, 200, UploadResponse{
		Status:    i.surface.Snapshot().Status,
		State:     i.coord.State(),
		Dashboard: i.coord.Dashboard(),
	})
}

func (i *Instance) handleDashboard(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodGet); !ok {
		return err
	}

	payload := i.coord.Dashboard()
	if payload == nil || i.coord.State() != session.StateDashboardReady {
		return sendError(sender, 404, "No dashboard loaded")
	}
	return sendJSON(sender, 200, payload)
}

func (i *Instance) handleChat(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodPost); !ok {
		return err
	}

	var chatReq ChatRequest
	if err := json.Unmarshal(req.Body, &chatReq); err != nil {
		return sendError(sender, 400, fmt.Sprintf("Invalid request body: %v", err))
	}

	log.DefaultLogger.Info("Chat request", "message_length", len(chatReq.Message))

	entry, err := i.coord.Ask(ctx, chatReq.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return sendError(sender, 400, "Message is required")
	case err != nil:
		return sendJSON(sender, statusFor(err), ChatResponse{Entry: entry, Error: transfer.Detail(err)})
	}
	return sendJSON(sender, 200, ChatResponse{Entry: entry})
}

func (i *Instance) handleTranscript(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodGet); !ok {
		return err
	}
	return sendJSON(sender, 200, TranscriptResponse{Entries: i.coord.Chat().Entries()})
}

// handleExport streams the PDF report back to the caller
func (i *Instance) handleExport(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodGet, http.MethodPost); !ok {
		return err
	}

	location, err := i.coord.Export(ctx)
	if errors.Is(err, session.ErrExportUnavailable) {
		return sendError(sender, 409, "No dashboard loaded")
	}
	if err != nil {
		return sendError(sender, statusFor(err), transfer.Detail(err))
	}

	pdf, ok := i.reports.take(location)
	if !ok {
		return sendError(sender, 500, "Report was not produced")
	}

	return sender.Send(&backend.CallResourceResponse{
		Status: 200,
		Headers: map[string][]string{
			"Content-Type":        {"application/pdf"},
			"Content-Disposition": {fmt.Sprintf("attachment; filename=%q", session.ExportFileName)},
		},
		Body: pdf,
	})
}

func (i *Instance) handleStatus(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	if ok, err := allowMethod(req, sender, http.MethodGet); !ok {
		return err
	}
	return sendJSON(sender, 200, StatusResponse{
		Status:  i.coord.Status(),
		Surface: i.surface.Snapshot(),
	})
}

// handleHealth reports whether the analytics backend answers /ping
func (i *Instance) handleHealth(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	response := map[string]interface{}{
		"status":  "healthy",
		"backend": map[string]interface{}{"ok": true, "url": i.client.BaseURL()},
	}

	if err := i.ping(ctx); err != nil {
		response["status"] = "unhealthy"
		response["backend"] = map[string]interface{}{
			"ok":    false,
			"url":   i.client.BaseURL(),
			"error": transfer.Detail(err),
		}
		return sendJSON(sender, 503, response)
	}

	return sendJSON(sender, 200, response)
}
