package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
)

// ChartLister reports the chart files written for the current dashboard.
type ChartLister interface {
	Paths() []string
}

// Options configure the MCP server.
type Options struct {
	Name           string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
	Charts         ChartLister
	Logger         logging.Logger
}

// MCPServer exposes one dashboard session as MCP tools.
type MCPServer struct {
	coord   *session.Coordinator
	server  *server.MCPServer
	limiter *rate.Limiter
	charts  ChartLister
	logger  logging.Logger
}

// NewMCPServer creates the server and registers every tool.
func NewMCPServer(coord *session.Coordinator, opts Options) *MCPServer {
	if opts.Name == "" {
		opts.Name = "insight-dash-mcp-server"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.RateLimitRPS == 0 && opts.RateLimitBurst == 0 {
		opts.RateLimitRPS, opts.RateLimitBurst = defaultRateLimitRPS, defaultRateLimitBurst
	}

	s := &MCPServer{
		coord:   coord,
		server:  server.NewMCPServer(opts.Name, opts.Version),
		limiter: newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		charts:  opts.Charts,
		logger:  logging.OrDefault(opts.Logger),
	}
	s.RegisterTools()
	return s
}

// GetServer returns the underlying MCP server
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}

// RegisterTools registers all MCP tools
func (s *MCPServer) RegisterTools() {
	s.server.AddTool(s.uploadDatasetTool(), s.handleUploadDataset)
	s.server.AddTool(s.getDashboardTool(), s.handleGetDashboard)
	s.server.AddTool(s.askDataTool(), s.handleAskData)
	s.server.AddTool(s.exportReportTool(), s.handleExportReport)
	s.server.AddTool(s.getTranscriptTool(), s.handleGetTranscript)
	s.server.AddTool(s.getStatusTool(), s.handleGetStatus)
}

func (s *MCPServer) uploadDatasetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "upload_dataset",
		Description: "Upload a CSV or Excel dataset to the analytics backend and build its dashboard. Give either a local path, or a file name plus base64 content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of a local file to upload",
				},
				"file_name": map[string]any{
					"type":        "string",
					"description": "File name to upload content under (with content_base64)",
				},
				"content_base64": map[string]any{
					"type":        "string",
					"description": "Base64-encoded file content (with file_name)",
				},
			},
		},
	}
}

func (s *MCPServer) handleUploadDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}

	var intent session.FileSelected
	if path := req.GetString("path", ""); path != "" {
		intent = session.FileFromPath(path)
	} else {
		name := req.GetString("file_name", "")
		encoded := req.GetString("content_base64", "")
		if name == "" || encoded == "" {
			return mcp.NewToolResultError("either path, or file_name and content_base64, is required"), nil
		}
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("content_base64 is not valid base64: %v", err)), nil
		}
		intent = session.FileFromBytes(name, content)
	}

	if err := s.coord.Dispatch(ctx, intent); err != nil {
		return mcp.NewToolResultError("Error: " + transfer.Detail(err)), nil
	}
	return s.dashboardResult()
}

func (s *MCPServer) getDashboardTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_dashboard",
		Description: "Get the KPIs, narrative summary and chart list of the current dashboard",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

func (s *MCPServer) handleGetDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}
	return s.dashboardResult()
}

// dashboardView is the get_dashboard payload.
type dashboardView struct {
	Status     string               `json:"status"`
	KPIs       dashboard.KPIs       `json:"kpis"`
	Summary    string               `json:"summary"`
	Charts     []dashboard.ChartKey `json:"charts"`
	ChartFiles []string             `json:"chart_files,omitempty"`
}

func (s *MCPServer) dashboardResult() (*mcp.CallToolResult, error) {
	payload := s.coord.Dashboard()
	if payload == nil || s.coord.State() != session.StateDashboardReady {
		return mcp.NewToolResultError("No dashboard loaded. Upload a dataset first."), nil
	}

	view := dashboardView{
		KPIs:    payload.KPIs,
		Summary: payload.Summary,
	}
	if last, ok := s.coord.LastUpload(); ok {
		view.Status = fmt.Sprintf("Dashboard ready for %s.", last.FileName)
	}
	for _, key := range dashboard.AllChartKeys {
		if _, ok := payload.Charts[key]; ok {
			view.Charts = append(view.Charts, key)
		}
	}
	if s.charts != nil {
		view.ChartFiles = s.charts.Paths()
	}

	data, _ := json.Marshal(view)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *MCPServer) askDataTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_data",
		Description: "Ask the assistant a question about the uploaded data. Requests for a plot return an image.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question, e.g. 'plot total sales by region'",
				},
			},
			Required: []string{"question"},
		},
	}
}

func (s *MCPServer) handleAskData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}

	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, err := s.coord.Ask(ctx, question)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return mcp.NewToolResultError("question must not be empty"), nil
	case err != nil:
		return mcp.NewToolResultError(entry.Text), nil
	}

	if entry.Kind == chat.KindPlot {
		return mcp.NewToolResultImage(entry.Text, entry.Image, "image/png"), nil
	}
	return mcp.NewToolResultText(entry.Text), nil
}

func (s *MCPServer) exportReportTool() mcp.Tool {
	return mcp.Tool{
		Name:        "export_report",
		Description: "Generate the PDF report for the current dashboard and save it locally",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

func (s *MCPServer) handleExportReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}

	path, err := s.coord.Export(ctx)
	if errors.Is(err, session.ErrExportUnavailable) {
		return mcp.NewToolResultError("No dashboard loaded. Upload a dataset first."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(transfer.Detail(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Report saved to %s", path)), nil
}

func (s *MCPServer) getTranscriptTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_transcript",
		Description: "Get the conversation so far, one line per message",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

func (s *MCPServer) handleGetTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}

	text := chat.FormatTranscript(s.coord.Chat().Entries(), func(e chat.Entry) string {
		return fmt.Sprintf("[image: %d base64 chars]", len(e.Image))
	})
	return mcp.NewToolResultText(text), nil
}

func (s *MCPServer) getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Get the session state, busy indicator and last upload outcome",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

func (s *MCPServer) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if result := s.enforceRateLimit(); result != nil {
		return result, nil
	}

	data, _ := json.Marshal(s.coord.Status())
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio serves the tools over in/out until ctx is done.
func (s *MCPServer) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Running MCP server with stdio transport")
	return server.NewStdioServer(s.server).Listen(ctx, in, out)
}

// ServeSSE serves the tools over SSE at addr until ctx is done.
func (s *MCPServer) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.server)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Running MCP server with SSE transport", "addr", addr, "endpoint", "/sse")
		errCh <- sseServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down MCP server")
		return sseServer.Shutdown(context.Background())
	}
}
