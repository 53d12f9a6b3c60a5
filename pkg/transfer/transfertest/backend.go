// Package transfertest runs an in-process analytics backend for tests.
package transfertest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Canned bodies served by default.
const (
	DashboardJSON = `{
		"kpis": {"total_sales": 1000, "total_units_sold": 50, "average_satisfaction": 4.2},
		"summary": "Sales are concentrated in the North region.",
		"charts": {
			"sales_by_product": "{\"data\":[{\"type\":\"bar\",\"x\":[\"A\",\"B\"],\"y\":[600,400]}],\"layout\":{\"title\":\"Sales by product\"}}",
			"sales_by_region": "{\"data\":[{\"type\":\"pie\",\"labels\":[\"North\",\"South\"],\"values\":[700,300]}],\"layout\":{}}"
		}
	}`
	PlotImage = "iVBORw0KGgo="
	PDF       = "%PDF-1.4 test report"
)

// Response is a canned reply for one route.
type Response struct {
	Status      int
	Body        string
	ContentType string
}

// Routes served under /api.
const (
	RouteUpload    = "/upload"
	RouteDashboard = "/dashboard"
	RouteChat      = "/chat"
	RouteExport    = "/export-pdf"
	RoutePing      = "/ping"
)

// Backend is a scripted analytics backend.
type Backend struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	uploads   []string
	messages  []string
}

// New starts a backend that answers every route successfully. Chat replies
// with a plot when the message contains "plot" and echoes it otherwise.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{responses: map[string]Response{
		RouteUpload:    {Status: http.StatusOK, Body: `{"filename":"data.csv","message":"File uploaded and processed successfully"}`},
		RouteDashboard: {Status: http.StatusOK, Body: DashboardJSON},
		RouteExport:    {Status: http.StatusOK, Body: PDF, ContentType: "application/pdf"},
		RoutePing:      {Status: http.StatusOK, Body: `{"status":"ok"}`},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", b.handleUpload)
	mux.HandleFunc("GET /api/dashboard", b.serve(RouteDashboard))
	mux.HandleFunc("POST /api/chat", b.handleChat)
	mux.HandleFunc("GET /api/export-pdf", b.serve(RouteExport))
	mux.HandleFunc("GET /api/ping", b.serve(RoutePing))

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// BaseURL is the API root to hand to transfer.NewClient.
func (b *Backend) BaseURL() string {
	return b.URL + "/api"
}

// Set replaces the canned response for route.
func (b *Backend) Set(route string, resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[route] = resp
}

// Uploads returns the file names received so far.
func (b *Backend) Uploads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads...)
}

// Messages returns the chat messages received so far.
func (b *Backend) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func (b *Backend) response(route string) (Response, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	resp, ok := b.responses[route]
	return resp, ok
}

func (b *Backend) serve(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, _ := b.response(route)
		write(w, resp)
	}
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		write(w, Response{Status: http.StatusBadRequest, Body: `{"detail":"No file part"}`})
		return
	}
	_, _ = io.Copy(io.Discard, file)
	file.Close()

	b.mu.Lock()
	b.uploads = append(b.uploads, header.Filename)
	b.mu.Unlock()

	resp, _ := b.response(RouteUpload)
	write(w, resp)
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		write(w, Response{Status: http.StatusUnprocessableEntity, Body: `{"detail":"invalid body"}`})
		return
	}

	b.mu.Lock()
	b.messages = append(b.messages, body.Message)
	b.mu.Unlock()

	if resp, ok := b.response(RouteChat); ok {
		write(w, resp)
		return
	}

	reply := map[string]string{"answer": "You asked: " + body.Message}
	if strings.Contains(body.Message, "plot") {
		reply = map[string]string{"type": "plot", "image": PlotImage}
	}
	data, _ := json.Marshal(reply)
	write(w, Response{Status: http.StatusOK, Body: string(data)})
}

func write(w http.ResponseWriter, resp Response) {
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.ContentType == "" {
		resp.ContentType = "application/json"
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
