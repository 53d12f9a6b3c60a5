package transfer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{BaseURL: server.URL + "/api/", Logger: logging.NewTest(t)})
}

func requireTransferError(t *testing.T, err error) *Error {
	t.Helper()
	var terr *Error
	require.ErrorAs(t, err, &terr)
	return terr
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{Logger: logging.Nop()})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c = NewClient(Options{BaseURL: "http://backend:9000/api/", Logger: logging.Nop()})
	assert.Equal(t, "http://backend:9000/api", c.BaseURL())
	assert.Equal(t, "http://backend:9000/api/chat", c.urlJoin("/chat"))
}

func TestUpload(t *testing.T) {
	var gotName, gotContent, requestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)
		requestID = r.Header.Get("X-Request-ID")

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName, gotContent = header.Filename, string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"File uploaded and processed successfully."}`))
	})

	ack, err := c.Upload(context.Background(), "sales.csv", strings.NewReader("region,sales\nNorth,10\n"))
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", ack.FileName)
	assert.Equal(t, "File uploaded and processed successfully.", ack.Message)
	assert.Equal(t, "sales.csv", gotName)
	assert.Equal(t, "region,sales\nNorth,10\n", gotContent)
	assert.NotEmpty(t, requestID)
}

func TestUploadIgnoresNonJSONSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	ack, err := c.Upload(context.Background(), "a.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "a.csv", ack.FileName)
	assert.Empty(t, ack.Message)
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("sheet"), 0o644))

	var gotName string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		gotName = header.Filename
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "data.xlsx", gotName)

	_, err = c.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	terr := requireTransferError(t, err)
	assert.Equal(t, KindTransport, terr.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestErrorDetailPolicy(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail func(op string) string
	}{
		{
			name:       "structured detail",
			status:     http.StatusBadRequest,
			body:       `{"detail":"unsupported file type"}`,
			wantDetail: func(string) string { return "unsupported file type" },
		},
		{
			name:       "detail absent",
			status:     http.StatusInternalServerError,
			body:       `{"error":"boom"}`,
			wantDetail: GenericMessage,
		},
		{
			name:       "empty detail",
			status:     http.StatusNotFound,
			body:       `{"detail":""}`,
			wantDetail: GenericMessage,
		},
		{
			name:       "validation list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","message"],"msg":"field required"}]}`,
			wantDetail: GenericMessage,
		},
		{
			name:       "html body",
			status:     http.StatusBadGateway,
			body:       `<html>Bad Gateway</html>`,
			wantDetail: GenericMessage,
		},
	}

	calls := map[string]func(c *Client) error{
		OpUpload: func(c *Client) error {
			_, err := c.Upload(context.Background(), "f.csv", strings.NewReader("x"))
			return err
		},
		OpDashboard: func(c *Client) error {
			_, err := c.FetchDashboard(context.Background())
			return err
		},
		OpChat: func(c *Client) error {
			_, err := c.SendChatMessage(context.Background(), "hi")
			return err
		},
	}

	for _, tt := range tests {
		for op, call := range calls {
			t.Run(tt.name+"/"+op, func(t *testing.T) {
				c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
				})

				terr := requireTransferError(t, call(c))
				assert.Equal(t, KindBackend, terr.Kind)
				assert.Equal(t, tt.status, terr.Status)
				assert.Equal(t, op, terr.Op)
				assert.Equal(t, tt.wantDetail(op), terr.Detail)
			})
		}
	}
}

func TestFetchDashboard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/dashboard", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"kpis": {"total_sales": 1000, "total_units_sold": 50, "average_satisfaction": 4.2},
			"summary": "All good.",
			"charts": {"sales_by_product": "{\"data\":[]}"}
		}`))
	})

	payload, err := c.FetchDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", payload.KPIs.TotalSales.String())
	assert.Equal(t, "4.2", payload.KPIs.AvgSatisfaction.String())
	assert.Equal(t, "All good.", payload.Summary)
	assert.Len(t, payload.Charts, 1)
}

func TestFetchDashboardUnparseable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kpis": "nope"}`))
	})

	_, err := c.FetchDashboard(context.Background())
	terr := requireTransferError(t, err)
	assert.Equal(t, KindTransport, terr.Kind)
	assert.Equal(t, GenericMessage(OpDashboard), terr.Detail)
}

func TestSendChatMessageScenarioC(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"answer":"Sales rose 5%","type":"text"}`))
	})

	reply, err := c.SendChatMessage(context.Background(), "How did sales change?")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"message": "How did sales change?"}, got)
	assert.Equal(t, chat.TextReply{Answer: "Sales rose 5%"}, reply)
}

func TestSendChatMessageScenarioD(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"plot","image":"` + img + `","answer":""}`))
	})

	reply, err := c.SendChatMessage(context.Background(), "plot sales by region")
	require.NoError(t, err)

	plot, ok := reply.(chat.PlotReply)
	require.True(t, ok, "expected PlotReply, got %T", reply)
	assert.Equal(t, img, plot.Image)
	assert.Equal(t, chat.PlotCaption, plot.Caption)
}

func TestSendChatMessageMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"plot"}`))
	})

	_, err := c.SendChatMessage(context.Background(), "plot")
	terr := requireTransferError(t, err)
	assert.Equal(t, KindTransport, terr.Kind)
	assert.Equal(t, GenericMessage(OpChat), terr.Detail)
}

func TestRequestExport(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/export-pdf", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})

	got, err := c.RequestExport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
}

func TestRequestExportIgnoresDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Failed to generate PDF: font missing"}`))
	})

	_, err := c.RequestExport(context.Background())
	terr := requireTransferError(t, err)
	assert.Equal(t, KindBackend, terr.Kind)
	assert.Equal(t, GenericMessage(OpExport), terr.Detail)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"pong"}`))
	})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(Options{BaseURL: url, Logger: logging.Nop()})
	err := c.Ping(context.Background())

	terr := requireTransferError(t, err)
	assert.Equal(t, KindTransport, terr.Kind)
	assert.Equal(t, GenericMessage(OpPing), terr.Detail)
	assert.NotNil(t, terr.Unwrap())
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchDashboard(ctx)
	terr := requireTransferError(t, err)
	assert.Equal(t, KindTransport, terr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoRetry(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.SendChatMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestErrorString(t *testing.T) {
	err := &Error{Op: OpUpload, Kind: KindBackend, Status: 400, Detail: "unsupported file type"}
	assert.Equal(t, "upload: backend error (status 400): unsupported file type", err.Error())
	assert.Equal(t, "unsupported file type", Detail(err))
	assert.Equal(t, "plain", Detail(errors.New("plain")))
	assert.Equal(t, "", Detail(nil))
}
