// Package transfer wraps every outbound call to the analytics backend and
// normalizes outcomes to (value, *Error).
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/metrics"
)

// DefaultBaseURL is the backend API root used when none is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// Options configure a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration // zero means no timeout
	UserAgent string
	Logger    logging.Logger
	Transport http.RoundTripper
}

// Client talks to the analytics backend. It holds no session state and never
// retries.
type Client struct {
	baseURL string
	client  *resty.Client
	logger  logging.Logger
}

// UploadAck is the success side of an upload.
type UploadAck struct {
	FileName string `json:"filename"`
	Message  string `json:"message"`
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := logging.OrDefault(opts.Logger)

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(0)
	client.SetLogger(restyLogger{logger})
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get("X-Request-ID") == "" {
			req.SetHeader("X-Request-ID", uuid.NewString())
		}
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("Backend response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time().String(),
			"requestID", resp.Request.Header.Get("X-Request-ID"))
		return nil
	})

	return &Client{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// urlJoin joins base URL with path, preserving base path
func (c *Client) urlJoin(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Upload sends file content as the multipart field "file". The response body
// is read only for an optional message.
func (c *Client) Upload(ctx context.Context, fileName string, content io.Reader) (ack *UploadAck, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(OpUpload, start, err) }()

	resp, rerr := c.client.R().
		SetContext(ctx).
		SetFileReader("file", fileName, content).
		Post(c.urlJoin("/upload"))
	if rerr != nil {
		return nil, transportError(OpUpload, rerr)
	}
	if !resp.IsSuccess() {
		return nil, backendError(OpUpload, resp.StatusCode(), resp.Body(), true)
	}

	ack = &UploadAck{FileName: fileName}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil {
		ack.Message = body.Message
	}
	return ack, nil
}

// UploadFile opens path and uploads it under its base name.
func (c *Client) UploadFile(ctx context.Context, path string) (*UploadAck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, transportError(OpUpload, fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	return c.Upload(ctx, filepath.Base(path), f)
}

// FetchDashboard retrieves and validates the dashboard payload.
func (c *Client) FetchDashboard(ctx context.Context) (payload *dashboard.Payload, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(OpDashboard, start, err) }()

	resp, rerr := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.urlJoin("/dashboard"))
	if rerr != nil {
		return nil, transportError(OpDashboard, rerr)
	}
	if !resp.IsSuccess() {
		return nil, backendError(OpDashboard, resp.StatusCode(), resp.Body(), true)
	}

	if verr := dashboard.Validate(resp.Body()); verr != nil {
		return nil, transportError(OpDashboard, verr)
	}
	payload, derr := dashboard.Decode(resp.Body())
	if derr != nil {
		return nil, transportError(OpDashboard, derr)
	}
	return payload, nil
}

// SendChatMessage posts {"message": text} and decodes the answer into a
// chat.Reply.
func (c *Client) SendChatMessage(ctx context.Context, text string) (reply chat.Reply, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(OpChat, start, err) }()

	resp, rerr := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"message": text}).
		Post(c.urlJoin("/chat"))
	if rerr != nil {
		return nil, transportError(OpChat, rerr)
	}
	if !resp.IsSuccess() {
		return nil, backendError(OpChat, resp.StatusCode(), resp.Body(), true)
	}

	reply, derr := chat.DecodeReply(resp.Body())
	if derr != nil {
		return nil, transportError(OpChat, derr)
	}
	return reply, nil
}

// RequestExport downloads the PDF report. Failures always carry the generic
// export message.
func (c *Client) RequestExport(ctx context.Context) (pdf []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(OpExport, start, err) }()

	resp, rerr := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/pdf").
		Get(c.urlJoin("/export-pdf"))
	if rerr != nil {
		return nil, transportError(OpExport, rerr)
	}
	if !resp.IsSuccess() {
		return nil, backendError(OpExport, resp.StatusCode(), resp.Body(), false)
	}

	return resp.Body(), nil
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRequest(OpPing, start, err) }()

	resp, rerr := c.client.R().
		SetContext(ctx).
		Get(c.urlJoin("/ping"))
	if rerr != nil {
		return transportError(OpPing, rerr)
	}
	if !resp.IsSuccess() {
		return backendError(OpPing, resp.StatusCode(), resp.Body(), true)
	}
	return nil
}

// restyLogger routes resty's own diagnostics to our logger.
type restyLogger struct {
	l logging.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(fmt.Sprintf(format, v...))
}
