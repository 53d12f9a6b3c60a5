package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/grafana-plugin-sdk-go/backend"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
)

// Make sure Plugin implements required interfaces
var (
	_ backend.CallResourceHandler = (*Plugin)(nil)
	_ backend.CheckHealthHandler  = (*Plugin)(nil)
)

const healthTimeout = 3 * time.Second

// Plugin is the main plugin struct that manages one session per org
type Plugin struct {
	mu        sync.RWMutex
	instances map[int64]*Instance
}

// Instance is the dashboard session of one org
type Instance struct {
	client   *transfer.Client
	coord    *session.Coordinator
	surface  *session.Recorder
	reports  *reportStore
	settings *PluginSettings
	updated  time.Time
}

// NewPlugin creates a new Plugin
func NewPlugin() *Plugin {
	return &Plugin{
		instances: make(map[int64]*Instance),
	}
}

// CallResource handles HTTP requests to plugin resources
func (p *Plugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	log.DefaultLogger.Info("CallResource", "path", req.Path, "method", req.Method)

	instance, err := p.getInstance(req.PluginContext)
	if err != nil {
		return sendError(sender, 500, fmt.Sprintf("Failed to get plugin instance: %v", err))
	}

	switch req.Path {
	case "upload":
		return instance.handleUpload(ctx, req, sender)
	case "dashboard":
		return instance.handleDashboard(ctx, req, sender)
	case "chat":
		return instance.handleChat(ctx, req, sender)
	case "transcript":
		return instance.handleTranscript(ctx, req, sender)
	case "export":
		return instance.handleExport(ctx, req, sender)
	case "status":
		return instance.handleStatus(ctx, req, sender)
	case "health":
		return instance.handleHealth(ctx, req, sender)
	default:
		return sendError(sender, 404, "Not found")
	}
}

// CheckHealth pings the analytics backend configured for the org
func (p *Plugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	instance, err := p.getInstance(req.PluginContext)
	if err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: err.Error(),
		}, nil
	}

	if err := instance.ping(ctx); err != nil {
		return &backend.CheckHealthResult{
			Status:  backend.HealthStatusError,
			Message: fmt.Sprintf("%s (%s)", transfer.Detail(err), instance.client.BaseURL()),
		}, nil
	}

	return &backend.CheckHealthResult{
		Status:  backend.HealthStatusOk,
		Message: fmt.Sprintf("Analytics backend reachable at %s", instance.client.BaseURL()),
	}, nil
}

// getInstance gets or creates the instance for the given plugin context.
// Saving new app settings replaces the org's session.
func (p *Plugin) getInstance(pluginCtx backend.PluginContext) (*Instance, error) {
	instanceID := pluginCtx.OrgID
	var updated time.Time
	if pluginCtx.AppInstanceSettings != nil {
		updated = pluginCtx.AppInstanceSettings.Updated
	}

	p.mu.RLock()
	instance, exists := p.instances[instanceID]
	p.mu.RUnlock()

	if exists && !updated.After(instance.updated) {
		return instance, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if instance, exists = p.instances[instanceID]; exists && !updated.After(instance.updated) {
		return instance, nil
	}

	instance, err := p.createInstance(pluginCtx)
	if err != nil {
		return nil, err
	}
	instance.updated = updated

	p.instances[instanceID] = instance
	return instance, nil
}

// createInstance creates a new plugin instance
func (p *Plugin) createInstance(pluginCtx backend.PluginContext) (*Instance, error) {
	log.DefaultLogger.Info("Creating new plugin instance", "org_id", pluginCtx.OrgID)

	var jsonData []byte
	if pluginCtx.AppInstanceSettings != nil {
		jsonData = pluginCtx.AppInstanceSettings.JSONData
	}

	pluginSettings, err := LoadSettings(jsonData)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := pluginSettings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	client := transfer.NewClient(transfer.Options{
		BaseURL:   pluginSettings.BackendURL,
		Timeout:   pluginSettings.Timeout(),
		UserAgent: "insight-dash-grafana-app",
		Logger:    log.DefaultLogger,
	})
	surface := session.NewRecorder()
	reports := &reportStore{}

	coord := session.New(session.Deps{
		Transport:  client,
		Presenter:  dashboard.NewPresenter(dashboard.Discard{}, dashboard.Discard{}, dashboard.Discard{}),
		Surface:    surface,
		Alerter:    surface,
		Downloader: reports,
		Logger:     log.DefaultLogger,
	})

	return &Instance{
		client:   client,
		coord:    coord,
		surface:  surface,
		reports:  reports,
		settings: pluginSettings,
	}, nil
}

func (i *Instance) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return i.client.Ping(ctx)
}

// reportStore keeps exported reports in memory until the export resource
// sends them. Each download gets its own location so concurrent exports
// never see each other's bytes.
type reportStore struct {
	mu      sync.Mutex
	reports map[string][]byte
}

func (r *reportStore) Download(name string, data []byte) (string, error) {
	location := "memory://" + uuid.NewString() + "/" + name

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = make(map[string][]byte)
	}
	r.reports[location] = data
	return location, nil
}

func (r *reportStore) take(location string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.reports[location]
	delete(r.reports, location)
	return data, ok
}

// sendJSON sends a JSON response
func sendJSON(sender backend.CallResourceResponseSender, status int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return sendError(sender, 500, fmt.Sprintf("Failed to marshal JSON: %v", err))
	}

	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}

// sendError sends an error response
func sendError(sender backend.CallResourceResponseSender, status int, message string) error {
	body, _ := json.Marshal(map[string]string{"error": message})
	return sender.Send(&backend.CallResourceResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	})
}
