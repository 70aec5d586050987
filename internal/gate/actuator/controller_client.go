// Package actuator implements the remote home-automation controller client
// behind the gate Actuator interface. Authentication, retry and backoff all
// live here; the decision engine only ever sees boolean outcomes.
package actuator

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "github.com/alexfok/gate-controller/internal/errors"
	"github.com/alexfok/gate-controller/internal/gate/domain"
	"github.com/alexfok/gate-controller/internal/storage"
)

const (
	requestTimeout = 15 * time.Second
	retryMax       = 3

	// runScenarioCommand is the controller command that triggers a
	// pre-programmed scenario (gate open or close).
	runScenarioCommand = "Run Scenario"
)

// ControllerClient talks to the remote controller over HTTPS with bearer-token
// auth. Controllers ship self-signed certificates, so certificate verification
// is disabled, matching how their own apps connect on the local network.
type ControllerClient struct {
	logger   *slog.Logger
	settings storage.ActuatorSettings
	client   *retryablehttp.Client

	mu    sync.Mutex
	token string
}

// NewControllerClient creates a client from the persisted actuator settings.
// Call Connect before issuing commands.
func NewControllerClient(logger *slog.Logger, settings storage.ActuatorSettings) *ControllerClient {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.Logger = nil
	client.HTTPClient.Timeout = requestTimeout
	client.HTTPClient.Transport = &http.Transport{
		//nolint:gosec // controllers use self-signed certificates on the local network
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &ControllerClient{
		logger:   logger,
		settings: settings,
		client:   client,
	}
}

// Connect authenticates against the controller and caches the bearer token.
func (c *ControllerClient) Connect(ctx context.Context) error {
	c.logger.Info("connecting to controller", slog.String("base_url", c.settings.BaseURL))

	body, err := json.Marshal(map[string]string{
		"username": c.settings.Username,
		"password": c.settings.Password,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal auth request")
	}

	req, err := retryablehttp.NewRequestWithContext(
		ctx, http.MethodPost, c.settings.BaseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, "failed to create auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Wrap(domain.ErrActuatorUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Wrapf(domain.ErrActuatorUnavailable, "auth request returned %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return apperrors.Wrap(err, "failed to decode auth response")
	}
	if payload.Token == "" {
		return apperrors.Wrap(domain.ErrActuatorUnavailable, "auth response carried no token")
	}

	c.mu.Lock()
	c.token = payload.Token
	c.mu.Unlock()

	c.logger.Info("connected to controller")
	return nil
}

// Disconnect drops the cached token and closes idle connections.
func (c *ControllerClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.client.HTTPClient.CloseIdleConnections()
	c.logger.Info("disconnected from controller")
	return nil
}

// Open triggers the open scenario. Returns false on any failure.
func (c *ControllerClient) Open(ctx context.Context) bool {
	return c.runScenario(ctx, c.settings.OpenScenario, "open")
}

// Close triggers the close scenario. Returns false on any failure.
func (c *ControllerClient) Close(ctx context.Context) bool {
	return c.runScenario(ctx, c.settings.CloseScenario, "close")
}

func (c *ControllerClient) runScenario(ctx context.Context, scenario int, action string) bool {
	token, ok := c.bearer()
	if !ok {
		c.logger.Error("not connected to controller", slog.String("action", action))
		return false
	}

	body, err := json.Marshal(map[string]any{
		"command": runScenarioCommand,
		"params":  map[string]int{"Scenario": scenario},
	})
	if err != nil {
		c.logger.Error("failed to marshal command", slog.Any("error", err))
		return false
	}

	url := fmt.Sprintf("%s/api/v1/items/%d/commands", c.settings.BaseURL, c.settings.GateDeviceID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create command request", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("gate command failed",
			slog.String("action", action),
			slog.Any("error", err),
		)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("gate command rejected",
			slog.String("action", action),
			slog.Int("status_code", resp.StatusCode),
		)
		return false
	}

	c.logger.Info("gate command sent",
		slog.String("action", action),
		slog.Int("scenario", scenario),
	)
	return true
}

// Status queries the gate device item and returns its report. Any failure is
// surfaced as ErrActuatorUnavailable; the caller decides what to do with it.
func (c *ControllerClient) Status(ctx context.Context) (domain.StatusInfo, error) {
	token, ok := c.bearer()
	if !ok {
		return domain.StatusInfo{}, apperrors.Wrap(domain.ErrActuatorUnavailable, "not connected")
	}

	url := fmt.Sprintf("%s/api/v1/items/%d", c.settings.BaseURL, c.settings.GateDeviceID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.StatusInfo{}, apperrors.Wrap(err, "failed to create status request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.StatusInfo{}, apperrors.Wrap(domain.ErrActuatorUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.StatusInfo{}, apperrors.Wrapf(domain.ErrActuatorUnavailable, "status request returned %d", resp.StatusCode)
	}

	var details map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return domain.StatusInfo{}, apperrors.Wrap(err, "failed to decode status response")
	}

	return domain.StatusInfo{Online: true, Details: details}, nil
}

// Notify sends a push notification through the controller's notification
// agent. Best effort: returns false on any failure.
func (c *ControllerClient) Notify(ctx context.Context, title, message string) bool {
	token, ok := c.bearer()
	if !ok {
		return false
	}

	body, err := json.Marshal(map[string]string{
		"title":   title,
		"message": message,
	})
	if err != nil {
		return false
	}

	url := fmt.Sprintf("%s/api/v1/agents/%d/notifications", c.settings.BaseURL, c.settings.NotificationAgentID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("notification failed", slog.Any("error", err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (c *ControllerClient) bearer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}
