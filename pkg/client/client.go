// Package client talks to a robotsim server over its HTTP API and status
// websocket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-robotsim/internal/httpc"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// APIError is a failed API call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("robotsim: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Client is a robotsim API client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:8000.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpc.Client,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs a request against /api/robot and decodes the response.
// With wrapped set, the response is the {success, message, data} envelope
// and data is decoded into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, wrapped bool) error {
	req, err := httpc.NewJSONRequest(ctx, method, c.BaseURL+"/api/robot"+path, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if !wrapped && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", path, err)
		}
	}
	return nil
}

// Connect opens a robot session.
func (c *Client) Connect(ctx context.Context) (*robot.ConnectResult, error) {
	var out robot.ConnectResult
	if err := c.call(ctx, http.MethodPost, "/connect", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Disconnect closes the robot session.
func (c *Client) Disconnect(ctx context.Context) (*robot.DisconnectResult, error) {
	var out robot.DisconnectResult
	if err := c.call(ctx, http.MethodPost, "/disconnect", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the robot status snapshot.
func (c *Client) Status(ctx context.Context) (*robot.StatusSnapshot, error) {
	var out robot.StatusSnapshot
	if err := c.call(ctx, http.MethodGet, "/status", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Command executes a named command.
func (c *Client) Command(ctx context.Context, name string, params robot.Params) (*robot.CommandResult, error) {
	body := map[string]interface{}{
		"command": name,
		"params":  params,
	}
	var out robot.CommandResult
	if err := c.call(ctx, http.MethodPost, "/command", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Move moves the robot in direction at speed.
func (c *Client) Move(ctx context.Context, direction robot.Direction, speed float64) (*robot.CommandResult, error) {
	return c.Command(ctx, robot.CommandMove, robot.Params{Direction: string(direction), Speed: &speed})
}

// Rotate turns the robot in direction at speed.
func (c *Client) Rotate(ctx context.Context, direction robot.Direction, speed float64) (*robot.CommandResult, error) {
	return c.Command(ctx, robot.CommandRotate, robot.Params{Direction: string(direction), Speed: &speed})
}

// Stop sends the stop command.
func (c *Client) Stop(ctx context.Context) (*robot.CommandResult, error) {
	return c.Command(ctx, robot.CommandStop, robot.Params{})
}

// EmergencyStop halts the robot immediately.
func (c *Client) EmergencyStop(ctx context.Context) (*robot.CommandResult, error) {
	var out robot.CommandResult
	if err := c.call(ctx, http.MethodPost, "/emergency-stop", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset returns the robot to the origin.
func (c *Client) Reset(ctx context.Context) (*robot.CommandResult, error) {
	var out robot.CommandResult
	if err := c.call(ctx, http.MethodPost, "/reset", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Capabilities returns the robot capabilities.
func (c *Client) Capabilities(ctx context.Context) (*robot.Capabilities, error) {
	var out robot.Capabilities
	if err := c.call(ctx, http.MethodGet, "/capabilities", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// wsURL maps the base URL to the status websocket URL.
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/status"
	return u.String(), nil
}
