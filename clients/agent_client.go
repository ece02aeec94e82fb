package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/fhe-identity-auth/httpserver"
)

// ErrConflict is returned when the agent refused to start a workflow because
// another one is in flight or the account is already registered. The response
// body is still returned.
var ErrConflict = errors.New("agent refused the request")

// AgentClient talks to the identity agent HTTP API.
type AgentClient struct {
	// ServerAddr is the base URL of the agent, e.g. http://127.0.0.1:8080
	ServerAddr string

	httpClient *http.Client
}

// NewAgentClient creates a client. timeout bounds a whole request, including
// the confirmation wait of a workflow run.
func NewAgentClient(serverAddr string, timeout time.Duration) *AgentClient {
	return &AgentClient{
		ServerAddr: strings.TrimRight(serverAddr, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Session fetches the wallet session and the resolved contract.
func (c *AgentClient) Session(ctx context.Context) (*httpserver.SessionResponse, error) {
	var resp httpserver.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status re-reads the registration status of the agent account.
func (c *AgentClient) Status(ctx context.Context) (*httpserver.StatusResponse, error) {
	var resp httpserver.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Workflow returns the last workflow snapshot.
func (c *AgentClient) Workflow(ctx context.Context) (*httpserver.WorkflowResponse, error) {
	var resp httpserver.WorkflowResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflow", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register runs the register workflow on the agent. A failed workflow is not
// an error: it is reported in the response.
func (c *AgentClient) Register(ctx context.Context, identity string) (*httpserver.WorkflowResponse, error) {
	return c.runWorkflow(ctx, "/api/v1/register", identity)
}

// Verify runs the verify workflow on the agent.
func (c *AgentClient) Verify(ctx context.Context, identity string) (*httpserver.WorkflowResponse, error) {
	return c.runWorkflow(ctx, "/api/v1/verify", identity)
}

func (c *AgentClient) runWorkflow(ctx context.Context, path, identity string) (*httpserver.WorkflowResponse, error) {
	body, err := json.Marshal(httpserver.IdentityRequest{Identity: identity})
	if err != nil {
		return nil, err
	}

	var resp httpserver.WorkflowResponse
	err = c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	return &resp, err
}

func (c *AgentClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("could not parse %s response: %w", path, err)
		}
		return ErrConflict
	default:
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-200 response: %d", path, resp.StatusCode)
		}
		return fmt.Errorf("%s returned error %d: %s", path, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}

func (c *AgentClient) client() *http.Client {
	if c.httpClient == nil {
		return http.DefaultClient
	}
	return c.httpClient
}
