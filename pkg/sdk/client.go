package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/draftforge/draftforge/pkg/api"
)

// Client talks to a running cockpit instance
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var (
	ErrHealth         = errors.New("failed to get health")
	ErrListChapters   = errors.New("failed to list chapters")
	ErrGetWizard      = errors.New("failed to get wizard state")
	ErrSaveWizard     = errors.New("failed to save wizard state")
	ErrGetContent     = errors.New("failed to get step content")
	ErrGenerate       = errors.New("failed to start generation")
	ErrApprove        = errors.New("failed to approve step")
	ErrGetCoordinator = errors.New("failed to get coordinator state")
	ErrSubmitReview   = errors.New("failed to submit review")
	ErrCancel         = errors.New("failed to cancel generation")
	ErrAdvance        = errors.New("failed to advance chapter")
)

const (
	routeHealth      = "/health"
	routeChapters    = "/chapters"
	routeCoordinator = "/coordinator"
)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health reports the service's health payload
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var res api.HealthResponse
	if err := c.get(ctx, routeHealth, ErrHealth, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Chapters lists the catalog with derived per-chapter statuses
func (c *Client) Chapters(
	ctx context.Context,
) (*api.ChaptersListResponse, error) {
	var res api.ChaptersListResponse
	if err := c.get(ctx, routeChapters, ErrListChapters, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Coordinator reports the coordinator's current snapshot
func (c *Client) Coordinator(
	ctx context.Context,
) (*api.CoordinatorStateResponse, error) {
	var res api.CoordinatorStateResponse
	err := c.get(ctx, routeCoordinator, ErrGetCoordinator, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitReview forwards human input for the pending review checkpoint
func (c *Client) SubmitReview(
	ctx context.Context, inputs map[string]string,
) (*api.CoordinatorStateResponse, error) {
	var res api.CoordinatorStateResponse
	err := c.send(ctx, http.MethodPost, routeCoordinator+"/review",
		api.RespondRequest{Inputs: inputs}, ErrSubmitReview, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelGeneration stops the live execution
func (c *Client) CancelGeneration(
	ctx context.Context,
) (*api.CoordinatorStateResponse, error) {
	var res api.CoordinatorStateResponse
	err := c.send(ctx, http.MethodPost, routeCoordinator+"/cancel",
		nil, ErrCancel, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Advance moves the coordinator to the next chapter in the catalog
func (c *Client) Advance(ctx context.Context) (api.ChapterID, error) {
	var res api.AdvanceResponse
	err := c.send(ctx, http.MethodPost, routeCoordinator+"/advance",
		nil, ErrAdvance, &res)
	if err != nil {
		return 0, err
	}
	return res.Chapter, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) get(
	ctx context.Context, path string, opErr error, out any,
) error {
	return c.send(ctx, http.MethodGet, path, nil, opErr, out)
}

func (c *Client) send(
	ctx context.Context, method, path string, body any, opErr error, out any,
) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", opErr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr api.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: status %d: %s",
				opErr, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: status %d, body: %s",
			opErr, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
