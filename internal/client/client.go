// Package client talks to the remote workflow backend that executes
// drafting steps asynchronously
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/draftforge/draftforge/pkg/api"
	"github.com/draftforge/draftforge/pkg/log"
)

type (
	// Client exposes the start/status/respond/cancel operations consumed
	// by the coordinator
	Client interface {
		Start(
			context.Context, *api.StartExecutionRequest,
		) (api.ExecutionID, error)
		Status(
			context.Context, api.ExecutionID,
		) (*api.ExecutionStatusResponse, error)
		Respond(context.Context, api.ExecutionID, map[string]string) error
		Cancel(context.Context, api.ExecutionID) error
	}

	// HTTPClient implements Client against the backend's JSON API
	HTTPClient struct {
		httpClient *http.Client
		baseURL    string
	}

	startPayload struct {
		*api.StartExecutionRequest
		ExecutionID api.ExecutionID `json:"execution_id"`
	}
)

const userAgent = "Draftforge/1.0"

var (
	ErrLaunchRejected  = errors.New("backend rejected execution start")
	ErrStatusQuery     = errors.New("status query failed")
	ErrRespondRejected = errors.New("backend rejected review response")
	ErrCancelRejected  = errors.New("backend rejected cancellation")
	ErrHTTPError       = errors.New("backend returned HTTP error")
)

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// Start launches one step execution. The execution ID is generated
// client-side so a lost response cannot orphan an unidentifiable run
func (c *HTTPClient) Start(
	ctx context.Context, req *api.StartExecutionRequest,
) (api.ExecutionID, error) {
	execID := api.ExecutionID(fmt.Sprintf(
		"ch%d-%s-%s", req.Chapter, req.Step, uuid.NewString(),
	))

	payload := startPayload{StartExecutionRequest: req, ExecutionID: execID}
	url := fmt.Sprintf("%s/executions", c.baseURL)
	if err := c.post(ctx, url, payload, nil); err != nil {
		slog.Error("Failed to start execution",
			log.Chapter(req.Chapter),
			log.StepID(req.Step),
			log.Error(err))
		return "", fmt.Errorf("%w: %v", ErrLaunchRejected, err)
	}
	return execID, nil
}

func (c *HTTPClient) Status(
	ctx context.Context, id api.ExecutionID,
) (*api.ExecutionStatusResponse, error) {
	url := fmt.Sprintf("%s/executions/%s", c.baseURL, id)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Warn("Status query transport failure",
			log.ExecutionID(id),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStatusQuery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusQuery, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	var status api.ExecutionStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusQuery, err)
	}
	return &status, nil
}

func (c *HTTPClient) Respond(
	ctx context.Context, id api.ExecutionID, inputs map[string]string,
) error {
	url := fmt.Sprintf("%s/executions/%s/respond", c.baseURL, id)
	req := api.RespondRequest{Inputs: inputs}
	if err := c.post(ctx, url, req, nil); err != nil {
		slog.Error("Failed to submit review response",
			log.ExecutionID(id),
			log.Error(err))
		return fmt.Errorf("%w: %v", ErrRespondRejected, err)
	}
	return nil
}

func (c *HTTPClient) Cancel(ctx context.Context, id api.ExecutionID) error {
	url := fmt.Sprintf("%s/executions/%s/cancel", c.baseURL, id)
	if err := c.post(ctx, url, struct{}{}, nil); err != nil {
		slog.Error("Failed to cancel execution",
			log.ExecutionID(id),
			log.Error(err))
		return fmt.Errorf("%w: %v", ErrCancelRejected, err)
	}
	return nil
}

func (c *HTTPClient) post(
	ctx context.Context, url string, payload any, out any,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, "POST", url, bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d: %s",
			ErrHTTPError, resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
