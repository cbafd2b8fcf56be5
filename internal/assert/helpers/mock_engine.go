package helpers

import (
	"context"
	"fmt"
	"sync"

	"github.com/draftforge/draftforge/pkg/api"
)

// MockEngine is an in-memory stand-in for the remote workflow backend.
// Tests script its status responses and inspect what the coordinator
// sent it
type MockEngine struct {
	statuses  map[api.ExecutionID]*api.ExecutionStatusResponse
	started   []*api.StartExecutionRequest
	responded []map[string]string
	cancelled []api.ExecutionID

	startErr   error
	statusErr  error
	respondErr error
	cancelErr  error

	statusCalls int
	seq         int
	mu          sync.Mutex
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		statuses: map[api.ExecutionID]*api.ExecutionStatusResponse{},
	}
}

func (m *MockEngine) Start(
	_ context.Context, req *api.StartExecutionRequest,
) (api.ExecutionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return "", m.startErr
	}
	m.seq++
	id := api.ExecutionID(fmt.Sprintf("exec-%d", m.seq))
	m.started = append(m.started, req)
	m.statuses[id] = &api.ExecutionStatusResponse{
		Status: api.ExecutionRunning,
	}
	return id, nil
}

func (m *MockEngine) Status(
	_ context.Context, id api.ExecutionID,
) (*api.ExecutionStatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	status, ok := m.statuses[id]
	if !ok {
		return nil, fmt.Errorf("unknown execution: %s", id)
	}
	res := *status
	return &res, nil
}

func (m *MockEngine) Respond(
	_ context.Context, _ api.ExecutionID, inputs map[string]string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.respondErr != nil {
		return m.respondErr
	}
	m.responded = append(m.responded, inputs)
	return nil
}

func (m *MockEngine) Cancel(_ context.Context, id api.ExecutionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

// SetStatus scripts the next status report for an execution
func (m *MockEngine) SetStatus(
	id api.ExecutionID, status *api.ExecutionStatusResponse,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
}

// SetRunning scripts a plain running report with no pending review
func (m *MockEngine) SetRunning(id api.ExecutionID) {
	m.SetStatus(id, &api.ExecutionStatusResponse{
		Status: api.ExecutionRunning,
	})
}

// SetReview scripts a running report that carries a pending review
func (m *MockEngine) SetReview(id api.ExecutionID, review *api.PendingReview) {
	m.SetStatus(id, &api.ExecutionStatusResponse{
		Status:        api.ExecutionRunning,
		PendingReview: review,
	})
}

// SetCompleted scripts a completed report
func (m *MockEngine) SetCompleted(id api.ExecutionID) {
	m.SetStatus(id, &api.ExecutionStatusResponse{
		Status: api.ExecutionCompleted,
	})
}

// SetFailed scripts a failed report
func (m *MockEngine) SetFailed(id api.ExecutionID, msg string) {
	m.SetStatus(id, &api.ExecutionStatusResponse{
		Status: api.ExecutionFailed,
		Error:  msg,
	})
}

// SetStartErr makes subsequent Start calls fail
func (m *MockEngine) SetStartErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStatusErr makes subsequent Status calls fail
func (m *MockEngine) SetStatusErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusErr = err
}

// SetRespondErr makes subsequent Respond calls fail
func (m *MockEngine) SetRespondErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respondErr = err
}

// StatusCalls returns how many status queries the coordinator has made
func (m *MockEngine) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// Started returns the launch requests received so far
func (m *MockEngine) Started() []*api.StartExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]*api.StartExecutionRequest, len(m.started))
	copy(res, m.started)
	return res
}

// Responded returns the review responses received so far
func (m *MockEngine) Responded() []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]map[string]string, len(m.responded))
	copy(res, m.responded)
	return res
}

// Cancelled returns the cancellation requests received so far
func (m *MockEngine) Cancelled() []api.ExecutionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]api.ExecutionID, len(m.cancelled))
	copy(res, m.cancelled)
	return res
}
