// Package coordinator bridges synchronous callers (an HTTP handler) to the
// asynchronous pipeline (C8): a caller registers a request, blocks on Wait,
// and the pipeline stages advance/complete it from the other side. Adapted
// from the teacher's ring-buffer "claim a slot, get a response channel back"
// pattern (internal/disruptor), generalized from a fixed power-of-2 ring to
// a map keyed by request_id, since requests now pass through three
// cooperating stages rather than one.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage marks how far a request has progressed through the pipeline.
type Stage int

const (
	StageRegistered Stage = iota
	StageValidating
	StageMatching
	StageSettling
	StageCompleted
	StageTimedOut
	StageErrored
)

func (s Stage) String() string {
	switch s {
	case StageRegistered:
		return "registered"
	case StageValidating:
		return "validating"
	case StageMatching:
		return "matching"
	case StageSettling:
		return "settling"
	case StageCompleted:
		return "completed"
	case StageTimedOut:
		return "timed_out"
	case StageErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Result is what Wait returns once a request reaches a terminal stage.
type Result struct {
	Success      bool
	HTTPStatus   int
	ErrorCode    string
	ErrorMessage string
	Data         interface{}
	Stage        Stage
}

var (
	ErrUnknownRequest  = errors.New("coordinator: unknown request id")
	ErrAlreadyComplete = errors.New("coordinator: request already complete")
	ErrAtCapacity      = errors.New("coordinator: too many outstanding requests")
)

// PendingRequest tracks one in-flight request end to end.
type PendingRequest struct {
	RequestID    string
	TeamID       string
	RegisteredAt time.Time

	mu       sync.Mutex
	stage    Stage
	done     chan struct{}
	result   Result
	complete bool
}

func (p *PendingRequest) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Coordinator is the C9 response coordinator.
type Coordinator struct {
	mu             sync.Mutex
	requests       map[string]*PendingRequest
	maxPending     int
	defaultTimeout time.Duration

	stopCleanup chan struct{}
}

func New(maxPending int, defaultTimeout time.Duration) *Coordinator {
	c := &Coordinator{
		requests:       make(map[string]*PendingRequest),
		maxPending:     maxPending,
		defaultTimeout: defaultTimeout,
		stopCleanup:    make(chan struct{}),
	}
	return c
}

// Register creates a new pending request and returns it. Fails with
// ErrAtCapacity once the coordinator holds maxPending requests (completed
// requests count until cleanup evicts them), which the HTTP layer should
// translate into a 503 Service Unavailable.
func (c *Coordinator) Register(teamID string) (*PendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxPending > 0 && len(c.requests) >= c.maxPending {
		return nil, ErrAtCapacity
	}
	req := &PendingRequest{
		RequestID:    uuid.NewString(),
		TeamID:       teamID,
		RegisteredAt: time.Now(),
		stage:        StageRegistered,
		done:         make(chan struct{}),
	}
	c.requests[req.RequestID] = req
	return req, nil
}

// Advance moves a request to a later stage. It is a no-op if the request is
// already complete or the target stage does not move it forward.
func (c *Coordinator) Advance(requestID string, stage Stage) error {
	c.mu.Lock()
	req, ok := c.requests[requestID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.complete {
		return nil
	}
	if stage > req.stage {
		req.stage = stage
	}
	return nil
}

// Wait blocks until the request completes, the context is cancelled, or
// timeout elapses (timeout <= 0 uses the coordinator default).
func (c *Coordinator) Wait(ctx context.Context, requestID string, timeout time.Duration) (Result, error) {
	c.mu.Lock()
	req, ok := c.requests[requestID]
	c.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownRequest
	}
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	select {
	case <-req.done:
		req.mu.Lock()
		defer req.mu.Unlock()
		return req.result, nil
	case <-time.After(timeout):
		c.completeLocked(req, Result{
			Success:      false,
			HTTPStatus:   504,
			ErrorCode:    "timeout",
			ErrorMessage: "request did not complete in time",
			Stage:        StageTimedOut,
		})
		return req.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// CompleteOK finalizes a request successfully.
func (c *Coordinator) CompleteOK(requestID string, data interface{}) error {
	req, ok := c.lookup(requestID)
	if !ok {
		return ErrUnknownRequest
	}
	c.completeLocked(req, Result{Success: true, HTTPStatus: 200, Data: data, Stage: StageCompleted})
	return nil
}

// CompleteErr finalizes a request with an application error.
func (c *Coordinator) CompleteErr(requestID string, httpStatus int, code, message string) error {
	req, ok := c.lookup(requestID)
	if !ok {
		return ErrUnknownRequest
	}
	c.completeLocked(req, Result{
		Success:      false,
		HTTPStatus:   httpStatus,
		ErrorCode:    code,
		ErrorMessage: message,
		Stage:        StageErrored,
	})
	return nil
}

// CompleteTimeout is used by the pipeline itself (as opposed to Wait's
// caller-side timeout) when a stage decides a request has been stuck too
// long to continue.
func (c *Coordinator) CompleteTimeout(requestID string, stage Stage) error {
	req, ok := c.lookup(requestID)
	if !ok {
		return ErrUnknownRequest
	}
	c.completeLocked(req, Result{
		Success:      false,
		HTTPStatus:   504,
		ErrorCode:    "timeout",
		ErrorMessage: "request timed out at stage " + stage.String(),
		Stage:        StageTimedOut,
	})
	return nil
}

func (c *Coordinator) lookup(requestID string) (*PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requests[requestID]
	return req, ok
}

func (c *Coordinator) completeLocked(req *PendingRequest, result Result) {
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.complete {
		return
	}
	req.complete = true
	req.stage = result.Stage
	req.result = result
	close(req.done)
}

// Outstanding returns the number of requests not yet complete, for metrics.
func (c *Coordinator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.Stage() != StageCompleted && r.Stage() != StageTimedOut && r.Stage() != StageErrored {
			n++
		}
	}
	return n
}

// StartCleanup runs a background goroutine that evicts completed requests
// older than ttl from the map every interval, so long-running venues don't
// leak memory for requests nobody ever calls Wait on again.
func (c *Coordinator) StartCleanup(interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.evictOlderThan(ttl)
			case <-c.stopCleanup:
				return
			}
		}
	}()
}

func (c *Coordinator) evictOlderThan(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, req := range c.requests {
		req.mu.Lock()
		complete := req.complete
		req.mu.Unlock()
		if complete && req.RegisteredAt.Before(cutoff) {
			delete(c.requests, id)
		}
	}
}

// Stop ends the background cleanup goroutine, if started.
func (c *Coordinator) Stop() {
	close(c.stopCleanup)
}
