package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_RegisterWaitCompleteOK(t *testing.T) {
	c := New(10, time.Second)
	req, err := c.Register("team-1")
	require.NoError(t, err)

	go func() {
		require.NoError(t, c.Advance(req.RequestID, StageValidating))
		require.NoError(t, c.CompleteOK(req.RequestID, "done"))
	}()

	result, err := c.Wait(context.Background(), req.RequestID, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "done", result.Data)
	assert.Equal(t, StageCompleted, result.Stage)
}

func TestCoordinator_CompleteErr(t *testing.T) {
	c := New(10, time.Second)
	req, err := c.Register("team-1")
	require.NoError(t, err)

	go func() { require.NoError(t, c.CompleteErr(req.RequestID, 400, "bad_request", "nope")) }()

	result, err := c.Wait(context.Background(), req.RequestID, time.Second)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 400, result.HTTPStatus)
	assert.Equal(t, "bad_request", result.ErrorCode)
}

func TestCoordinator_WaitTimesOutWhenNeverCompleted(t *testing.T) {
	c := New(10, time.Hour)
	req, err := c.Register("team-1")
	require.NoError(t, err)

	result, err := c.Wait(context.Background(), req.RequestID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 504, result.HTTPStatus)
	assert.Equal(t, StageTimedOut, result.Stage)
}

func TestCoordinator_WaitRespectsContextCancellation(t *testing.T) {
	c := New(10, time.Hour)
	req, err := c.Register("team-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Wait(ctx, req.RequestID, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_RegisterFailsAtCapacity(t *testing.T) {
	c := New(1, time.Second)
	_, err := c.Register("team-1")
	require.NoError(t, err)

	_, err = c.Register("team-2")
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestCoordinator_CompleteIsIdempotent(t *testing.T) {
	c := New(10, time.Second)
	req, err := c.Register("team-1")
	require.NoError(t, err)

	require.NoError(t, c.CompleteOK(req.RequestID, "first"))
	require.NoError(t, c.CompleteOK(req.RequestID, "second"))

	result, err := c.Wait(context.Background(), req.RequestID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Data, "the first completion wins; a later one must not overwrite it")
}

func TestCoordinator_OutstandingCounts(t *testing.T) {
	c := New(10, time.Second)
	req1, err := c.Register("team-1")
	require.NoError(t, err)
	_, err = c.Register("team-2")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Outstanding())

	require.NoError(t, c.CompleteOK(req1.RequestID, nil))
	assert.Equal(t, 1, c.Outstanding())
}

func TestCoordinator_UnknownRequestIDErrors(t *testing.T) {
	c := New(10, time.Second)
	_, err := c.Wait(context.Background(), "bogus", time.Second)
	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.ErrorIs(t, c.Advance("bogus", StageMatching), ErrUnknownRequest)
	assert.ErrorIs(t, c.CompleteOK("bogus", nil), ErrUnknownRequest)
}

func TestCoordinator_StartCleanupEvictsOldCompletedRequests(t *testing.T) {
	c := New(10, time.Second)
	req, err := c.Register("team-1")
	require.NoError(t, err)
	require.NoError(t, c.CompleteOK(req.RequestID, nil))

	c.StartCleanup(5*time.Millisecond, 1*time.Millisecond)
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)
	c.mu.Lock()
	_, stillPresent := c.requests[req.RequestID]
	c.mu.Unlock()
	assert.False(t, stillPresent, "a completed request older than ttl should be evicted")
}
