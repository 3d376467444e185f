package oracle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/empower1/ledger/internal/vote"
)

type fakeSource struct {
	calls  atomic.Int32
	events []vote.EthereumEvent
	err    error
}

func (f *fakeSource) PollConfirmed(ctx context.Context) ([]vote.EthereumEvent, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func TestTask_DeliversEventsOverChannel(t *testing.T) {
	ev := vote.EthereumEvent{Kind: vote.EventTransfersToNamada, Nonce: 1, Payload: []byte("x")}
	src := &fakeSource{events: []vote.EthereumEvent{ev}}

	task := New(src, time.Millisecond, 10*time.Millisecond, zap.NewNop().Sugar())
	require.NoError(t, task.Start())

	select {
	case got := <-task.Events():
		assert.True(t, ev.Equal(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for oracle event")
	}

	require.NoError(t, task.Stop())
}

func TestTask_StartTwiceReturnsAlreadyRunning(t *testing.T) {
	src := &fakeSource{}
	task := New(src, time.Millisecond, 10*time.Millisecond, zap.NewNop().Sugar())
	require.NoError(t, task.Start())
	defer task.Stop()

	assert.ErrorIs(t, task.Start(), ErrAlreadyRunning)
}

func TestTask_StopWithoutStartReturnsNotRunning(t *testing.T) {
	task := New(&fakeSource{}, time.Millisecond, 10*time.Millisecond, zap.NewNop().Sugar())
	assert.ErrorIs(t, task.Stop(), ErrNotRunning)
}

func TestTask_TransportErrorDoesNotCrashLoop(t *testing.T) {
	src := &fakeSource{err: errors.New("transient rpc failure")}
	task := New(src, time.Millisecond, 5*time.Millisecond, zap.NewNop().Sugar())
	require.NoError(t, task.Start())

	// Give the loop a few iterations to back off and retry without panicking.
	time.Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
	require.NoError(t, task.Stop())
}
