package correlator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginDeliverAwait(t *testing.T) {
	r := New()

	rx, err := r.Begin("txn-1", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	payload := json.RawMessage(`{"ok":true}`)
	go r.Deliver("txn-1", "msg-1", payload)

	got, err := r.Await(context.Background(), "txn-1", "msg-1", rx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Zero(t, r.Len())
}

func TestBeginDuplicateKey(t *testing.T) {
	r := New()
	_, err := r.Begin("txn-1", "msg-1")
	require.NoError(t, err)

	_, err = r.Begin("txn-1", "msg-1")
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestAwaitTimeoutThenLateDelivery(t *testing.T) {
	r := New()
	rx, err := r.Begin("txn-1", "msg-1")
	require.NoError(t, err)

	_, err = r.Await(context.Background(), "txn-1", "msg-1", rx, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, r.Len())

	// late callback has no waiter left and must not block or panic
	r.Deliver("txn-1", "msg-1", json.RawMessage(`{}`))
	assert.Zero(t, r.Len())
}

func TestAwaitContextCancel(t *testing.T) {
	r := New()
	rx, err := r.Begin("txn-1", "msg-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Await(ctx, "txn-1", "msg-1", rx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Len())
}

func TestDeliverWithoutWaiterDrops(t *testing.T) {
	r := New()
	r.Deliver("txn-x", "msg-x", json.RawMessage(`{}`))
	assert.Zero(t, r.Len())
}

func TestCancelRemovesPending(t *testing.T) {
	r := New()
	_, err := r.Begin("txn-1", "msg-1")
	require.NoError(t, err)

	r.Cancel("txn-1", "msg-1")
	assert.Zero(t, r.Len())

	// key is reusable after cancel
	_, err = r.Begin("txn-1", "msg-1")
	assert.NoError(t, err)
}
