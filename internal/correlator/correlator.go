// Package correlator pairs outbound synchronous requests with the network
// callbacks that answer them. A pending entry is keyed by
// (transaction_id, message_id) and holds a single-shot waiter; it is
// consumed or expired exactly once. Best-effort within a single process.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned when no callback arrives within the wait cap.
	ErrTimeout = errors.New("correlator: timed out waiting for callback")
	// ErrDuplicateKey is returned when Begin is called twice for one key.
	ErrDuplicateKey = errors.New("correlator: pending entry already exists")
)

// Registry is the process-wide pending-call map.
type Registry struct {
	mu      sync.Mutex
	pending map[string]chan json.RawMessage
}

func New() *Registry {
	return &Registry{pending: make(map[string]chan json.RawMessage)}
}

func key(txnID, msgID string) string {
	return txnID + ":" + msgID
}

// Begin registers a fresh waiter for (txnID, msgID). Fails if the key is
// already pending.
func (r *Registry) Begin(txnID, msgID string) (<-chan json.RawMessage, error) {
	k := key(txnID, msgID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[k]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, k)
	}
	ch := make(chan json.RawMessage, 1)
	r.pending[k] = ch
	return ch, nil
}

// Deliver resolves the waiter for (txnID, msgID) with payload and removes
// the entry. A payload with no waiter is dropped: the callback arrived
// late or was meant for a non-blocking caller.
func (r *Registry) Deliver(txnID, msgID string, payload json.RawMessage) {
	k := key(txnID, msgID)
	r.mu.Lock()
	ch, ok := r.pending[k]
	if ok {
		delete(r.pending, k)
	}
	r.mu.Unlock()

	if !ok {
		slog.Info("no pending request for callback, dropping",
			"transaction_id", txnID, "message_id", msgID)
		return
	}
	ch <- payload
}

// Cancel removes a pending entry without resolving it (dispatch failed).
func (r *Registry) Cancel(txnID, msgID string) {
	r.mu.Lock()
	delete(r.pending, key(txnID, msgID))
	r.mu.Unlock()
}

// Await blocks until the waiter resolves, the timeout elapses, or ctx is
// done. On timeout the pending entry is removed so a late callback drops.
func (r *Registry) Await(ctx context.Context, txnID, msgID string, rx <-chan json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-rx:
		return payload, nil
	case <-timer.C:
		r.Cancel(txnID, msgID)
		return nil, ErrTimeout
	case <-ctx.Done():
		r.Cancel(txnID, msgID)
		return nil, ctx.Err()
	}
}

// Len reports the number of in-flight entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
