// Package apply drives the synchronous order actions: select, init,
// confirm and status. Each dispatch registers a correlator waiter and
// blocks until the matching callback lands or the wait cap expires.
package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/beckn"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/correlator"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// callbackWait caps the dispatch-to-callback window of a synchronous
// action.
const callbackWait = 10 * time.Second

// ErrDispatch marks an adapter POST failure (maps to 502).
var ErrDispatch = errors.New("apply: adapter dispatch failed")

type Coordinator struct {
	cfg        *config.Config
	adapter    *adapter.Client
	correlator *correlator.Registry
	store      *store.Store
}

func NewCoordinator(cfg *config.Config, adapterClient *adapter.Client, reg *correlator.Registry, st *store.Store) *Coordinator {
	return &Coordinator{cfg: cfg, adapter: adapterClient, correlator: reg, store: st}
}

// dispatchAndAwait sends one action through the adapter and blocks for
// its callback. The pending entry is removed on dispatch failure and on
// timeout, so a late callback drops.
func (c *Coordinator) dispatchAndAwait(ctx context.Context, action string, mctx models.MinimalContext, message interface{}) (json.RawMessage, error) {
	txnID := mctx.TransactionID
	msgID := "msg-" + uuid.NewString()

	rx, err := c.correlator.Begin(txnID, msgID)
	if err != nil {
		return nil, err
	}

	payload := beckn.NewPayload(c.cfg, txnID, msgID, message, action, mctx.BppID, mctx.BppURI)
	if err := c.adapter.Send(ctx, action, payload); err != nil {
		c.correlator.Cancel(txnID, msgID)
		return nil, fmt.Errorf("%w: %s: %v", ErrDispatch, action, err)
	}

	return c.correlator.Await(ctx, txnID, msgID, rx, callbackWait)
}

// ApplyOutcome distinguishes the idempotent short-circuit from a fresh
// confirmation.
type ApplyOutcome struct {
	Existing  *store.Application
	OnConfirm json.RawMessage
}

// Apply runs the full application flow. A second apply for the same
// (user, job) returns the stored application without touching the
// network.
func (c *Coordinator) Apply(ctx context.Context, req models.OrderRequest) (*ApplyOutcome, error) {
	userID := req.Message.Order.UserID()
	jobID := req.Message.Order.JobID()

	existing, err := c.store.GetApplication(ctx, userID, jobID)
	if err == nil {
		slog.Info("apply short-circuited, application exists", "user_id", userID, "job_id", jobID)
		return &ApplyOutcome{Existing: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("application lookup: %w", err)
	}

	if _, err := c.dispatchAndAwait(ctx, "init", req.Context, req.Message); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	onConfirm, err := c.dispatchAndAwait(ctx, "confirm", req.Context, req.Message)
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}

	application, err := ExtractApplication(onConfirm)
	if err != nil {
		return nil, fmt.Errorf("parse on_confirm: %w", err)
	}
	if err := c.store.InsertApplication(ctx, application); err != nil {
		return nil, fmt.Errorf("persist application: %w", err)
	}

	slog.Info("application stored", "user_id", application.UserID,
		"job_id", application.JobID, "order_id", application.OrderID)
	return &ApplyOutcome{OnConfirm: onConfirm}, nil
}

// Select relays a select action and returns the on_select payload.
func (c *Coordinator) Select(ctx context.Context, req models.OrderRequest) (json.RawMessage, error) {
	return c.dispatchAndAwait(ctx, "select", req.Context, req.Message)
}

// Status relays a status action and returns the on_status payload.
func (c *Coordinator) Status(ctx context.Context, req models.StatusRequest) (json.RawMessage, error) {
	return c.dispatchAndAwait(ctx, "status", req.Context, req.Message)
}

// Deliver resolves a waiter from an on_init/on_confirm/on_select/
// on_status callback.
func (c *Coordinator) Deliver(txnID, msgID string, payload json.RawMessage) {
	c.correlator.Deliver(txnID, msgID, payload)
}

type confirmEnvelope struct {
	Context models.Context `json:"context"`
	Message struct {
		Order struct {
			ID           string               `json:"id"`
			Items        []models.OrderItem   `json:"items"`
			Fulfillments []models.Fulfillment `json:"fulfillments"`
		} `json:"order"`
	} `json:"message"`
}

// ExtractApplication builds the application row from an on_confirm
// payload: ids from the context, applicant and job from the order, and
// the whole payload kept as metadata.
func ExtractApplication(raw json.RawMessage) (store.Application, error) {
	var env confirmEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return store.Application{}, err
	}

	order := models.Order{
		Items:        env.Message.Order.Items,
		Fulfillments: env.Message.Order.Fulfillments,
	}

	return store.Application{
		UserID:        order.UserID(),
		JobID:         order.JobID(),
		OrderID:       env.Message.Order.ID,
		TransactionID: env.Context.TransactionID,
		BppID:         env.Context.BppID,
		BppURI:        env.Context.BppURI,
		Status:        "APPLIED",
		Metadata:      raw,
	}, nil
}
