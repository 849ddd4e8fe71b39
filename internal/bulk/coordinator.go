// Package bulk applies one action to many nodes with per-target outcome
// reporting. Targets are independent: one failure never aborts the rest, and
// a fully-failed batch is still a well-formed result, not an error.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/coord"
	"meshadmin.org/internal/obs"
	"meshadmin.org/internal/rbac"
)

var (
	// ErrInvalidRequest means the request shape was bad; nothing was attempted.
	ErrInvalidRequest = errors.New("bulk: invalid request")
	// ErrUnauthorized means the caller lacks the action's required role;
	// nothing was attempted and nothing was audited.
	ErrUnauthorized = errors.New("bulk: insufficient role for action")
)

// NodeActions is the single-target operation set the coordinator fans out
// over. *coord.NodeOps satisfies it.
type NodeActions interface {
	Delete(ctx context.Context, id string) error
	Expire(ctx context.Context, id string) error
	Move(ctx context.Context, id, newOwner string) (coord.Node, error)
	SetTags(ctx context.Context, id string, tags []string) (coord.Node, error)
}

// Caller identifies who is running the batch, with the roles already
// resolved by the endpoint's guard.
type Caller struct {
	ActorID string
	Display string
	Origin  string
	Roles   []rbac.Role
}

// Request is one batch: an action applied to each target independently.
type Request struct {
	Action  Action
	Targets []string
	Params  Params
}

// TargetResult is the outcome for one target.
type TargetResult struct {
	TargetID string `json:"target_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error_message,omitempty"`
}

// Summary aggregates a batch. Succeeded+Failed always equals Total.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Result is the full per-target breakdown, in request order.
type Result struct {
	PerTarget []TargetResult `json:"per_target"`
	Summary   Summary        `json:"summary"`
}

// Coordinator runs bulk requests.
type Coordinator struct {
	nodes  NodeActions
	ledger *audit.Ledger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(nodes NodeActions, ledger *audit.Ledger) (*Coordinator, error) {
	if nodes == nil {
		return nil, errors.New("bulk: node actions are required")
	}
	if ledger == nil {
		return nil, errors.New("bulk: audit ledger is required")
	}
	return &Coordinator{nodes: nodes, ledger: ledger}, nil
}

// Execute validates the request, re-checks the action's required role, then
// attempts every target in order, continuing past failures. Exactly one
// audit entry summarizes the batch. The result is returned even when every
// target failed.
func (c *Coordinator) Execute(ctx context.Context, caller Caller, req Request) (Result, error) {
	if err := c.validate(req); err != nil {
		return Result{}, err
	}
	if !rbac.MeetsMinimum(caller.Roles, req.Action.RequiredRole()) {
		return Result{}, fmt.Errorf("%w: %s requires at least %s",
			ErrUnauthorized, req.Action, req.Action.RequiredRole())
	}

	perTarget := make([]TargetResult, 0, len(req.Targets))
	summary := Summary{Total: len(req.Targets)}
	for _, targetID := range req.Targets {
		result := c.runTarget(ctx, req, targetID)
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		obs.ObserveBulkTarget(string(req.Action), result.Success)
		perTarget = append(perTarget, result)
	}

	// The batch is audited even when its deadline already expired; the write
	// must not inherit the dead context.
	c.ledger.Record(context.WithoutCancel(ctx), audit.Entry{
		ActorID:      caller.ActorID,
		ActorDisplay: caller.Display,
		ActorOrigin:  caller.Origin,
		Action:       "node." + string(req.Action) + ".bulk",
		ResourceType: "node",
		Metadata: map[string]string{
			"action":    string(req.Action),
			"targets":   strconv.Itoa(summary.Total),
			"succeeded": strconv.Itoa(summary.Succeeded),
			"failed":    strconv.Itoa(summary.Failed),
		},
	})

	return Result{PerTarget: perTarget, Summary: summary}, nil
}

// runTarget attempts one target. Per-target failures are data, not errors.
func (c *Coordinator) runTarget(ctx context.Context, req Request, targetID string) TargetResult {
	// If the batch deadline already expired, untried targets are reported as
	// failed rather than silently dropped.
	if err := ctx.Err(); err != nil {
		return TargetResult{
			TargetID: targetID,
			Error:    "batch deadline exceeded before target was attempted",
		}
	}

	var err error
	switch req.Action {
	case ActionDelete:
		err = c.nodes.Delete(ctx, targetID)
	case ActionExpire:
		err = c.nodes.Expire(ctx, targetID)
	case ActionMove:
		_, err = c.nodes.Move(ctx, targetID, req.Params.NewOwner)
	case ActionTagUpdate:
		_, err = c.nodes.SetTags(ctx, targetID, req.Params.Tags)
	default:
		err = fmt.Errorf("unhandled action %s", req.Action)
	}
	if err != nil {
		return TargetResult{TargetID: targetID, Error: err.Error()}
	}
	return TargetResult{TargetID: targetID, Success: true}
}

func (c *Coordinator) validate(req Request) error {
	if _, ok := requiredRole[req.Action]; !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("%w: at least one target is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(req.Targets))
	for _, id := range req.Targets {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: empty target id", ErrInvalidRequest)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate target %s", ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
	}
	return req.Action.validate(req.Params)
}
