package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/planstudio-ai/planstudio/internal/server"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// Script describes what a scripted planner emits for one planner ID.
type Script struct {
	// Chunks are emitted as consecutive assistant steps.
	Chunks []string
	// Steps, when set, are emitted verbatim instead of Chunks.
	Steps []types.StepEvent
	// Delay between steps, to exercise streaming consumers.
	Delay time.Duration
	// Fail aborts the session with this message after the steps.
	Fail string
}

// ScriptedPlanner is a deterministic planner backend for tests. Each
// planner ID maps to a script; requests are recorded for verification.
type ScriptedPlanner struct {
	mu       sync.Mutex
	scripts  map[string]Script
	requests []types.PlanRequest
}

// NewScriptedPlanner creates an empty scripted planner.
func NewScriptedPlanner() *ScriptedPlanner {
	return &ScriptedPlanner{scripts: make(map[string]Script)}
}

// Add registers the script for a planner ID.
func (p *ScriptedPlanner) Add(plannerID string, script Script) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[plannerID] = script
}

// Requests returns a copy of the recorded plan requests.
func (p *ScriptedPlanner) Requests() []types.PlanRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.PlanRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// PlanFunc returns the server.PlanFunc backed by this planner.
func (p *ScriptedPlanner) PlanFunc() server.PlanFunc {
	return func(ctx context.Context, req types.PlanRequest, emit func(types.StepEvent) error) error {
		p.mu.Lock()
		p.requests = append(p.requests, req)
		script, ok := p.scripts[req.PlannerID]
		p.mu.Unlock()

		if !ok {
			return errors.New("unknown planner: " + req.PlannerID)
		}

		steps := script.Steps
		if steps == nil {
			for _, chunk := range script.Chunks {
				steps = append(steps, types.StepEvent{
					Message: &types.Message{Role: types.RoleAssistant, Content: chunk},
				})
			}
		}

		for _, step := range steps {
			if script.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(script.Delay):
				}
			}
			if err := emit(step); err != nil {
				return err
			}
		}

		if script.Fail != "" {
			return errors.New(script.Fail)
		}
		return nil
	}
}
