package store

import (
	"time"

	"github.com/planstudio-ai/planstudio/internal/event"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// sessionHandler receives one session's callbacks and applies them to
// the store. It captures the generation current when its session was
// opened; every callback re-checks that generation under the store
// mutex, so late callbacks from a superseded session are dropped before
// they can touch state.
type sessionHandler struct {
	store      *Store
	generation uint64
}

func (h *sessionHandler) stale() bool {
	return h.store.generation != h.generation
}

func (h *sessionHandler) OnStep(step types.StepEvent) {
	s := h.store
	s.mu.Lock()
	if h.stale() {
		s.mu.Unlock()
		return
	}

	// Backend-reported errors are normalized into the same planning
	// event shape as transport errors before they reach listeners.
	if step.Type == types.StepTypeError {
		message := step.Details
		if message == "" && step.Message != nil {
			message = step.Message.Content
		}
		errEvent := planningEvent(types.PlanningEvent{
			Type:    types.PlanningError,
			Running: s.execRunning,
			Message: message,
		})
		s.mu.Unlock()
		s.emit(errEvent)
		return
	}

	if step.Message == nil {
		s.mu.Unlock()
		return
	}

	now := time.Now().UnixMilli()
	msg := *step.Message
	if msg.Key == "" {
		msg.Key = newKey()
	}
	if msg.Time.Created == 0 {
		msg.Time.Created = now
	}

	merged, incremental := Merge(s.messages, msg)
	s.messages = merged
	s.dirty = true

	last := &s.messages[len(s.messages)-1]
	if incremental {
		last.Time.Updated = &now
	}

	s.execSteps = append(s.execSteps, types.ExecutionStep{
		MessageKey:  last.Key,
		Role:        last.Role,
		Incremental: incremental,
		Time:        now,
	})

	events := []event.Event{s.loadedEventLocked(), s.executionEventLocked()}

	// Auto-follow the newest content; never overrides an explicit pick.
	if sel, ok := s.autoselectLocked(last.Key); ok {
		events = append(events, sel)
	}

	// The log update is published before the planning event for the
	// same step.
	step.Incremental = incremental
	events = append(events, planningEvent(types.PlanningEvent{
		Type:    types.PlanningStep,
		Step:    &step,
		Running: true,
	}))

	s.mu.Unlock()
	s.emit(events...)
}

func (h *sessionHandler) OnError(err error) {
	s := h.store
	s.mu.Lock()
	if h.stale() {
		s.mu.Unlock()
		return
	}

	s.execRunning = false
	s.session = nil
	events := []event.Event{
		s.executionEventLocked(),
		planningEvent(types.PlanningEvent{
			Type:    types.PlanningError,
			Running: false,
			Message: err.Error(),
		}),
	}
	s.mu.Unlock()

	s.log.Warn().Err(err).Msg("planning session failed")
	s.emit(events...)
}

func (h *sessionHandler) OnClose() {
	s := h.store
	s.mu.Lock()
	if h.stale() {
		s.mu.Unlock()
		return
	}

	// Close always clears the running flags, even without a terminal step.
	s.execRunning = false
	s.session = nil
	events := []event.Event{
		s.executionEventLocked(),
		planningEvent(types.PlanningEvent{Type: types.PlanningStatus, Running: false}),
	}
	s.mu.Unlock()

	s.emit(events...)
}
