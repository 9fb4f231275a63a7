package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/planstudio-ai/planstudio/pkg/types"
)

// planSession runs one planning session and streams its steps as SSE.
// Planner failures after the stream has started are delivered as
// error-typed steps; the client normalizes them the same way as
// transport errors.
func (s *Server) planSession(w http.ResponseWriter, r *http.Request) {
	var req types.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid plan request: "+err.Error())
		return
	}
	for _, msg := range req.History {
		if !msg.Role.Valid() {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown message role: "+string(msg.Role))
			return
		}
	}
	if s.plan == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "no planner configured")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	// The planner emits from the request goroutine; the heartbeat ticker
	// shares the writer.
	var mu sync.Mutex
	emit := func(step types.StepEvent) error {
		mu.Lock()
		defer mu.Unlock()
		return sse.writeEvent("step", step)
	}

	interval := s.config.HeartbeatInterval
	if interval <= 0 {
		interval = SSEHeartbeatInterval
	}

	// The handler must not return while the heartbeat goroutine can still
	// touch the writer: close(done) runs first, then wg.Wait blocks until
	// the goroutine has exited. A tick that races the close writes to a
	// writer the handler is still holding open.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Wait()
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
				mu.Lock()
				sse.writeHeartbeat()
				mu.Unlock()
			}
		}
	}()

	if err := s.plan(r.Context(), req, emit); err != nil {
		s.log.Warn().Err(err).Str("planner", req.PlannerID).Msg("planning session failed")
		emit(types.StepEvent{Type: types.StepTypeError, Details: err.Error()})
	}
}
