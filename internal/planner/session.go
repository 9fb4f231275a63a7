// Package planner talks to the agent-planning backend. One Session is
// one network conversation: it is constructed, run once, and terminates
// with a close or an error. A fresh plan always constructs a fresh
// Session.
package planner

import "github.com/planstudio-ai/planstudio/pkg/types"

// Handler is the three-callback contract a Session reports through.
// OnStep fires once per structured incremental update, in backend
// emission order. OnError reports a transport-level failure; a step
// whose Type is "error" is an application-level error and arrives via
// OnStep; normalizing the two into one error shape is the store's job,
// not the Session's.
type Handler interface {
	OnStep(step types.StepEvent)
	OnError(err error)
	OnClose()
}

// State is the session lifecycle: Idle -> Running -> Closed | Errored.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Session is one single-shot planning conversation. Run starts the
// stream and returns immediately; callbacks are delivered from the
// session's own goroutine. Calling Run more than once is a no-op.
// There is no cancel operation: the owner disengages by dropping its
// reference and ignoring late callbacks.
type Session interface {
	Run()
	State() State
}
