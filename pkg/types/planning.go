package types

// PlanRequest opens one planning session against the planning backend.
type PlanRequest struct {
	PlannerID string    `json:"plannerId"`
	History   []Message `json:"history"`
}

// Step type values emitted by the planning backend.
const (
	StepTypeStep  = "step"
	StepTypeError = "error"
)

// StepEvent is one inbound unit from a planning session. Type is empty or
// "step" for an ordinary increment; "error" marks an application-level
// error reported by the backend (distinct from a transport failure).
type StepEvent struct {
	Type    string   `json:"type,omitempty"`
	Message *Message `json:"message,omitempty"`
	Details string   `json:"details,omitempty"`

	// Incremental is set by the store after merging: true when this step
	// extended the log's last message instead of starting a new one.
	// The backend never sends it.
	Incremental bool `json:"incremental,omitempty"`
}

// Planning event kinds delivered to planning subscribers.
const (
	PlanningStep   = "step"
	PlanningStatus = "status"
	PlanningError  = "error"
)

// PlanningEvent is the single shape planning subscribers receive.
// Transport errors and backend error steps are both normalized into
// Type "error" with Message set, so consumers handle one error shape
// regardless of source.
type PlanningEvent struct {
	Type    string     `json:"type"`
	Step    *StepEvent `json:"step,omitempty"`
	Running bool       `json:"running"`
	Message string     `json:"message,omitempty"`
}

// ExecutionStep records one applied step in the execution trace.
type ExecutionStep struct {
	MessageKey  string `json:"messageKey"`
	Role        Role   `json:"role"`
	Incremental bool   `json:"incremental"`
	Time        int64  `json:"time"`
}

// Problem points at a message a consumer should draw attention to.
type Problem struct {
	MessageKey  string `json:"messageKey"`
	Description string `json:"description"`
}
