package event

import "github.com/planstudio-ai/planstudio/pkg/types"

// DocumentLoadedData is the payload for document.loaded events. Messages
// is a snapshot of the log at publish time; receivers must treat it as
// read-only.
type DocumentLoadedData struct {
	State    string          `json:"state"`
	Locator  string          `json:"locator,omitempty"`
	Messages []types.Message `json:"messages"`
	Dirty    bool            `json:"dirty"`
}

// ExecutionData is the payload for execution.updated events.
type ExecutionData struct {
	Running bool                  `json:"running"`
	Steps   []types.ExecutionStep `json:"steps"`
}

// SelectionData is the payload for selection.changed events.
type SelectionData struct {
	MessageKey string `json:"messageKey"`
	Automated  bool   `json:"automated"`
}

// SettingsData is the payload for settings.changed events. External is
// true when the change was observed on disk rather than made through
// the store.
type SettingsData struct {
	Key      string `json:"key"`
	Value    any    `json:"value,omitempty"`
	External bool   `json:"external,omitempty"`
}

// PlanningData is the payload for planning.updated events.
type PlanningData = types.PlanningEvent

// ProblemData is the payload for problem.highlighted events.
type ProblemData = types.Problem
