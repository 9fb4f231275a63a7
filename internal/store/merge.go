package store

import "github.com/planstudio-ai/planstudio/pkg/types"

// Merge folds one inbound step message into an ordered log and reports
// whether the step was incremental.
//
// Consecutive assistant chunks coalesce: when the new message and the
// log's last message are both assistant-role, the last entry is replaced
// by a copy whose content is the concatenation, every other field
// preserved from the existing entry. Any other combination appends the
// message as a new entry. Only the last entry is ever a merge target;
// there is no backtracking.
//
// The input log is never mutated; the result shares no entry with it at
// the merge position.
func Merge(log []types.Message, msg types.Message) (merged []types.Message, incremental bool) {
	if msg.Role == types.RoleAssistant && len(log) > 0 && log[len(log)-1].Role == types.RoleAssistant {
		merged = types.CloneMessages(log)
		merged[len(merged)-1].Content += msg.Content
		return merged, true
	}

	merged = make([]types.Message, 0, len(log)+1)
	merged = append(merged, log...)
	merged = append(merged, msg)
	return merged, false
}
