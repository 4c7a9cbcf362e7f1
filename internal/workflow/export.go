package workflow

import (
	"encoding/json"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// ExportedStep is the wire representation of a single step's runtime state,
// used by ExportState to produce a point-in-time snapshot of an instance.
type ExportedStep struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Output *wfvalue.Value  `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ExportedState is the JSON-serializable snapshot produced by
// engine.Orchestrator.ExportState and parsed back by UnmarshalExportedState. It captures
// enough to resume progress tracking and inspection but is not a resumable
// execution checkpoint (see spec.md §9 non-goals: no replay/persistence).
type ExportedState struct {
	InstanceID string            `json:"instance_id"`
	Status     WorkflowStatus    `json:"status"`
	Steps      []ExportedStep    `json:"steps"`
	Globals    map[string]wfvalue.Value `json:"globals,omitempty"`
}

// MarshalExportedState serializes a snapshot to JSON bytes.
func MarshalExportedState(state *ExportedState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, streamyerrors.NewParseError("", 0, err)
	}
	return data, nil
}

// UnmarshalExportedState parses a previously exported snapshot.
func UnmarshalExportedState(data []byte) (*ExportedState, error) {
	var state ExportedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, streamyerrors.NewParseError("", 0, err)
	}
	return &state, nil
}
