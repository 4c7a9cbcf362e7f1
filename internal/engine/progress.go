package engine

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// progressManager aggregates per-step statuses into the StepBarUpdate and
// ProgressUpdate events an external UI uses to render a progress bar,
// without requiring the caller to poll GetStepBarState after every
// transition.
type progressManager struct {
	mu           sync.Mutex
	order        []string
	names        map[string]string
	status       map[string]workflow.Status
	activeStepID string
	bus          *events.Bus
	instanceID   string
}

func newProgressManager(steps []workflow.Step, bus *events.Bus, instanceID string) *progressManager {
	order := make([]string, 0, len(steps))
	names := make(map[string]string, len(steps))
	status := make(map[string]workflow.Status, len(steps))
	for _, s := range steps {
		order = append(order, s.ID)
		names[s.ID] = s.Name
		status[s.ID] = workflow.StatusPending
	}
	return &progressManager{
		order:      order,
		names:      names,
		status:     status,
		bus:        bus,
		instanceID: instanceID,
	}
}

// recordTransition updates stepID's status and, when it moves into Running
// or WaitingInput, updates activeStepID to match. It then emits a
// StepBarUpdate followed by a ProgressUpdate naming stepID as the step
// whose transition triggered the update.
func (p *progressManager) recordTransition(stepID string, status workflow.Status) {
	p.mu.Lock()
	p.status[stepID] = status
	if status == workflow.StatusRunning || status == workflow.StatusWaitingInput {
		p.activeStepID = stepID
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snapshot, stepID)
}

func (p *progressManager) snapshotLocked() stepBarState {
	steps := make([]stepBarEntry, 0, len(p.order))
	var done int
	for _, id := range p.order {
		s := p.status[id]
		steps = append(steps, stepBarEntry{ID: id, Name: p.names[id], Status: s})
		if s == workflow.StatusSuccess || s == workflow.StatusSkipped || s == workflow.StatusFailed {
			done++
		}
	}
	return stepBarState{
		Steps:        steps,
		ActiveStepID: p.activeStepID,
		Completed:    done,
		Total:        len(p.order),
	}
}

// snapshot returns the current step bar state without recording a
// transition.
func (p *progressManager) snapshot() stepBarState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *progressManager) publish(state stepBarState, currentStep string) {
	if p.bus == nil {
		return
	}

	stepValues := make([]wfvalue.Value, 0, len(state.Steps))
	for _, s := range state.Steps {
		stepValues = append(stepValues, wfvalue.Map(map[string]wfvalue.Value{
			"id":     wfvalue.String(s.ID),
			"name":   wfvalue.String(s.Name),
			"status": wfvalue.String(string(s.Status)),
		}))
	}

	p.bus.Publish(context.Background(), events.Event{
		Kind:       events.KindStepBarUpdate,
		InstanceID: p.instanceID,
		Data: wfvalue.Map(map[string]wfvalue.Value{
			"steps":        wfvalue.List(stepValues...),
			"activeStepId": wfvalue.String(state.ActiveStepID),
		}),
	})

	var percentage float64
	if state.Total > 0 {
		percentage = float64(state.Completed) / float64(state.Total) * 100
	}

	p.bus.Publish(context.Background(), events.Event{
		Kind:       events.KindProgressUpdate,
		InstanceID: p.instanceID,
		Data: wfvalue.Map(map[string]wfvalue.Value{
			"currentStep":    wfvalue.String(currentStep),
			"totalSteps":     wfvalue.Number(float64(state.Total)),
			"completedSteps": wfvalue.Number(float64(state.Completed)),
			"percentage":     wfvalue.Number(percentage),
		}),
	})
}

type stepBarEntry struct {
	ID     string
	Name   string
	Status workflow.Status
}

type stepBarState struct {
	Steps        []stepBarEntry
	ActiveStepID string
	Completed    int
	Total        int
}
