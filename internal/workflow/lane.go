package workflow

import (
	"slices"

	"vodpipe/internal/queue"
	"vodpipe/internal/stage"
)

// StageSet maps stage keys to the handlers the manager orchestrates. Stages
// without a handler are left out of their lane.
type StageSet map[string]stage.Handler

// boundStep is a queue step with the handler that performs it.
type boundStep struct {
	queue.Step
	handler stage.Handler
}

// lane is an ordered run of steps polled by one worker goroutine.
type lane struct {
	kind  queue.Lane
	steps []boundStep
}

// notifies reports whether items entering this lane count towards the
// queue-started and queue-completed notifications.
func (l *lane) notifies() bool {
	return l.kind == queue.LaneAnalysis
}

// readyStatuses lists the statuses a worker polls for, in pipeline order.
func (l *lane) readyStatuses() []queue.Status {
	out := make([]queue.Status, 0, len(l.steps))
	for _, s := range l.steps {
		out = append(out, s.Ready)
	}
	return out
}

// busyStatuses lists the in-flight statuses eligible for stale reclaim.
func (l *lane) busyStatuses() []queue.Status {
	var out []queue.Status
	for _, s := range l.steps {
		if s.Processing != "" && !slices.Contains(out, s.Processing) {
			out = append(out, s.Processing)
		}
	}
	return out
}

func (l *lane) stepFor(status queue.Status) (boundStep, bool) {
	for _, s := range l.steps {
		if s.Ready == status {
			return s, true
		}
	}
	return boundStep{}, false
}

func (l *lane) stageNames() []string {
	names := make([]string, 0, len(l.steps))
	for _, s := range l.steps {
		names = append(names, s.Stage)
	}
	return names
}

// buildLanes groups the handled steps by lane, keeping pipeline order for
// both the lanes and the steps inside them.
func buildLanes(set StageSet) []*lane {
	var lanes []*lane
	for _, step := range queue.Steps() {
		handler := set[step.Stage]
		if handler == nil {
			continue
		}
		idx := slices.IndexFunc(lanes, func(l *lane) bool { return l.kind == step.Lane })
		if idx < 0 {
			lanes = append(lanes, &lane{kind: step.Lane})
			idx = len(lanes) - 1
		}
		lanes[idx].steps = append(lanes[idx].steps, boundStep{Step: step, handler: handler})
	}
	return lanes
}

// ConfigureStages registers the stage handlers the workflow will run. Each
// stage joins the lane its queue step belongs to, in pipeline order.
func (m *Manager) ConfigureStages(set StageSet) {
	lanes := buildLanes(set)
	m.mu.Lock()
	m.lanes = lanes
	m.mu.Unlock()
}
