package flow

import (
	"slices"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
)

var actionRoles = map[action.Action]Role{
	action.Search:     RoleSearch,
	action.Analyze:    RoleAnalysis,
	action.Synthesize: RoleAnalysis,
}

// Select picks the worker for step. The first of these wins: the step's own
// override, the flow's worker for the action's role, the flow's override
// table, the flow's primary worker, globalDefault.
func Select(step *Step, f *Flow, globalDefault string) string {
	name, source := selectWorker(step, f, globalDefault)
	logging.Debug("Selected worker", "flow", f.ID, "step", step.ID, "worker", name, "source", source)
	return name
}

func selectWorker(step *Step, f *Flow, globalDefault string) (string, string) {
	if step.WorkerOverride != "" {
		return step.WorkerOverride, "step"
	}
	if role, ok := actionRoles[step.Action]; ok {
		if w := f.WorkerPreferences[role]; w != "" {
			return w, "role:" + string(role)
		}
	}
	for _, o := range f.WorkerOverrides {
		if slices.Contains(o.Actions, step.Action) {
			return o.Worker, "override"
		}
	}
	if w := f.WorkerPreferences[RolePrimary]; w != "" {
		return w, "primary"
	}
	return globalDefault, "default"
}
