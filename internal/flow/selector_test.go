package flow

import (
	"testing"

	"github.com/flowrun/flowrun/internal/action"
)

func TestSelect(t *testing.T) {
	full := &Flow{
		ID: "startup_analysis",
		WorkerPreferences: map[Role]string{
			RoleSearch:   "web",
			RoleAnalysis: "analyst",
			RolePrimary:  "writer",
		},
		WorkerOverrides: []WorkerOverride{
			{Actions: []action.Action{action.Recommend, action.Custom}, Worker: "mentor"},
			{Actions: []action.Action{action.Custom}, Worker: "never"},
		},
	}
	bare := &Flow{ID: "bare"}

	tests := []struct {
		name string
		step Step
		flow *Flow
		want string
	}{
		{"step override wins", Step{ID: "s", Action: action.Search, WorkerOverride: "pinned"}, full, "pinned"},
		{"search role", Step{ID: "s", Action: action.Search}, full, "web"},
		{"analyze role", Step{ID: "s", Action: action.Analyze}, full, "analyst"},
		{"synthesize role", Step{ID: "s", Action: action.Synthesize}, full, "analyst"},
		{"override table", Step{ID: "s", Action: action.Recommend}, full, "mentor"},
		{"first override entry wins", Step{ID: "s", Action: action.Custom}, full, "mentor"},
		{"primary", Step{ID: "s", Action: action.Compare}, full, "writer"},
		{"global default", Step{ID: "s", Action: action.Search}, bare, "default"},
		{"role missing falls to primary", Step{ID: "s", Action: action.Search}, &Flow{WorkerPreferences: map[Role]string{RolePrimary: "p"}}, "p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 3 {
				if got := Select(&tt.step, tt.flow, "default"); got != tt.want {
					t.Fatalf("Select() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}
