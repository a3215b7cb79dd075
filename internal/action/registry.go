package action

// Registry maps actions to capabilities. Register everything before the
// registry is shared; lookups are read-only and safe for concurrent use.
type Registry struct {
	caps map[Action]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[Action]Capability)}
}

// DefaultRegistry returns a registry with a capability for every action.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Search, SearchCapability())
	r.Register(Analyze, AnalyzeCapability())
	r.Register(Synthesize, SynthesizeCapability())
	r.Register(Compare, CompareCapability())
	r.Register(Recommend, RecommendCapability())
	r.Register(Custom, CustomCapability())
	return r
}

func (r *Registry) Register(a Action, c Capability) {
	r.caps[a] = c
}

func (r *Registry) Get(a Action) (Capability, bool) {
	c, ok := r.caps[a]
	return c, ok
}

// Actions lists registered actions in declaration order.
func (r *Registry) Actions() []Action {
	var out []Action
	for _, a := range All {
		if _, ok := r.caps[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
