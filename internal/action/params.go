package action

// Params is the action-specific part of a Request. Exactly one concrete type
// exists per Action.
type Params interface {
	Action() Action
	isParams()
}

// Search depths understood by search workers.
const (
	DepthQuick    = "quick"
	DepthStandard = "standard"
	DepthDeep     = "deep"
)

type SearchParams struct {
	Query      string
	Depth      string
	MaxResults int
	// TimeFilter restricts results by age (day, week, month, year). Empty means no filter.
	TimeFilter string
}

type AnalyzeParams struct {
	Focus       string
	Temperature float64
}

type SynthesizeParams struct {
	Style       string
	Temperature float64
}

type CompareParams struct {
	Criteria    []string
	Items       []string
	Temperature float64
}

type RecommendParams struct {
	Count       int
	Temperature float64
}

type CustomParams struct {
	Config Config
}

func (SearchParams) Action() Action     { return Search }
func (AnalyzeParams) Action() Action    { return Analyze }
func (SynthesizeParams) Action() Action { return Synthesize }
func (CompareParams) Action() Action    { return Compare }
func (RecommendParams) Action() Action  { return Recommend }
func (CustomParams) Action() Action     { return Custom }

func (SearchParams) isParams()     {}
func (AnalyzeParams) isParams()    {}
func (SynthesizeParams) isParams() {}
func (CompareParams) isParams()    {}
func (RecommendParams) isParams()  {}
func (CustomParams) isParams()     {}

// Temperature returns the sampling temperature carried by p, if any.
func Temperature(p Params) (float64, bool) {
	switch v := p.(type) {
	case AnalyzeParams:
		return v.Temperature, true
	case SynthesizeParams:
		return v.Temperature, true
	case CompareParams:
		return v.Temperature, true
	case RecommendParams:
		return v.Temperature, true
	case CustomParams:
		if _, ok := v.Config["temperature"]; ok {
			return v.Config.Float("temperature", 0), true
		}
	}
	return 0, false
}
