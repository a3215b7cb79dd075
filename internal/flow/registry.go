package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/logging"
)

const (
	maxFlowFileSize = 100 * 1024 // 100KB
	maxNameLength   = 64
	maxStepIDLength = 64
	maxSuggestions  = 3
	flowFilePattern = "**/*.{yaml,yml}"
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9]+([_-][A-Za-z0-9]+)*$`)

// Loader supplies flow definitions keyed by flow ID.
type Loader interface {
	LoadFlows() (map[string]Flow, error)
}

// MapLoader serves flows held in memory.
type MapLoader map[string]Flow

func (m MapLoader) LoadFlows() (map[string]Flow, error) {
	flows := make(map[string]Flow, len(m))
	for id, f := range m {
		if f.ID == "" {
			f.ID = id
		}
		if err := validateFlow(&f); err != nil {
			return nil, fmt.Errorf("validating flow %q: %w", id, err)
		}
		flows[f.ID] = f
	}
	return flows, nil
}

// FileLoader discovers YAML flow files under a list of directories. Earlier
// directories win when two files declare the same flow ID.
type FileLoader struct {
	Dirs []string
}

// DefaultDirs lists the configured flow paths followed by the project and
// user flow directories.
func DefaultDirs(cfg *config.Config) []string {
	var dirs []string
	for _, p := range cfg.FlowPaths {
		if !filepath.IsAbs(p) && cfg.WorkingDir != "" {
			p = filepath.Join(cfg.WorkingDir, p)
		}
		dirs = append(dirs, p)
	}
	dirs = append(dirs, filepath.Join(cfg.WorkingDir, ".flowrun", "flows"))
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "flowrun", "flows"))
	} else {
		logging.Warn("Could not determine home directory for global flow discovery", "error", err)
	}
	return dirs
}

func (l FileLoader) LoadFlows() (map[string]Flow, error) {
	flows := make(map[string]Flow)
	for _, dir := range l.Dirs {
		for _, f := range scanFlowDirectory(dir) {
			if existing, ok := flows[f.ID]; ok {
				logging.Warn("Duplicate flow ID, keeping first occurrence", "id", f.ID, "kept", existing.Location, "skipped", f.Location)
				continue
			}
			flows[f.ID] = f
		}
	}
	return flows, nil
}

func scanFlowDirectory(dir string) []Flow {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), flowFilePattern)
	if err != nil {
		logging.Warn("Failed to scan flow directory", "dir", dir, "error", err)
		return nil
	}
	sort.Strings(matches)

	var flows []Flow
	for _, rel := range matches {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		f, err := parseFlowFile(path)
		if err != nil {
			logging.Warn("Failed to parse flow file", "path", path, "error", err)
			continue
		}
		flows = append(flows, *f)
	}
	return flows
}

func parseFlowFile(path string) (*Flow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}
	if info.Size() > maxFlowFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidYAML, maxFlowFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}
	return ParseFlow(data, path)
}

// ParseFlow decodes and validates one YAML flow definition. Without an
// explicit id the file name (minus extension) is used.
func ParseFlow(data []byte, path string) (*Flow, error) {
	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if f.ID == "" {
		base := filepath.Base(path)
		f.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	f.Location = path

	if err := validateFlow(&f); err != nil {
		return nil, fmt.Errorf("validating flow %q: %w", f.ID, err)
	}
	return &f, nil
}

func validateID(kind error, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty ID", kind)
	}
	if len(id) > maxNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", kind, id, maxNameLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q must be alphanumeric words joined by hyphens or underscores", kind, id)
	}
	return nil
}

// validateFlow checks IDs, actions and that every step reference resolves.
func validateFlow(f *Flow) error {
	if err := validateID(ErrInvalidFlowID, f.ID); err != nil {
		return err
	}
	if len(f.Steps) == 0 {
		return ErrNoSteps
	}

	stepIDs := make(map[string]bool, len(f.Steps))
	for _, step := range f.Steps {
		if err := validateID(ErrInvalidStepID, step.ID); err != nil {
			return err
		}
		if step.ID == End {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidStepID, End)
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateStepID, step.ID)
		}
		if !step.Action.Valid() {
			return fmt.Errorf("%w: step %q has action %q", ErrInvalidAction, step.ID, step.Action)
		}
		stepIDs[step.ID] = true
	}

	if f.DefaultStartStep != "" && !stepIDs[f.DefaultStartStep] {
		return fmt.Errorf("%w: defaultStartStep references %q", ErrInvalidReference, f.DefaultStartStep)
	}
	for _, step := range f.Steps {
		if step.Conditions != nil {
			for _, target := range step.Conditions.targets() {
				if !stepIDs[target] {
					return fmt.Errorf("%w: step %q condition references %q", ErrInvalidReference, step.ID, target)
				}
			}
		}
		if step.Inputs == nil {
			continue
		}
		if step.Inputs.FromStep != "" && !stepIDs[step.Inputs.FromStep] {
			return fmt.Errorf("%w: step %q fromStep references %q", ErrInvalidReference, step.ID, step.Inputs.FromStep)
		}
		for _, ref := range step.Inputs.FromContext {
			if !stepIDs[ref] {
				return fmt.Errorf("%w: step %q fromContext references %q", ErrInvalidReference, step.ID, ref)
			}
		}
	}

	for i, o := range f.WorkerOverrides {
		if o.Worker == "" {
			return fmt.Errorf("workerOverrides[%d]: worker is required", i)
		}
		for _, a := range o.Actions {
			if !a.Valid() {
				return fmt.Errorf("%w: workerOverrides[%d] lists %q", ErrInvalidAction, i, a)
			}
		}
	}
	return nil
}

// Registry caches the flows of a Loader until invalidated.
type Registry struct {
	loader Loader

	mu     sync.Mutex
	flows  map[string]Flow
	loaded bool
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader}
}

func (r *Registry) state() (map[string]Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		flows, err := r.loader.LoadFlows()
		if err != nil {
			return nil, err
		}
		r.flows = flows
		r.loaded = true
		logging.Debug("Loaded flows", "count", len(flows))
	}
	return r.flows, nil
}

// Get returns a flow by ID, or ErrFlowNotFound naming close matches.
func (r *Registry) Get(id string) (*Flow, error) {
	flows, err := r.state()
	if err != nil {
		return nil, err
	}
	f, ok := flows[id]
	if !ok {
		if s := suggest(id, flows); len(s) > 0 {
			return nil, fmt.Errorf("%w: %s (did you mean %s?)", ErrFlowNotFound, id, strings.Join(s, ", "))
		}
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return &f, nil
}

// All returns every flow sorted by ID.
func (r *Registry) All() ([]Flow, error) {
	flows, err := r.state()
	if err != nil {
		return nil, err
	}
	result := make([]Flow, 0, len(flows))
	for _, f := range flows {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Filter returns the flows whose ID or name fuzzily matches term.
func (r *Registry) Filter(term string) ([]Flow, error) {
	all, err := r.All()
	if err != nil || term == "" {
		return all, err
	}
	var result []Flow
	for _, f := range all {
		if fuzzy.MatchFold(term, f.ID) || fuzzy.MatchFold(term, f.Name) {
			result = append(result, f)
		}
	}
	return result, nil
}

// Invalidate clears the cached flows, forcing re-discovery on next access.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows = nil
	r.loaded = false
}

func suggest(id string, flows map[string]Flow) []string {
	ids := make([]string, 0, len(flows))
	for k := range flows {
		ids = append(ids, k)
	}
	ranks := fuzzy.RankFindFold(id, ids)
	if len(ranks) == 0 {
		// Typos rarely form a subsequence; fall back to edit distance.
		for _, k := range ids {
			if d := fuzzy.LevenshteinDistance(strings.ToLower(id), strings.ToLower(k)); d <= 2 {
				ranks = append(ranks, fuzzy.Rank{Target: k, Distance: d})
			}
		}
	}
	sort.Sort(ranks)
	var out []string
	for i := 0; i < len(ranks) && i < maxSuggestions; i++ {
		out = append(out, ranks[i].Target)
	}
	return out
}

var (
	_ Loader = FileLoader{}
	_ Loader = MapLoader{}
)
