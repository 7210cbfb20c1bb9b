package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// Scenario defines a lifecycle test scenario: a graph configuration, a
// sequence of steps driven against a fake engine, and assertions on what
// the engine and the hooks observed.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is an optional CUE file holding graph definitions. Relative
	// paths are resolved against the scenario file location.
	Spec string `yaml:"spec,omitempty"`

	// Graph names the definition in Spec to mount. Required with Spec.
	Graph string `yaml:"graph,omitempty"`

	// Props is the inline initial configuration, used when Spec is empty.
	Props PropsFixture `yaml:"props,omitempty"`

	// Gated makes every render block until a release_render or
	// fail_render step resolves it.
	Gated bool `yaml:"gated,omitempty"`

	// FailConstruct makes the engine factory fail.
	FailConstruct bool `yaml:"fail_construct,omitempty"`

	// LatestReadyOnly skips OnReady for superseded pushes.
	LatestReadyOnly bool `yaml:"latest_ready_only,omitempty"`

	// Steps are executed in order. The harness waits for the bridge to go
	// quiet after each step.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// PropsFixture is a compact, YAML-friendly description of bridge.Props.
// Every declared event gets a handler that the harness counts.
type PropsFixture struct {
	ID         string                  `yaml:"id,omitempty"`
	Width      int                     `yaml:"width,omitempty"`
	Height     int                     `yaml:"height,omitempty"`
	Background string                  `yaml:"background,omitempty"`
	AutoFit    string                  `yaml:"auto_fit,omitempty"`
	Layout     string                  `yaml:"layout,omitempty"`
	Behaviors  []string                `yaml:"behaviors,omitempty"`
	Nodes      []string                `yaml:"nodes,omitempty"`
	Edges      []EdgeFixture           `yaml:"edges,omitempty"`
	Events     map[string]EventFixture `yaml:"events,omitempty"`
}

// EdgeFixture connects two nodes.
type EdgeFixture struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// EventFixture declares an event subscription.
type EventFixture struct {
	Once bool `yaml:"once,omitempty"`
}

// Props converts the fixture into bridge.Props. handler builds the handler
// for each declared event.
func (f PropsFixture) Props(handler func(event string) engine.Handler) bridge.Props {
	p := bridge.Props{
		ID:         f.ID,
		Width:      f.Width,
		Height:     f.Height,
		Background: f.Background,
		AutoFit:    f.AutoFit,
		Data:       f.data(),
	}
	if f.Layout != "" {
		p.Layout = &ir.LayoutSpec{Type: f.Layout}
	}
	for _, b := range f.Behaviors {
		p.Behaviors = append(p.Behaviors, ir.Behavior(b))
	}
	if len(f.Events) > 0 && handler != nil {
		p.Events = make(bridge.EventMap, len(f.Events))
		for name, ev := range f.Events {
			h := handler(name)
			if ev.Once {
				p.Events[name] = bridge.Once(h)
			} else {
				p.Events[name] = bridge.HandlerFunc(h)
			}
		}
	}
	return p
}

// Options returns the engine options the fixture describes.
func (f PropsFixture) Options() ir.Options {
	return bridge.Merge(f.Props(nil), f.ID).Options
}

func (f PropsFixture) data() ir.GraphData {
	data := ir.EmptyGraphData()
	for _, id := range f.Nodes {
		data.Nodes = append(data.Nodes, ir.NodeData{ID: id})
	}
	for _, e := range f.Edges {
		data.Edges = append(data.Edges, ir.EdgeData{Source: e.Source, Target: e.Target})
	}
	return data
}

// Step is one action driven against the controller or its engine.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Props is the new configuration for set_props and reconfigure.
	Props *PropsFixture `yaml:"props,omitempty"`

	// Event and Target describe the event fired by emit.
	Event  string `yaml:"event,omitempty"`
	Target string `yaml:"target,omitempty"`

	// Times repeats emit. Defaults to 1.
	Times int `yaml:"times,omitempty"`

	// Engine selects the engine for emit, release_render and fail_render
	// by construction index. Defaults to the most recent engine.
	Engine *int `yaml:"engine,omitempty"`

	// Outside makes use look the graph up on a context with no provider.
	Outside bool `yaml:"outside,omitempty"`

	// Message is the render error used by fail_render.
	Message string `yaml:"message,omitempty"`

	// Error is the expected error name (see ErrorNames). Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`
}

// Step actions.
const (
	ActionMount         = "mount"
	ActionSetProps      = "set_props"
	ActionEmit          = "emit"
	ActionReconfigure   = "reconfigure"
	ActionReleaseRender = "release_render"
	ActionFailRender    = "fail_render"
	ActionUnmount       = "unmount"
	ActionUse           = "use"
)

// Assertion validates the engine call log or the trace after the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the engine operation counted by call_count.
	Op string `yaml:"op,omitempty"`

	// Ops is the expected order for call_order. Entries are "op" or
	// "op:event". Intervening calls are allowed.
	Ops []string `yaml:"ops,omitempty"`

	// Event is the handler counted by handler_count.
	Event string `yaml:"event,omitempty"`

	// Hook is the hook counted by hook_count (init, ready or destroy).
	Hook string `yaml:"hook,omitempty"`

	// Kind is the lifecycle event kind counted by lifecycle_count.
	Kind string `yaml:"kind,omitempty"`

	// Engine restricts call_count and call_order to one engine by
	// construction index. call_count defaults to every engine and
	// call_order to the first.
	Engine *int `yaml:"engine,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertCallCount      = "call_count"
	AssertCallOrder      = "call_order"
	AssertHandlerCount   = "handler_count"
	AssertReadyCount     = "ready_count"
	AssertHookCount      = "hook_count"
	AssertEngineCount    = "engine_count"
	AssertLifecycleCount = "lifecycle_count"
)

// LoadScenario reads and parses a scenario YAML file. A relative Spec path
// is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// a relative Spec path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Spec != "" {
		if s.Graph == "" {
			return fmt.Errorf("graph is required with spec")
		}
		if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.Spec)
		}
	} else if s.Graph != "" {
		return fmt.Errorf("graph %q given without spec", s.Graph)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionMount, ActionUnmount, ActionUse, ActionReleaseRender, ActionFailRender:
	case ActionSetProps, ActionReconfigure:
		if s.Props == nil {
			return fmt.Errorf("steps[%d]: props is required for %s", index, s.Action)
		}
	case ActionEmit:
		if s.Event == "" {
			return fmt.Errorf("steps[%d]: event is required for emit", index)
		}
		if s.Times < 0 {
			return fmt.Errorf("steps[%d]: times must be non-negative", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	if s.Error != "" {
		if _, ok := ErrorNames[s.Error]; !ok {
			return fmt.Errorf("steps[%d]: unknown error name %q", index, s.Error)
		}
	}
	if s.Engine != nil && *s.Engine < 0 {
		return fmt.Errorf("steps[%d]: engine index must be non-negative", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertCallCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for call_count", index)
		}
	case AssertCallOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for call_order", index)
		}
	case AssertHandlerCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for handler_count", index)
		}
	case AssertHookCount:
		switch a.Hook {
		case HookInit, HookReady, HookDestroy:
		default:
			return fmt.Errorf("assertions[%d]: hook must be init, ready or destroy", index)
		}
	case AssertLifecycleCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for lifecycle_count", index)
		}
	case AssertReadyCount, AssertEngineCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
