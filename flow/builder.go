package flow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/types"
)

// Handler is a stage body. It receives the flow state for reads and the
// stage's activation input, and returns the stage's output.
type Handler func(ctx context.Context, state *State, input any) (any, error)

// Combinator decides when a stage with multiple predecessors activates.
type Combinator string

const (
	// CombinatorAnd activates after every predecessor is done.
	CombinatorAnd Combinator = "and"
	// CombinatorOr activates after the first predecessor is done;
	// later arrivals do not re-trigger the stage.
	CombinatorOr Combinator = "or"
)

// Trigger declares a stage's predecessors and activation combinator.
type Trigger struct {
	predecessors []string
	combinator   Combinator
}

// On listens to a single predecessor stage.
func On(name string) Trigger {
	return Trigger{predecessors: []string{name}, combinator: CombinatorAnd}
}

// AllOf activates once every named stage is done.
func AllOf(names ...string) Trigger {
	return Trigger{predecessors: names, combinator: CombinatorAnd}
}

// AnyOf activates on the first of the named stages to finish.
func AnyOf(names ...string) Trigger {
	return Trigger{predecessors: names, combinator: CombinatorOr}
}

// Builder assembles a Flow from static stage declarations.
type Builder struct {
	name    string
	stages  []*stage
	returns string
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewBuilder creates a builder for a named flow.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, logger: zap.NewNop()}
}

// WithLogger sets a custom logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics attaches a metrics collector.
func (b *Builder) WithMetrics(m *metrics.Collector) *Builder {
	b.metrics = m
	return b
}

// Start declares a stage with no predecessors; it runs as soon as the flow
// kicks off.
func (b *Builder) Start(name string, h Handler) *Builder {
	b.stages = append(b.stages, &stage{name: name, handler: h})
	return b
}

// Listen declares a stage activated by the given trigger.
func (b *Builder) Listen(name string, trigger Trigger, h Handler) *Builder {
	b.stages = append(b.stages, &stage{
		name:         name,
		predecessors: trigger.predecessors,
		combinator:   trigger.combinator,
		handler:      h,
	})
	return b
}

// Returns names the stage whose output Kickoff reports as the flow result.
// Defaults to the last declared terminal stage (one nothing listens to).
func (b *Builder) Returns(name string) *Builder {
	b.returns = name
	return b
}

// Build validates the stage graph and creates the Flow. Duplicate names,
// unknown predecessors, missing handlers, cycles, and the absence of a
// start stage are all CONFIGURATION errors.
func (b *Builder) Build() (*Flow, error) {
	if len(b.stages) == 0 {
		return nil, types.NewError(types.ErrConfiguration, "flow "+b.name+": no stages declared")
	}

	byName := make(map[string]*stage, len(b.stages))
	for _, st := range b.stages {
		if st.name == "" {
			return nil, types.NewError(types.ErrConfiguration, "flow "+b.name+": stage with empty name")
		}
		if st.handler == nil {
			return nil, types.NewError(types.ErrConfiguration,
				"flow "+b.name+": stage "+st.name+" has no handler")
		}
		if _, dup := byName[st.name]; dup {
			return nil, types.NewError(types.ErrConfiguration,
				"flow "+b.name+": duplicate stage name "+st.name)
		}
		byName[st.name] = st
	}

	hasStart := false
	listeners := make(map[string][]*stage)
	for _, st := range b.stages {
		if len(st.predecessors) == 0 {
			hasStart = true
			continue
		}
		for _, pred := range st.predecessors {
			if _, ok := byName[pred]; !ok {
				return nil, types.NewError(types.ErrConfiguration,
					"flow "+b.name+": stage "+st.name+" listens to undeclared stage "+pred)
			}
			listeners[pred] = append(listeners[pred], st)
		}
	}
	if !hasStart {
		return nil, types.NewError(types.ErrConfiguration, "flow "+b.name+": no start stage")
	}

	if err := b.detectCycles(byName); err != nil {
		return nil, err
	}

	returns := b.returns
	if returns == "" {
		// Default terminal: the last declared stage nothing listens to.
		for _, st := range b.stages {
			if len(listeners[st.name]) == 0 {
				returns = st.name
			}
		}
	} else if _, ok := byName[returns]; !ok {
		return nil, types.NewError(types.ErrConfiguration,
			"flow "+b.name+": returns references undeclared stage "+returns)
	}

	f := &Flow{
		name:      b.name,
		stages:    b.stages,
		byName:    byName,
		listeners: listeners,
		returns:   returns,
		logger:    b.logger.With(zap.String("component", "flow"), zap.String("flow", b.name)),
		metrics:   b.metrics,
	}

	f.logger.Info("flow built",
		zap.Int("stages", len(b.stages)),
		zap.String("returns", returns),
	)
	return f, nil
}

// detectCycles runs DFS over the listen edges (predecessor -> listener).
func (b *Builder) detectCycles(byName map[string]*stage) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(st *stage) bool
	visit = func(st *stage) bool {
		visited[st.name] = true
		recStack[st.name] = true
		for _, other := range b.stages {
			if !listensTo(other, st.name) {
				continue
			}
			if !visited[other.name] {
				if visit(other) {
					return true
				}
			} else if recStack[other.name] {
				return true
			}
		}
		recStack[st.name] = false
		return false
	}

	for _, st := range b.stages {
		if !visited[st.name] {
			if visit(st) {
				return types.NewError(types.ErrConfiguration,
					"flow "+b.name+": cycle detected involving stage "+st.name)
			}
		}
	}
	return nil
}

func listensTo(st *stage, pred string) bool {
	for _, p := range st.predecessors {
		if p == pred {
			return true
		}
	}
	return false
}
