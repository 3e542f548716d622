package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/types"
)

// Task is one named unit of reasoning work inside a crew.
type Task struct {
	// Name uniquely identifies the task within its crew.
	Name string
	// Description is the task instruction text. Placeholders of the form
	// {key} are interpolated from the kickoff input.
	Description string
	// ExpectedOutput describes the desired result to the capability.
	ExpectedOutput string
	// Agent performs the work.
	Agent *agent.Agent
	// Context lists predecessor task names whose outputs become part of
	// this task's input context, in the declared order.
	Context []string
	// OutputSchema, when set, binds the task's raw output to a structured
	// contract. Output that does not satisfy it fails the whole per-item
	// run.
	OutputSchema *types.JSONSchema
}

// Output is the result of one crew run for one input item.
type Output struct {
	// Raw is the sink task's raw output.
	Raw string
	// TaskOutputs holds every task's raw output by task name.
	TaskOutputs map[string]string

	schema *types.JSONSchema
}

// Decode parses the sink output into out, re-applying the sink schema.
func (o *Output) Decode(out any) error {
	return types.Parse(o.Raw, o.schema, out)
}

// Crew is a fixed set of tasks executed in dependency order.
type Crew struct {
	name        string
	tasks       []*Task
	byName      map[string]*Task
	levels      [][]*Task
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// Option configures a Crew.
type Option func(*Crew)

// WithConcurrency bounds the number of per-item runs KickoffForEach
// executes in parallel.
func WithConcurrency(n int) Option {
	return func(c *Crew) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crew) { c.logger = logger }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crew) { c.metrics = m }
}

// New creates a Crew from static task declarations. The task set is
// validated up front: duplicate names, missing agents, references to
// undeclared predecessors, and dependency cycles are all CONFIGURATION
// errors, surfaced before anything runs.
func New(name string, tasks []*Task, opts ...Option) (*Crew, error) {
	if len(tasks) == 0 {
		return nil, types.NewError(types.ErrConfiguration, "crew "+name+": no tasks declared")
	}

	c := &Crew{
		name:        name,
		tasks:       tasks,
		byName:      make(map[string]*Task, len(tasks)),
		concurrency: 8,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "crew"), zap.String("crew", name))

	for _, task := range tasks {
		if task.Name == "" {
			return nil, types.NewError(types.ErrConfiguration, "crew "+name+": task with empty name")
		}
		if _, dup := c.byName[task.Name]; dup {
			return nil, types.NewError(types.ErrConfiguration,
				"crew "+name+": duplicate task name "+task.Name)
		}
		if task.Agent == nil {
			return nil, types.NewError(types.ErrConfiguration,
				"crew "+name+": task "+task.Name+" has no agent")
		}
		c.byName[task.Name] = task
	}

	for _, task := range tasks {
		for _, dep := range task.Context {
			if _, ok := c.byName[dep]; !ok {
				return nil, types.NewError(types.ErrConfiguration,
					"crew "+name+": task "+task.Name+" references undeclared predecessor "+dep)
			}
		}
	}

	levels, err := topoLevels(name, tasks)
	if err != nil {
		return nil, err
	}
	c.levels = levels

	return c, nil
}

// Name returns the crew's name.
func (c *Crew) Name() string { return c.name }

// topoLevels groups tasks into dependency levels via Kahn's algorithm.
// Tasks in the same level have no dependency relation and may run
// concurrently. Leftover tasks mean a cycle.
func topoLevels(name string, tasks []*Task) ([][]*Task, error) {
	indegree := make(map[string]int, len(tasks))
	for _, t := range tasks {
		indegree[t.Name] = len(t.Context)
	}

	placed := make(map[string]bool, len(tasks))
	var levels [][]*Task

	for len(placed) < len(tasks) {
		var level []*Task
		for _, t := range tasks { // declaration order keeps levels deterministic
			if !placed[t.Name] && indegree[t.Name] == 0 {
				level = append(level, t)
			}
		}
		if len(level) == 0 {
			return nil, types.NewError(types.ErrConfiguration,
				"crew "+name+": dependency cycle among tasks")
		}
		for _, t := range level {
			placed[t.Name] = true
		}
		for _, t := range tasks {
			if placed[t.Name] {
				continue
			}
			for _, dep := range t.Context {
				if placedInLevel(level, dep) {
					indegree[t.Name]--
				}
			}
		}
		levels = append(levels, level)
	}

	return levels, nil
}

func placedInLevel(level []*Task, name string) bool {
	for _, t := range level {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Kickoff runs every task in dependency order for a single input item and
// returns the sink task's output. Independent tasks within a level execute
// concurrently; a level only starts once the previous level is fully done.
func (c *Crew) Kickoff(ctx context.Context, input map[string]any) (*Output, error) {
	start := time.Now()
	results := make(map[string]string, len(c.tasks))

	c.logger.Debug("crew kickoff", zap.Int("tasks", len(c.tasks)))

	for _, level := range c.levels {
		outputs := make([]string, len(level))
		g, gctx := errgroup.WithContext(ctx)

		for i, task := range level {
			i, task := i, task
			g.Go(func() error {
				out, err := c.executeTask(gctx, task, input, results)
				if err != nil {
					return err
				}
				outputs[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.observeKickoff("failed")
			return nil, err
		}
		for i, task := range level {
			results[task.Name] = outputs[i]
		}
	}

	sink := c.tasks[len(c.tasks)-1]
	c.observeKickoff("success")
	c.logger.Debug("crew kickoff completed", zap.Duration("duration", time.Since(start)))

	return &Output{
		Raw:         results[sink.Name],
		TaskOutputs: results,
		schema:      sink.OutputSchema,
	}, nil
}

// executeTask runs one task: interpolate the declaration, gather predecessor
// outputs, invoke the agent, and enforce the output schema if declared.
func (c *Crew) executeTask(ctx context.Context, task *Task, input map[string]any, results map[string]string) (string, error) {
	start := time.Now()

	var contextParts []string
	for _, dep := range task.Context {
		contextParts = append(contextParts,
			fmt.Sprintf("## Output from %s\n%s", dep, results[dep]))
	}

	raw, err := task.Agent.Execute(ctx, agent.Assignment{
		Instructions:   interpolate(task.Description, input),
		ExpectedOutput: interpolate(task.ExpectedOutput, input),
		Context:        strings.Join(contextParts, "\n\n"),
		ResponseSchema: task.OutputSchema,
	})
	if err != nil {
		c.observeTask(task.Name, "failed", time.Since(start))
		return "", withTask(err, task.Name)
	}

	if task.OutputSchema != nil {
		var decoded map[string]any
		if err := types.Parse(raw, task.OutputSchema, &decoded); err != nil {
			c.observeTask(task.Name, "invalid", time.Since(start))
			return "", withTask(err, task.Name)
		}
	}

	c.observeTask(task.Name, "done", time.Since(start))
	c.logger.Debug("task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return raw, nil
}

func (c *Crew) observeTask(task, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveCrewTask(c.name, task, status, d)
	}
}

func (c *Crew) observeKickoff(status string) {
	if c.metrics != nil {
		c.metrics.ObserveCrewKickoff(c.name, status)
	}
}

// withTask stamps the task name onto framework errors.
func withTask(err error, task string) error {
	if e, ok := err.(*types.Error); ok && e.Task == "" {
		return e.WithTask(task)
	}
	return fmt.Errorf("task %s: %w", task, err)
}

// interpolate replaces {key} placeholders with values from input.
func interpolate(s string, input map[string]any) string {
	if len(input) == 0 || !strings.Contains(s, "{") {
		return s
	}
	for key, value := range input {
		s = strings.ReplaceAll(s, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return s
}
