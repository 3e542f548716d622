package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/types"
)

// Tool is an executable capability an agent may call (web search, scraping).
// Parameters describes the tool's argument shape so capability
// implementations can declare it to providers that support tool use.
type Tool interface {
	Name() string
	Description() string
	Parameters() *types.JSONSchema
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// InvokeRequest carries everything a reasoning capability needs for one
// unit of work. Tools are handed over executable: the capability decides
// when to call them and feeds their results back into its own reasoning.
type InvokeRequest struct {
	Role           string
	Goal           string
	Backstory      string
	Instructions   string
	ExpectedOutput string
	Context        string
	Tools          []Tool
	ResponseSchema *types.JSONSchema
}

// Invoker is the opaque reasoning capability. Implementations may be
// non-deterministic; the core treats the returned text as untrusted until
// schema validation has run.
type Invoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req *InvokeRequest) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	return f(ctx, req)
}

// Config declares an agent's identity and toolset.
type Config struct {
	Name      string
	Role      string
	Goal      string
	Backstory string
}

// Agent binds a role declaration to a reasoning capability.
type Agent struct {
	name      string
	role      string
	goal      string
	backstory string
	tools     []Tool
	invoker   Invoker
	logger    *zap.Logger
}

// New creates an Agent. The invoker is required; tools are optional.
func New(cfg Config, invoker Invoker, tools []Tool, logger *zap.Logger) (*Agent, error) {
	if invoker == nil {
		return nil, types.NewError(types.ErrConfiguration, "agent "+cfg.Name+": invoker is required")
	}
	if cfg.Role == "" {
		return nil, types.NewError(types.ErrConfiguration, "agent "+cfg.Name+": role is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		name:      cfg.Name,
		role:      cfg.Role,
		goal:      cfg.Goal,
		backstory: cfg.Backstory,
		tools:     tools,
		invoker:   invoker,
		logger:    logger.With(zap.String("component", "agent"), zap.String("agent", cfg.Name)),
	}, nil
}

// Name returns the agent's declared name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's role description.
func (a *Agent) Role() string { return a.role }

// Tools returns the agent's executable toolset for capability
// implementations that support tool use.
func (a *Agent) Tools() []Tool { return a.tools }

// Assignment is one unit of reasoning work handed to an agent.
type Assignment struct {
	Instructions   string
	ExpectedOutput string
	Context        string
	ResponseSchema *types.JSONSchema
}

// Execute runs one assignment through the capability and returns the raw
// output. Capability failures, including timeouts, surface as CAPABILITY
// errors.
func (a *Agent) Execute(ctx context.Context, asg Assignment) (string, error) {
	req := &InvokeRequest{
		Role:           a.role,
		Goal:           a.goal,
		Backstory:      a.backstory,
		Instructions:   asg.Instructions,
		ExpectedOutput: asg.ExpectedOutput,
		Context:        asg.Context,
		ResponseSchema: asg.ResponseSchema,
		Tools:          a.tools,
	}

	a.logger.Debug("invoking capability",
		zap.Int("tools", len(req.Tools)),
		zap.Bool("structured", req.ResponseSchema != nil),
	)

	raw, err := a.invoker.Invoke(ctx, req)
	if err != nil {
		return "", types.NewError(types.ErrCapability, "agent "+a.name+": invoke failed").WithCause(err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", types.NewError(types.ErrCapability, "agent "+a.name+": capability returned empty output")
	}

	a.logger.Debug("capability responded", zap.Int("bytes", len(raw)))
	return raw, nil
}
