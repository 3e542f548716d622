package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/config"
	"github.com/BaSui01/leadflow/crew"
	"github.com/BaSui01/leadflow/tools"
	"github.com/BaSui01/leadflow/types"
)

// outputSchemas maps the schema names usable in task declarations to their
// builders.
var outputSchemas = map[string]func() *types.JSONSchema{
	"scored_lead":   types.ScoredLeadSchema,
	"personal_info": types.PersonalInfoSchema,
	"company_info":  types.CompanyInfoSchema,
	"lead_score":    types.LeadScoreSchema,
}

// BuildCrew instantiates a crew from its declarative definition. Tool names
// are resolved through the registry and schema names through the built-in
// schema set; unknown references are CONFIGURATION errors.
func BuildCrew(name string, def *config.CrewDefinition, invoker agent.Invoker, registry *tools.Registry, logger *zap.Logger, opts ...crew.Option) (*crew.Crew, error) {
	agents := make(map[string]*agent.Agent, len(def.Agents))
	for agentName, decl := range def.Agents {
		var toolset []agent.Tool
		if len(decl.Tools) > 0 {
			if registry == nil {
				return nil, types.NewError(types.ErrConfiguration,
					fmt.Sprintf("crew %s: agent %q declares tools but no registry is wired", name, agentName))
			}
			resolved, err := registry.Resolve(decl.Tools)
			if err != nil {
				return nil, err
			}
			toolset = resolved
		}
		a, err := agent.New(agent.Config{
			Name:      agentName,
			Role:      decl.Role,
			Goal:      decl.Goal,
			Backstory: decl.Backstory,
		}, invoker, toolset, logger)
		if err != nil {
			return nil, err
		}
		agents[agentName] = a
	}

	crewTasks := make([]*crew.Task, 0, len(def.TaskOrder))
	for _, taskName := range def.TaskOrder {
		decl := def.Tasks[taskName]
		task := &crew.Task{
			Name:           taskName,
			Description:    decl.Description,
			ExpectedOutput: decl.ExpectedOutput,
			Agent:          agents[decl.Agent],
			Context:        decl.Context,
		}
		if decl.OutputSchema != "" {
			build, ok := outputSchemas[decl.OutputSchema]
			if !ok {
				return nil, types.NewError(types.ErrConfiguration,
					fmt.Sprintf("crew %s: task %q references unknown schema %q", name, taskName, decl.OutputSchema)).
					WithTask(taskName)
			}
			task.OutputSchema = build()
		}
		crewTasks = append(crewTasks, task)
	}

	opts = append([]crew.Option{crew.WithLogger(logger)}, opts...)
	return crew.New(name, crewTasks, opts...)
}
