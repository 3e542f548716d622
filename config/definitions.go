package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/leadflow/types"
)

// AgentDefinition declares an agent role in YAML.
type AgentDefinition struct {
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
}

// TaskDefinition declares a crew task in YAML. OutputSchema names a
// registered schema; only sink tasks normally carry one.
type TaskDefinition struct {
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Agent          string   `yaml:"agent"`
	Context        []string `yaml:"context"`
	OutputSchema   string   `yaml:"output_schema"`
}

// CrewDefinition pairs agent declarations with the ordered task list that
// references them.
type CrewDefinition struct {
	Agents map[string]AgentDefinition
	// TaskOrder preserves the YAML declaration order of Tasks.
	TaskOrder []string
	Tasks     map[string]TaskDefinition
}

// LoadCrewDefinition reads the agents and tasks files and checks that every
// task references a declared agent and that context entries are declared
// tasks.
func LoadCrewDefinition(agentsPath, tasksPath string) (*CrewDefinition, error) {
	agents := map[string]AgentDefinition{}
	if err := loadYAML(agentsPath, &agents); err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("no agents declared in %s", agentsPath))
	}

	order, tasks, err := loadTasks(tasksPath)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("no tasks declared in %s", tasksPath))
	}

	for _, name := range order {
		task := tasks[name]
		if _, ok := agents[task.Agent]; !ok {
			return nil, types.NewError(types.ErrConfiguration,
				fmt.Sprintf("task %q references undeclared agent %q", name, task.Agent)).
				WithTask(name)
		}
		for _, dep := range task.Context {
			if _, ok := tasks[dep]; !ok {
				return nil, types.NewError(types.ErrConfiguration,
					fmt.Sprintf("task %q context references undeclared task %q", name, dep)).
					WithTask(name)
			}
		}
	}

	return &CrewDefinition{Agents: agents, TaskOrder: order, Tasks: tasks}, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewError(types.ErrConfiguration, "read definition file").WithCause(err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return types.NewError(types.ErrConfiguration,
			fmt.Sprintf("parse %s", path)).WithCause(err)
	}
	return nil
}

// loadTasks decodes the tasks file keeping the declaration order, which the
// map type would otherwise lose.
func loadTasks(path string) ([]string, map[string]TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, types.NewError(types.ErrConfiguration, "read definition file").WithCause(err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("parse %s", path)).WithCause(err)
	}
	if len(doc.Content) == 0 {
		return nil, map[string]TaskDefinition{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("%s: top level must be a mapping of task names", path))
	}

	order := make([]string, 0, len(root.Content)/2)
	tasks := make(map[string]TaskDefinition, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var def TaskDefinition
		if err := root.Content[i+1].Decode(&def); err != nil {
			return nil, nil, types.NewError(types.ErrConfiguration,
				fmt.Sprintf("parse task %q", name)).WithCause(err)
		}
		if _, dup := tasks[name]; dup {
			return nil, nil, types.NewError(types.ErrConfiguration,
				fmt.Sprintf("duplicate task %q", name)).WithTask(name)
		}
		order = append(order, name)
		tasks[name] = def
	}
	return order, tasks, nil
}
