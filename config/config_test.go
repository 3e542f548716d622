package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/leadflow/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 70, cfg.Pipeline.ScoreThreshold)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "leadflow.db", cfg.Store.Path)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "leadflow", cfg.Metrics.Namespace)
}

func TestLoadFileOverlay(t *testing.T) {
	path := writeFile(t, "config.yaml", `
llm:
  model: test-model
  temperature: 0.7
pipeline:
  score_threshold: 80
  leads:
    - name: Joao Moura
      job_title: Director of Engineering
      company: Clearbit
      email: joao@clearbit.com
      use_case: Using AI Agent to do better data enrichment.
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 80, cfg.Pipeline.ScoreThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	require.Len(t, cfg.Pipeline.Leads, 1)
	assert.Equal(t, "Joao Moura", cfg.Pipeline.Leads[0].Name)
	assert.Equal(t, "joao@clearbit.com", cfg.Pipeline.Leads[0].Email)
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeFile(t, "config.yaml", `
llm:
  api_key: from-file
`)
	t.Setenv("LEADFLOW_LLM_API_KEY", "from-env")
	t.Setenv("LEADFLOW_STORE_PATH", ":memory:")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, ":memory:", cfg.Store.Path)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "llm: [unclosed")
		_, err := Load(path)
		assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	})

	t.Run("threshold out of range", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "pipeline:\n  score_threshold: 101\n")
		_, err := Load(path)
		assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	})
}

func TestLoadCrewDefinition(t *testing.T) {
	agents := writeFile(t, "agents.yaml", `
lead_data_agent:
  role: Lead Data Specialist
  goal: Collect personal and professional data about the lead
  backstory: You excel at researching people.
  tools: [web_search]
scoring_validation_agent:
  role: Scoring Validator
  goal: Verify lead scores against the criteria
`)
	tasks := writeFile(t, "tasks.yaml", `
lead_data_collection:
  description: "Collect data about {name} at {company}."
  expected_output: Personal and professional details.
  agent: lead_data_agent
scoring_validation:
  description: Validate the collected data and score the lead.
  expected_output: A validated lead score.
  agent: scoring_validation_agent
  context: [lead_data_collection]
  output_schema: scored_lead
`)

	def, err := LoadCrewDefinition(agents, tasks)
	require.NoError(t, err)

	assert.Equal(t, []string{"lead_data_collection", "scoring_validation"}, def.TaskOrder)
	assert.Equal(t, "Lead Data Specialist", def.Agents["lead_data_agent"].Role)
	assert.Equal(t, []string{"web_search"}, def.Agents["lead_data_agent"].Tools)
	assert.Equal(t, "scored_lead", def.Tasks["scoring_validation"].OutputSchema)
	assert.Equal(t, []string{"lead_data_collection"}, def.Tasks["scoring_validation"].Context)
}

func TestLoadCrewDefinitionErrors(t *testing.T) {
	agents := writeFile(t, "agents.yaml", `
lead_data_agent:
  role: Lead Data Specialist
  goal: Collect data
`)

	t.Run("undeclared agent", func(t *testing.T) {
		tasks := writeFile(t, "tasks.yaml", `
lead_data_collection:
  description: Collect data.
  agent: ghost_agent
`)
		_, err := LoadCrewDefinition(agents, tasks)
		require.Error(t, err)
		assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
		assert.Contains(t, err.Error(), "ghost_agent")
	})

	t.Run("undeclared context task", func(t *testing.T) {
		tasks := writeFile(t, "tasks.yaml", `
lead_data_collection:
  description: Collect data.
  agent: lead_data_agent
  context: [missing_task]
`)
		_, err := LoadCrewDefinition(agents, tasks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing_task")
	})

	t.Run("empty tasks", func(t *testing.T) {
		tasks := writeFile(t, "tasks.yaml", "")
		_, err := LoadCrewDefinition(agents, tasks)
		assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	})
}
