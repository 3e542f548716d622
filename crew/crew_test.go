package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/types"
)

// testAgent builds an agent whose capability is the given function.
func testAgent(t *testing.T, name string, fn func(req *agent.InvokeRequest) (string, error)) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Name: name, Role: name + " role"},
		agent.InvokerFunc(func(_ context.Context, req *agent.InvokeRequest) (string, error) {
			return fn(req)
		}), nil, nil)
	require.NoError(t, err)
	return a
}

// echoAgent returns a fixed output for every assignment.
func echoAgent(t *testing.T, name, output string) *agent.Agent {
	t.Helper()
	return testAgent(t, name, func(*agent.InvokeRequest) (string, error) {
		return output, nil
	})
}

func TestNew_ConfigurationErrors(t *testing.T) {
	a := echoAgent(t, "a", "out")

	tests := []struct {
		name  string
		tasks []*Task
	}{
		{"no tasks", nil},
		{"duplicate name", []*Task{
			{Name: "t", Agent: a},
			{Name: "t", Agent: a},
		}},
		{"missing agent", []*Task{{Name: "t"}}},
		{"undeclared predecessor", []*Task{
			{Name: "t", Agent: a, Context: []string{"ghost"}},
		}},
		{"cycle", []*Task{
			{Name: "x", Agent: a, Context: []string{"y"}},
			{Name: "y", Agent: a, Context: []string{"x"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("bad", tt.tasks)
			require.Error(t, err)
			assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
		})
	}
}

func TestKickoff_DependencyOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	leadData := testAgent(t, "lead_data", func(*agent.InvokeRequest) (string, error) {
		record("lead_data")
		return "personal facts", nil
	})
	culturalFit := testAgent(t, "cultural_fit", func(*agent.InvokeRequest) (string, error) {
		record("cultural_fit")
		return "culture facts", nil
	})
	scorer := testAgent(t, "scoring", func(req *agent.InvokeRequest) (string, error) {
		record("scoring_validation")
		// The sink must observe both completed predecessor outputs.
		assert.Contains(t, req.Context, "personal facts")
		assert.Contains(t, req.Context, "culture facts")
		return "final verdict", nil
	})

	c, err := New("lead_enrichment", []*Task{
		{Name: "lead_data", Description: "collect data", Agent: leadData},
		{Name: "cultural_fit", Description: "analyze fit", Agent: culturalFit},
		{Name: "scoring_validation", Description: "score", Agent: scorer,
			Context: []string{"lead_data", "cultural_fit"}},
	})
	require.NoError(t, err)

	out, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "final verdict", out.Raw)

	require.Len(t, order, 3)
	assert.Equal(t, "scoring_validation", order[2])
}

func TestKickoff_IndependentTasksRunConcurrently(t *testing.T) {
	// Each of the two independent tasks blocks until the other has
	// started. The kickoff can only finish if they truly overlap.
	started := make(chan string, 2)
	release := make(chan struct{})
	var once sync.Once

	barrier := func(name string) func(*agent.InvokeRequest) (string, error) {
		return func(*agent.InvokeRequest) (string, error) {
			started <- name
			once.Do(func() {
				go func() {
					<-started
					<-started
					close(release)
				}()
			})
			select {
			case <-release:
				return name + " done", nil
			case <-time.After(5 * time.Second):
				return "", fmt.Errorf("%s never saw its sibling start", name)
			}
		}
	}

	c, err := New("parallel", []*Task{
		{Name: "lead_data", Agent: testAgent(t, "a", barrier("lead_data"))},
		{Name: "cultural_fit", Agent: testAgent(t, "b", barrier("cultural_fit"))},
		{Name: "sink", Agent: echoAgent(t, "c", "done"),
			Context: []string{"lead_data", "cultural_fit"}},
	})
	require.NoError(t, err)

	out, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Raw)
}

func TestKickoff_ContextOrderDoesNotChangeResult(t *testing.T) {
	build := func(ctxOrder []string) *Crew {
		scorer := testAgent(t, "scoring", func(req *agent.InvokeRequest) (string, error) {
			return `{"score": 80, "scoring_criteria": ["fit"]}`, nil
		})
		c, err := New("lead_enrichment", []*Task{
			{Name: "lead_data", Agent: echoAgent(t, "a", "personal facts")},
			{Name: "cultural_fit", Agent: echoAgent(t, "b", "culture facts")},
			{Name: "scoring_validation", Agent: scorer, Context: ctxOrder,
				OutputSchema: types.LeadScoreSchema()},
		})
		require.NoError(t, err)
		return c
	}

	out1, err := build([]string{"lead_data", "cultural_fit"}).Kickoff(context.Background(), nil)
	require.NoError(t, err)
	out2, err := build([]string{"cultural_fit", "lead_data"}).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	var s1, s2 types.LeadScore
	require.NoError(t, out1.Decode(&s1))
	require.NoError(t, out2.Decode(&s2))
	assert.Equal(t, s1, s2)
}

func TestKickoff_SchemaViolationFailsRun(t *testing.T) {
	c, err := New("lead_enrichment", []*Task{
		{Name: "scoring_validation",
			Agent:        echoAgent(t, "scorer", `{"score": 101, "scoring_criteria": ["fit"]}`),
			OutputSchema: types.LeadScoreSchema()},
	})
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrSchemaValidation, types.GetErrorCode(err))

	var fe *types.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "scoring_validation", fe.Task)
}

func TestKickoff_InputInterpolation(t *testing.T) {
	var seen string
	a := testAgent(t, "agent", func(req *agent.InvokeRequest) (string, error) {
		seen = req.Instructions
		return "ok", nil
	})

	c, err := New("interp", []*Task{
		{Name: "t", Description: "Research {name} who works at {company}", Agent: a},
	})
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), map[string]any{
		"name":    "Anne Pernet",
		"company": "Veolia",
	})
	require.NoError(t, err)
	assert.Equal(t, "Research Anne Pernet who works at Veolia", seen)
}

func TestOutput_Decode(t *testing.T) {
	payload := map[string]any{
		"personal_info": map[string]any{"name": "Anne", "job_title": "CRM Director", "role_relevance": 8},
		"company_info":  map[string]any{"company_name": "Veolia", "industry": "Utilities", "company_size": 1000, "market_presence": 9},
		"lead_score":    map[string]any{"score": 85, "scoring_criteria": []string{"fit"}},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	c, err := New("enrichment", []*Task{
		{Name: "scoring_validation", Agent: echoAgent(t, "scorer", string(raw)),
			OutputSchema: types.ScoredLeadSchema()},
	})
	require.NoError(t, err)

	out, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)

	var lead types.ScoredLead
	require.NoError(t, out.Decode(&lead))
	assert.Equal(t, 85, lead.LeadScore.Score)
	assert.NoError(t, lead.Validate())
}
