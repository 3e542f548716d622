package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/crew"
	"github.com/BaSui01/leadflow/flow"
	"github.com/BaSui01/leadflow/types"
)

var testLeads = []types.LeadRecord{
	{Name: "Anne Pernet", JobTitle: "Directrice CRM", Company: "Veolia Environnement",
		Email: "anne@veolia.fr", UseCase: "Using AI Agent to do better data enrichment."},
	{Name: "Bob Stone", JobTitle: "Intern", Company: "Tiny Co",
		Email: "bob@tiny.co", UseCase: "Curious about AI."},
}

// scoredJSON renders a schema-valid scoring result for one lead.
func scoredJSON(name, company string, score int) string {
	result := map[string]any{
		"personal_info": map[string]any{
			"name":           name,
			"job_title":      "Directrice CRM",
			"role_relevance": 8,
		},
		"company_info": map[string]any{
			"company_name":    company,
			"industry":        "Utilities",
			"company_size":    1000,
			"market_presence": 7,
		},
		"lead_score": map[string]any{
			"score":            score,
			"scoring_criteria": []string{"role relevance", "market presence"},
		},
	}
	data, _ := json.Marshal(result)
	return string(data)
}

// newEnrichmentCrew builds a two-task crew whose validation sink emits a
// score looked up by lead name; names missing from scores yield raw text
// that fails schema validation.
func newEnrichmentCrew(t *testing.T, scores map[string]int) *crew.Crew {
	t.Helper()
	invoker := agent.InvokerFunc(func(_ context.Context, req *agent.InvokeRequest) (string, error) {
		if req.ResponseSchema == nil {
			return "research notes", nil
		}
		for name, score := range scores {
			if strings.Contains(req.Instructions, name) {
				company := "Veolia Environnement"
				if name == "Bob Stone" {
					company = "Tiny Co"
				}
				return scoredJSON(name, company, score), nil
			}
		}
		return "not json at all", nil
	})

	researcher := newTestAgent(t, "lead_data_agent", invoker)
	validator := newTestAgent(t, "scoring_validation_agent", invoker)

	c, err := crew.New("lead_enrichment", []*crew.Task{
		{
			Name:        "lead_data_collection",
			Description: "Research {name} at {company}.",
			Agent:       researcher,
		},
		{
			Name:         "lead_scoring_and_validation",
			Description:  "Score {name} from {company}.",
			Agent:        validator,
			Context:      []string{"lead_data_collection"},
			OutputSchema: types.ScoredLeadSchema(),
		},
	})
	require.NoError(t, err)
	return c
}

func newEmailCrew(t *testing.T) *crew.Crew {
	t.Helper()
	invoker := agent.InvokerFunc(func(_ context.Context, req *agent.InvokeRequest) (string, error) {
		return "Draft: " + req.Instructions, nil
	})
	writer := newTestAgent(t, "email_writer_agent", invoker)

	c, err := crew.New("email_writing", []*crew.Task{
		{
			Name:        "email_drafting",
			Description: "Write to {name} at {company}, score {score}.",
			Agent:       writer,
		},
	})
	require.NoError(t, err)
	return c
}

func newTestAgent(t *testing.T, name string, invoker agent.Invoker) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Name: name, Role: name}, invoker, nil, zap.NewNop())
	require.NoError(t, err)
	return a
}

// fakeStore records SaveScores calls.
type fakeStore struct {
	mu     sync.Mutex
	runID  string
	scores []types.ScoredLead
}

func (s *fakeStore) SaveScores(_ context.Context, runID string, scores []types.ScoredLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.scores = append(s.scores, scores...)
	return nil
}

func (s *fakeStore) ScoresForRun(context.Context, string) ([]types.ScoredLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores, nil
}

func (s *fakeStore) Close() error { return nil }

// fakeSender records what was sent.
type fakeSender struct {
	mu    sync.Mutex
	calls int
	sent  []types.EmailDraft
}

func (s *fakeSender) Send(_ context.Context, drafts []types.EmailDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sent = append(s.sent, drafts...)
	return nil
}

func newTestPipeline(t *testing.T, leads []types.LeadRecord, scores map[string]int) (*Pipeline, *fakeStore, *fakeSender) {
	t.Helper()
	st := &fakeStore{}
	sender := &fakeSender{}
	p, err := New(Options{
		Source:     NewStaticSource(leads),
		Enrichment: newEnrichmentCrew(t, scores),
		Email:      newEmailCrew(t),
		Store:      st,
		Sender:     sender,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return p, st, sender
}

func TestKickoffQualifiedLead(t *testing.T) {
	p, st, sender := newTestPipeline(t, testLeads,
		map[string]int{"Anne Pernet": 85, "Bob Stone": 40})

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)

	// Only Anne beats the threshold.
	require.Len(t, drafts, 1)
	assert.Equal(t, "Anne Pernet", drafts[0].LeadName)
	assert.Equal(t, "anne@veolia.fr", drafts[0].To)
	assert.Contains(t, drafts[0].Body, "Anne Pernet")
	assert.Contains(t, drafts[0].Body, "85")

	// Both scores were stored regardless of the filter.
	require.Len(t, st.scores, 2)
	assert.Equal(t, "Anne Pernet", st.scores[0].PersonalInfo.Name)
	assert.Equal(t, 85, st.scores[0].LeadScore.Score)
	assert.Equal(t, "Bob Stone", st.scores[1].PersonalInfo.Name)
	assert.NotEmpty(t, st.runID)

	assert.Equal(t, 1, sender.calls)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "anne@veolia.fr", sender.sent[0].To)
}

func TestKickoffNoQualifiedLeads(t *testing.T) {
	p, st, sender := newTestPipeline(t, testLeads,
		map[string]int{"Anne Pernet": 60, "Bob Stone": 40})

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// Scores still stored; downstream stages ran with empty input.
	assert.Len(t, st.scores, 2)
	assert.Equal(t, 1, sender.calls)
	assert.Empty(t, sender.sent)

	for _, stage := range []string{StageFetch, StageScore, StageStore, StageFilter, StageWrite, StageSend} {
		status, ok := p.Status(stage)
		require.True(t, ok, stage)
		assert.Equal(t, flow.StageDone, status, stage)
	}
}

func TestKickoffEmptySource(t *testing.T) {
	p, st, sender := newTestPipeline(t, nil, nil)

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drafts)
	assert.Empty(t, st.scores)
	assert.Empty(t, sender.sent)
}

func TestFilterThresholdIsExclusive(t *testing.T) {
	leads := []types.LeadRecord{
		{Name: "At Threshold", Company: "A", Email: "at@a.com"},
		{Name: "Above Threshold", Company: "B", Email: "above@b.com"},
	}
	p, _, _ := newTestPipeline(t, leads,
		map[string]int{"At Threshold": 70, "Above Threshold": 71})

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)

	// 70 does not qualify; only strictly greater scores pass.
	require.Len(t, drafts, 1)
	assert.Equal(t, "Above Threshold", drafts[0].LeadName)
}

func TestZeroThresholdAdmitsAllScoredLeads(t *testing.T) {
	st := &fakeStore{}
	sender := &fakeSender{}
	threshold := 0
	p, err := New(Options{
		Source:         NewStaticSource(testLeads),
		Enrichment:     newEnrichmentCrew(t, map[string]int{"Anne Pernet": 85, "Bob Stone": 1}),
		Email:          newEmailCrew(t),
		Store:          st,
		Sender:         sender,
		ScoreThreshold: &threshold,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)

	// An explicit zero is honored, not remapped to the default.
	require.Len(t, drafts, 2)
	assert.Equal(t, "Anne Pernet", drafts[0].LeadName)
	assert.Equal(t, "Bob Stone", drafts[1].LeadName)
}

func TestDuplicateLeadNamesKeepDistinctRecipients(t *testing.T) {
	leads := []types.LeadRecord{
		{Name: "Anne Pernet", JobTitle: "Directrice CRM", Company: "Veolia Environnement",
			Email: "anne@veolia.fr"},
		{Name: "Anne Pernet", JobTitle: "Head of Data", Company: "Acme",
			Email: "a.pernet@acme.com"},
	}
	p, _, sender := newTestPipeline(t, leads, map[string]int{"Anne Pernet": 85})

	drafts, err := p.Kickoff(context.Background())
	require.NoError(t, err)

	// Recipients follow the originating record, not a name lookup.
	require.Len(t, drafts, 2)
	assert.Equal(t, "anne@veolia.fr", drafts[0].To)
	assert.Equal(t, "a.pernet@acme.com", drafts[1].To)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "a.pernet@acme.com", sender.sent[1].To)
}

func TestKickoffScoringFailureHaltsDownstream(t *testing.T) {
	// Bob is missing from the score map, so his validation output fails
	// schema validation.
	p, _, sender := newTestPipeline(t, testLeads,
		map[string]int{"Anne Pernet": 85})

	_, err := p.Kickoff(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrSchemaValidation), "got %v", err)

	var ferr *types.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageScore, ferr.Stage)

	assert.Zero(t, sender.calls)
	status, _ := p.Status(StageSend)
	assert.Equal(t, flow.StagePending, status)
}

func TestKickoffSourceFailure(t *testing.T) {
	st := &fakeStore{}
	sender := &fakeSender{}
	p, err := New(Options{
		Source: SourceFunc(func(context.Context) ([]types.LeadRecord, error) {
			return nil, fmt.Errorf("database unreachable")
		}),
		Enrichment: newEnrichmentCrew(t, nil),
		Email:      newEmailCrew(t),
		Store:      st,
		Sender:     sender,
	})
	require.NoError(t, err)

	_, err = p.Kickoff(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unreachable")
	assert.Empty(t, st.scores)
}

func TestNewValidatesCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))

	_, err = New(Options{Source: NewStaticSource(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrichment")
}

func TestPlotShowsStageGraph(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil, nil)

	dot := p.Plot()
	for _, stage := range []string{StageFetch, StageScore, StageStore, StageFilter, StageWrite, StageSend} {
		assert.Contains(t, dot, stage)
	}
	assert.Contains(t, dot, fmt.Sprintf("%q -> %q", StageScore, StageFilter))
}
