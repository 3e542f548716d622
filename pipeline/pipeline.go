package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/crew"
	"github.com/BaSui01/leadflow/flow"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/mail"
	"github.com/BaSui01/leadflow/store"
	"github.com/BaSui01/leadflow/types"
)

// Stage names of the sales pipeline graph.
const (
	StageFetch  = "fetch_leads"
	StageScore  = "score_leads"
	StageStore  = "store_leads_score"
	StageFilter = "filter_leads"
	StageWrite  = "write_email"
	StageSend   = "send_email"
)

// DefaultScoreThreshold gates the filter stage when Options leaves the
// threshold unset.
const DefaultScoreThreshold = 70

// QualifiedLead pairs a passing score with the contact record it was
// computed from, so later stages address the right person even when two
// leads share a name.
type QualifiedLead struct {
	Lead  types.LeadRecord
	Score types.ScoredLead
}

// Options configures a Pipeline. Source, Enrichment and Email are required;
// Store and Sender fall back to pass-through and logging respectively.
type Options struct {
	Source     LeadSource
	Enrichment *crew.Crew
	Email      *crew.Crew
	Store      store.LeadStore
	Sender     mail.Sender
	// ScoreThreshold is the exclusive lower bound a lead's score must beat
	// to reach email writing. Nil means DefaultScoreThreshold; an explicit
	// zero admits every scored lead.
	ScoreThreshold *int
	Logger         *zap.Logger
	Metrics        *metrics.Collector
}

// Pipeline is the assembled lead qualification flow.
type Pipeline struct {
	flow      *flow.Flow
	source    LeadSource
	enrich    *crew.Crew
	email     *crew.Crew
	store     store.LeadStore
	sender    mail.Sender
	threshold int
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// New assembles the stage graph. The graph shape is fixed; only the
// collaborators behind the stages vary.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, types.NewError(types.ErrConfiguration, "pipeline: lead source is required")
	}
	if opts.Enrichment == nil {
		return nil, types.NewError(types.ErrConfiguration, "pipeline: enrichment crew is required")
	}
	if opts.Email == nil {
		return nil, types.NewError(types.ErrConfiguration, "pipeline: email crew is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := DefaultScoreThreshold
	if opts.ScoreThreshold != nil {
		threshold = *opts.ScoreThreshold
	}
	sender := opts.Sender
	if sender == nil {
		sender = mail.NewLogSender(logger)
	}

	p := &Pipeline{
		source:    opts.Source,
		enrich:    opts.Enrichment,
		email:     opts.Email,
		store:     opts.Store,
		sender:    sender,
		threshold: threshold,
		logger:    logger.With(zap.String("component", "pipeline")),
		metrics:   opts.Metrics,
	}

	f, err := flow.NewBuilder("sales_pipeline").
		WithLogger(logger).
		WithMetrics(opts.Metrics).
		Start(StageFetch, p.fetchLeads).
		Listen(StageScore, flow.On(StageFetch), p.scoreLeads).
		Listen(StageStore, flow.On(StageScore), p.storeLeadsScore).
		Listen(StageFilter, flow.On(StageScore), p.filterLeads).
		Listen(StageWrite, flow.On(StageFilter), p.writeEmail).
		Listen(StageSend, flow.On(StageWrite), p.sendEmail).
		Returns(StageSend).
		Build()
	if err != nil {
		return nil, err
	}
	p.flow = f
	return p, nil
}

// Kickoff runs the pipeline once and returns the drafts that were sent.
func (p *Pipeline) Kickoff(ctx context.Context) ([]types.EmailDraft, error) {
	out, err := p.flow.Kickoff(ctx)
	if err != nil {
		return nil, err
	}
	drafts, ok := out.([]types.EmailDraft)
	if !ok {
		return nil, types.NewError(types.ErrStageFailed,
			fmt.Sprintf("pipeline returned unexpected result type %T", out))
	}
	return drafts, nil
}

// State exposes the per-stage outputs of the most recent kickoff.
func (p *Pipeline) State() *flow.State { return p.flow.State() }

// Status reports a stage's lifecycle state within the current kickoff.
func (p *Pipeline) Status(stage string) (flow.StageStatus, bool) { return p.flow.Status(stage) }

// Plot renders the stage graph in DOT format.
func (p *Pipeline) Plot() string { return p.flow.Plot() }

func (p *Pipeline) fetchLeads(ctx context.Context, _ *flow.State, _ any) (any, error) {
	leads, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("fetched leads", zap.Int("count", len(leads)))
	return leads, nil
}

func (p *Pipeline) scoreLeads(ctx context.Context, _ *flow.State, input any) (any, error) {
	leads, err := stageInput[[]types.LeadRecord](input)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return []types.ScoredLead{}, nil
	}
	if p.metrics != nil {
		p.metrics.AddStageItems(p.flow.Name(), StageScore, len(leads))
	}

	inputs := make([]map[string]any, len(leads))
	for i, lead := range leads {
		inputs[i] = lead.Map()
	}
	outputs, err := p.enrich.KickoffForEach(ctx, inputs)
	if err != nil {
		return nil, err
	}

	scores := make([]types.ScoredLead, len(outputs))
	for i, out := range outputs {
		if err := out.Decode(&scores[i]); err != nil {
			return nil, withItemIndex(err, i)
		}
	}
	return scores, nil
}

func (p *Pipeline) storeLeadsScore(ctx context.Context, _ *flow.State, input any) (any, error) {
	scores, err := stageInput[[]types.ScoredLead](input)
	if err != nil {
		return nil, err
	}
	if p.store != nil {
		if err := p.store.SaveScores(ctx, p.flow.RunID(), scores); err != nil {
			return nil, err
		}
	}
	return scores, nil
}

func (p *Pipeline) filterLeads(_ context.Context, state *flow.State, input any) (any, error) {
	scores, err := stageInput[[]types.ScoredLead](input)
	if err != nil {
		return nil, err
	}
	leads := fetchedLeads(state)
	qualified := make([]QualifiedLead, 0, len(scores))
	for i, score := range scores {
		if score.LeadScore.Score > p.threshold {
			q := QualifiedLead{Score: score}
			if i < len(leads) {
				q.Lead = leads[i]
			}
			qualified = append(qualified, q)
		}
	}
	if p.metrics != nil {
		p.metrics.AddStageItems(p.flow.Name(), StageFilter, len(qualified))
	}
	p.logger.Info("filtered leads",
		zap.Int("scored", len(scores)),
		zap.Int("qualified", len(qualified)),
		zap.Int("threshold", p.threshold))
	return qualified, nil
}

func (p *Pipeline) writeEmail(ctx context.Context, _ *flow.State, input any) (any, error) {
	qualified, err := stageInput[[]QualifiedLead](input)
	if err != nil {
		return nil, err
	}
	if len(qualified) == 0 {
		return []types.EmailDraft{}, nil
	}
	if p.metrics != nil {
		p.metrics.AddStageItems(p.flow.Name(), StageWrite, len(qualified))
	}

	inputs := make([]map[string]any, len(qualified))
	for i, q := range qualified {
		inputs[i] = q.Score.Map()
	}
	outputs, err := p.email.KickoffForEach(ctx, inputs)
	if err != nil {
		return nil, err
	}

	drafts := make([]types.EmailDraft, len(qualified))
	for i, q := range qualified {
		drafts[i] = types.EmailDraft{
			LeadName: q.Score.PersonalInfo.Name,
			To:       q.Lead.Email,
			Body:     outputs[i].Raw,
		}
	}
	return drafts, nil
}

func (p *Pipeline) sendEmail(ctx context.Context, _ *flow.State, input any) (any, error) {
	drafts, err := stageInput[[]types.EmailDraft](input)
	if err != nil {
		return nil, err
	}
	if err := p.sender.Send(ctx, drafts); err != nil {
		return nil, err
	}
	p.logger.Info("emails dispatched", zap.Int("count", len(drafts)))
	return drafts, nil
}

// fetchedLeads recovers the fetch stage output; scoring preserves input
// order, so scores[i] originated from leads[i].
func fetchedLeads(state *flow.State) []types.LeadRecord {
	out, ok := state.Get(StageFetch)
	if !ok {
		return nil
	}
	leads, _ := out.([]types.LeadRecord)
	return leads
}

func stageInput[T any](input any) (T, error) {
	v, ok := input.(T)
	if !ok {
		var zero T
		return zero, types.NewError(types.ErrStageFailed,
			fmt.Sprintf("unexpected stage input type %T", input))
	}
	return v, nil
}

// withItemIndex stamps the batch index onto decode failures so a bad item in
// a fan-out batch is addressable.
func withItemIndex(err error, i int) error {
	if e, ok := err.(*types.Error); ok && e.Item < 0 {
		return e.WithItem(i)
	}
	return err
}
