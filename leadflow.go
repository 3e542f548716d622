// Package leadflow provides a top-level convenience entry point that wires
// the configured collaborators into a runnable sales pipeline.
//
// Usage:
//
//	import "github.com/BaSui01/leadflow"
//
//	cfg, err := config.Load("configs/config.yaml")
//	p, err := leadflow.New(cfg, logger)
//	drafts, err := p.Kickoff(ctx)
//
// This is a thin wrapper around the pipeline, crew and flow packages; use
// them directly when you need a collaborator the configuration cannot
// express, such as a custom lead source or delivery backend.
package leadflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/config"
	"github.com/BaSui01/leadflow/crew"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/llm"
	"github.com/BaSui01/leadflow/mail"
	"github.com/BaSui01/leadflow/pipeline"
	"github.com/BaSui01/leadflow/store"
	"github.com/BaSui01/leadflow/tools"
)

// Option overrides one of the collaborators New builds from configuration.
type Option func(*assembly)

type assembly struct {
	source   pipeline.LeadSource
	sender   mail.Sender
	store    store.LeadStore
	registry prometheus.Registerer
}

// WithSource replaces the configured static lead list.
func WithSource(s pipeline.LeadSource) Option {
	return func(a *assembly) { a.source = s }
}

// WithSender replaces the logging delivery backend.
func WithSender(s mail.Sender) Option {
	return func(a *assembly) { a.sender = s }
}

// WithStore replaces the SQLite lead store.
func WithStore(s store.LeadStore) Option {
	return func(a *assembly) { a.store = s }
}

// WithRegistry sets the Prometheus registerer metrics are registered with.
// Defaults to the global default registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(a *assembly) { a.registry = r }
}

// New assembles a pipeline from configuration: the LLM client, the tool
// registry, both crews from their declaration files, the lead store, and the
// stage graph itself.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*pipeline.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var a assembly
	for _, opt := range opts {
		opt(&a)
	}
	if a.registry == nil {
		a.registry = prometheus.DefaultRegisterer
	}
	collector := metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)

	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchTool(cfg.Tools.Search, logger))
	registry.Register(tools.NewScrapeTool(cfg.Tools.Scrape, logger))

	enrichDef, err := config.LoadCrewDefinition(cfg.Pipeline.EnrichmentAgents, cfg.Pipeline.EnrichmentTasks)
	if err != nil {
		return nil, err
	}
	emailDef, err := config.LoadCrewDefinition(cfg.Pipeline.EmailAgents, cfg.Pipeline.EmailTasks)
	if err != nil {
		return nil, err
	}

	crewOpts := []crew.Option{
		crew.WithConcurrency(cfg.Pipeline.Concurrency),
		crew.WithMetrics(collector),
	}
	enrichment, err := pipeline.BuildCrew("lead_enrichment", enrichDef, client, registry, logger, crewOpts...)
	if err != nil {
		return nil, err
	}
	email, err := pipeline.BuildCrew("email_writing", emailDef, client, registry, logger, crewOpts...)
	if err != nil {
		return nil, err
	}

	if a.store == nil {
		s, err := store.OpenSQLite(cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	if a.source == nil {
		a.source = pipeline.NewStaticSource(cfg.Pipeline.Leads)
	}
	if a.sender == nil {
		a.sender = mail.NewLogSender(logger)
	}

	return pipeline.New(pipeline.Options{
		Source:         a.source,
		Enrichment:     enrichment,
		Email:          email,
		Store:          a.store,
		Sender:         a.sender,
		ScoreThreshold: &cfg.Pipeline.ScoreThreshold,
		Logger:         logger,
		Metrics:        collector,
	})
}
