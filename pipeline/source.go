package pipeline

import (
	"context"

	"github.com/BaSui01/leadflow/types"
)

// LeadSource supplies the raw leads the pipeline qualifies.
type LeadSource interface {
	Fetch(ctx context.Context) ([]types.LeadRecord, error)
}

// SourceFunc adapts a function to the LeadSource interface.
type SourceFunc func(ctx context.Context) ([]types.LeadRecord, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]types.LeadRecord, error) {
	return f(ctx)
}

// StaticSource serves a fixed lead list, typically from configuration.
type StaticSource struct {
	leads []types.LeadRecord
}

func NewStaticSource(leads []types.LeadRecord) *StaticSource {
	return &StaticSource{leads: leads}
}

func (s *StaticSource) Fetch(ctx context.Context) ([]types.LeadRecord, error) {
	out := make([]types.LeadRecord, len(s.leads))
	copy(out, s.leads)
	return out, nil
}

// LeadTable is the slice of the lead store the fetch stage reads.
type LeadTable interface {
	Leads(ctx context.Context) ([]types.LeadRecord, error)
}

// StoreSource pulls leads from the database.
type StoreSource struct {
	table LeadTable
}

func NewStoreSource(table LeadTable) *StoreSource {
	return &StoreSource{table: table}
}

func (s *StoreSource) Fetch(ctx context.Context) ([]types.LeadRecord, error) {
	return s.table.Leads(ctx)
}
