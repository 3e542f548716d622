package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/types"
)

// StageStatus is the lifecycle state of a stage within one kickoff.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageFailed  StageStatus = "failed"
)

type stage struct {
	name         string
	predecessors []string
	combinator   Combinator
	handler      Handler

	// Per-kickoff state
	status StageStatus
	fired  bool // an OR stage fires at most once
}

// Flow owns a validated stage graph and drives it to completion.
type Flow struct {
	name      string
	stages    []*stage
	byName    map[string]*stage
	listeners map[string][]*stage
	returns   string
	logger    *zap.Logger
	metrics   *metrics.Collector

	state *State
	runID string
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// State returns the pipeline state of the most recent kickoff, for
// inspection after the run terminates.
func (f *Flow) State() *State { return f.state }

// RunID returns the identifier assigned to the most recent kickoff.
func (f *Flow) RunID() string { return f.runID }

type completion struct {
	stage    string
	output   any
	duration time.Duration
	err      error
}

// Kickoff runs the stage graph to completion and returns the terminal
// stage's output, or the first failure encountered. A failed stage stops
// all of its downstream listeners; independent in-flight stages are allowed
// to finish but the run is never reported as success once anything failed.
//
// Kickoff is not safe for concurrent use on the same Flow.
func (f *Flow) Kickoff(ctx context.Context) (any, error) {
	f.state = NewState()
	f.runID = uuid.NewString()
	for _, st := range f.stages {
		st.status = StagePending
		st.fired = false
	}

	f.logger.Info("flow kickoff", zap.String("run_id", f.runID))
	start := time.Now()

	done := make(chan completion)
	running := 0
	var firstErr error

	launch := func(st *stage, input any) {
		st.status = StageRunning
		st.fired = true
		running++
		f.logger.Debug("stage activated", zap.String("stage", st.name))
		go func() {
			began := time.Now()
			out, err := st.handler(ctx, f.state, input)
			done <- completion{stage: st.name, output: out, duration: time.Since(began), err: err}
		}()
	}

	for _, st := range f.stages {
		if len(st.predecessors) == 0 {
			launch(st, nil)
		}
	}

	for running > 0 {
		c := <-done
		running--
		st := f.byName[c.stage]

		if c.err != nil {
			st.status = StageFailed
			f.observeStage(st.name, "failed", c.duration)
			f.logger.Error("stage failed",
				zap.String("stage", st.name),
				zap.Duration("duration", c.duration),
				zap.Error(c.err),
			)
			if firstErr == nil {
				firstErr = stageFailure(st.name, c.err)
			}
			continue
		}

		st.status = StageDone
		f.observeStage(st.name, "done", c.duration)
		if err := f.state.set(st.name, c.output); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		f.logger.Debug("stage done",
			zap.String("stage", st.name),
			zap.Duration("duration", c.duration),
		)

		if firstErr != nil {
			// The run already failed; let siblings drain but activate
			// nothing further.
			continue
		}

		for _, listener := range f.listeners[st.name] {
			if input, ready := f.activation(listener, st.name); ready {
				launch(listener, input)
			}
		}
	}

	if firstErr != nil {
		f.observeRun("failed")
		return nil, firstErr
	}

	f.observeRun("success")
	f.logger.Info("flow completed",
		zap.String("run_id", f.runID),
		zap.Duration("duration", time.Since(start)),
	)

	out, _ := f.state.Get(f.returns)
	return out, nil
}

// activation reports whether a pending stage becomes runnable now that
// completed has finished, and computes its input: the single predecessor's
// output, a by-name map for AND stages with several predecessors, or the
// first arrival's output for OR stages.
func (f *Flow) activation(st *stage, completed string) (any, bool) {
	if st.status != StagePending || st.fired {
		return nil, false
	}

	switch st.combinator {
	case CombinatorOr:
		out, _ := f.state.Get(completed)
		return out, true

	default: // CombinatorAnd
		outputs := make(map[string]any, len(st.predecessors))
		for _, pred := range st.predecessors {
			out, ok := f.state.Get(pred)
			if !ok {
				return nil, false
			}
			outputs[pred] = out
		}
		if len(st.predecessors) == 1 {
			return outputs[st.predecessors[0]], true
		}
		return outputs, true
	}
}

// Status returns a stage's lifecycle state within the current kickoff.
func (f *Flow) Status(stage string) (StageStatus, bool) {
	st, ok := f.byName[stage]
	if !ok {
		return "", false
	}
	return st.status, true
}

func (f *Flow) observeStage(stage, status string, d time.Duration) {
	if f.metrics != nil {
		f.metrics.ObserveStage(f.name, stage, status, d)
	}
}

func (f *Flow) observeRun(status string) {
	if f.metrics != nil {
		f.metrics.ObserveFlowRun(f.name, status)
	}
}

// stageFailure wraps a stage body error, preserving framework codes in the
// chain while stamping the stage name.
func stageFailure(stage string, err error) error {
	if e, ok := err.(*types.Error); ok && e.Stage == "" {
		return e.WithStage(stage)
	}
	return types.NewError(types.ErrStageFailed, "stage body failed").WithStage(stage).WithCause(err)
}
