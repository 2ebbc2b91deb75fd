// Package pipeline drives the fixed nine-stage reasoning sequence that turns
// a property-distress scenario into a ranked set of recommended actions.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"propsim/internal/llm"
	"propsim/internal/scoring"
	"propsim/internal/search"
	"propsim/internal/types"
	"propsim/internal/validate"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTopK overrides how many strategies the finalize stage selects.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithWeights overrides the scoring weights for the run.
func WithWeights(w scoring.Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithTruncation opts into warn-and-truncate when fewer strategies survive
// evaluation than top-K requires. The default is a fatal error.
func WithTruncation() Option {
	return func(e *Engine) { e.allowTruncate = true }
}

// WithLogger overrides the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithStages replaces the stage list. Intended for tests.
func WithStages(stages []StageSpec) Option {
	return func(e *Engine) { e.stages = stages }
}

// Engine executes the ordered stage list, threading an append-only State
// through it. Each run owns its own State; independent runs may proceed
// concurrently if the collaborators allow it.
type Engine struct {
	llm    llm.Client
	search search.Searcher
	log    *log.Logger

	stages        []StageSpec
	weights       scoring.Weights
	topK          int
	allowTruncate bool
}

// NewEngine wires an engine around the text-generation and search
// collaborators. searcher may be nil; the research stage then runs with an
// empty market context.
func NewEngine(client llm.Client, searcher search.Searcher, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("pipeline: llm client is required")
	}
	e := &Engine{
		llm:     client,
		search:  searcher,
		log:     log.Default(),
		stages:  defaultStages(),
		weights: scoring.DefaultWeights,
		topK:    3,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Run executes every stage in order against the scenario. On failure the
// returned State still holds all outputs committed before the abort, for
// diagnostic inspection only.
func (e *Engine) Run(ctx context.Context, scenario types.Scenario) (*types.FinalResult, *types.State, error) {
	st := types.NewState(scenario)
	started := time.Now()

	for _, spec := range e.stages {
		// Cancellation is honored between stages only; an in-flight
		// collaborator call completes or times out first.
		if err := ctx.Err(); err != nil {
			return nil, st, &PipelineError{Stage: spec.Key, Err: err}
		}
		if missing := st.Missing(spec.Requires...); len(missing) > 0 {
			return nil, st, &PipelineError{
				Stage: spec.Key,
				Err:   fmt.Errorf("missing required stage outputs %v", missing),
			}
		}

		e.log.Printf("stage %s: running", spec.Key)
		out, err := e.runStage(ctx, spec, st)
		if err != nil {
			return nil, st, &PipelineError{Stage: spec.Key, Err: err}
		}
		if err := st.Commit(spec.Key, out); err != nil {
			return nil, st, &PipelineError{Stage: spec.Key, Err: err}
		}
	}

	result, err := Finalize(st)
	if err != nil {
		return nil, st, err
	}
	e.log.Printf("run complete in %s", time.Since(started).Round(time.Millisecond))
	return result, st, nil
}

func (e *Engine) runStage(ctx context.Context, spec StageSpec, st *types.State) (any, error) {
	if spec.Run != nil {
		return spec.Run(ctx, e, st)
	}
	prompt, input, err := spec.Prompt(st)
	if err != nil {
		return nil, err
	}
	return e.invoke(ctx, spec.Key, prompt, input, spec.Schema, spec.JSON)
}

// invoke performs one collaborator call and validates the raw response
// against the stage schema. Raw text never escapes this boundary.
func (e *Engine) invoke(ctx context.Context, stage, prompt string, input any, schema validate.Schema, jsonMode bool) (any, error) {
	raw, err := e.llm.Generate(llm.WithStage(ctx, stage), llm.Request{
		Prompt: prompt,
		Input:  input,
		JSON:   jsonMode,
	})
	if err != nil {
		return nil, err
	}
	res, err := validate.Decode(raw, schema)
	if err != nil {
		return nil, err
	}
	if res.Repaired {
		e.log.Printf("WARNING: stage %s: output required shape repair before validation", stage)
	}
	return res.Value, nil
}
