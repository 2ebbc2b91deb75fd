package pipeline

import (
	"context"

	"propsim/internal/types"
	"propsim/internal/validate"
)

// StageSpec declares what a stage needs, not how the engine calls it:
// the prior stage outputs it consumes, how its prompt is assembled, and the
// schema its output must satisfy.
//
// Stages with a Run func bypass the default generate-and-validate flow;
// they either wrap extra collaborators around it (research) or are fully
// deterministic (finalize).
type StageSpec struct {
	Key      string
	Requires []string

	// Prompt builds the instruction text and the structured input payload
	// from prior validated state. Only the declared Requires may be read.
	Prompt func(st *types.State) (prompt string, input any, err error)

	// Schema the raw response is validated against.
	Schema validate.Schema

	// JSON requests a JSON object response from the collaborator.
	JSON bool

	// Run, when set, replaces the default LLM flow entirely.
	Run func(ctx context.Context, eng *Engine, st *types.State) (any, error)
}

// Stage keys, in execution order.
const (
	StageResearch   = "research"
	StageAnalyze    = "analyze"
	StageDiagnose   = "diagnose"
	StageStrategize = "strategize"
	StageEvaluate   = "evaluate"
	StageParse      = "parse"
	StageFinalize   = "finalize"
	StageCoach      = "coach"
	StageReport     = "report"
)
