// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/contract"
	"github.com/transitops/wmata-ingress/pkg/extractor"
	"github.com/transitops/wmata-ingress/pkg/loader"
	"github.com/transitops/wmata-ingress/pkg/transformer"
)

// State represents the pipeline's position in its run
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Extractor is the stage that pulls raw records from the source
type Extractor interface {
	Extract(ctx context.Context, src extractor.SourceConfig) ([]contract.RawRecord, extractor.Stats, error)
}

// Transformer is the stage that cleans raw records
type Transformer interface {
	Transform(raws []contract.RawRecord) transformer.Result
}

// Loader is the stage that persists clean records
type Loader interface {
	Load(ctx context.Context, records []contract.CleanRecord) (*loader.LoadResult, error)
}

// StageError identifies which stage a run failed in
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline sequences extraction, transformation and load for one contract.
// Stages run strictly in order; a stage failure moves the run to Failed
// and later stages never see partial output.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	source      extractor.SourceConfig
	crt         *contract.Contract
	logger      *zap.Logger

	mu    sync.RWMutex
	state State
}

// New creates a pipeline wiring the three stages for a contract
func New(
	ext Extractor,
	trf Transformer,
	ldr Loader,
	src extractor.SourceConfig,
	c *contract.Contract,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		extractor:   ext,
		transformer: trf,
		loader:      ldr,
		source:      src,
		crt:         c,
		logger:      logger.Named("pipeline").With(zap.String("contract", c.Table)),
		state:       StateIdle,
	}
}

// State returns the current pipeline state
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// advance moves the state machine forward, never back
func (p *Pipeline) advance(next State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.state
	p.state = next

	if prev != next {
		p.logger.Info("Pipeline state changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next)))
	}
}

// Run executes one extraction-transformation-load cycle and returns the
// run summary. Cancellation is honored at stage boundaries.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary(p.crt.Table)
	start := time.Now()

	fail := func(stage State, err error) (*RunSummary, error) {
		p.advance(StateFailed)
		summary.State = StateFailed
		summary.Duration = time.Since(start)
		return summary, &StageError{Stage: stage, Err: err}
	}

	// Extraction
	p.advance(StateExtracting)
	raws, stats, err := p.extractor.Extract(ctx, p.source)
	if err != nil {
		return fail(StateExtracting, err)
	}
	summary.Pages = stats.Pages
	summary.Extracted = stats.Records

	if err := ctx.Err(); err != nil {
		return fail(StateExtracting, err)
	}

	// Transformation
	p.advance(StateTransforming)
	result := p.transformer.Transform(raws)
	summary.AddTransformResult(result)

	if err := ctx.Err(); err != nil {
		return fail(StateTransforming, err)
	}

	// Load
	p.advance(StateLoading)
	loadResult, err := p.loader.Load(ctx, result.Clean)
	if loadResult != nil {
		summary.AddLoadResult(loadResult)
	}
	if err != nil {
		return fail(StateLoading, err)
	}

	p.advance(StateDone)
	summary.State = StateDone
	summary.Duration = time.Since(start)

	p.logger.Info("Pipeline run completed",
		zap.String("runID", summary.RunID),
		zap.Int("extracted", summary.Extracted),
		zap.Int("clean", summary.Clean),
		zap.Int("rejected", summary.RejectedCount()),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// RunSummary aggregates the counts of one pipeline execution. In-memory
// only; it exists for the caller to display or log.
type RunSummary struct {
	RunID    string
	Contract string
	State    State

	// Extraction
	Pages     int
	Extracted int

	// Transformation
	Clean         int
	Deduplicated  int
	Rejected      []contract.RejectedRecord
	RejectReasons map[string]int

	// Load
	Inserted      int
	Updated       int
	Unchanged     int
	FailedRecords int
	FailedBatches int

	Duration time.Duration
}

// NewRunSummary initializes a summary for a run
func NewRunSummary(contractName string) *RunSummary {
	return &RunSummary{
		RunID:         uuid.New().String(),
		Contract:      contractName,
		State:         StateIdle,
		RejectReasons: make(map[string]int),
	}
}

// AddTransformResult merges the transformer's counts into the summary
func (s *RunSummary) AddTransformResult(result transformer.Result) {
	s.Clean = len(result.Clean)
	s.Deduplicated = result.Deduplicated
	s.Rejected = result.Rejected
	for _, rej := range result.Rejected {
		s.RejectReasons[contract.RejectReason(rej.Reason)]++
	}
}

// AddLoadResult merges the loader's counts into the summary
func (s *RunSummary) AddLoadResult(result *loader.LoadResult) {
	s.Inserted = result.Inserted
	s.Updated = result.Updated
	s.Unchanged = result.Unchanged
	s.FailedRecords = result.Failed()
	s.FailedBatches = len(result.FailedBatches)
}

// RejectedCount returns the number of rejected records
func (s *RunSummary) RejectedCount() int {
	return len(s.Rejected)
}
