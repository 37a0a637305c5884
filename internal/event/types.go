package event

import "time"

// Event types published by the orchestrator.
const (
	TypeRunStarted     = "run.started"
	TypeRunCompleted   = "run.completed"
	TypeRunAborted     = "run.aborted"
	TypeChainStarted   = "chain.started"
	TypeChainCompleted = "chain.completed"
	TypeChainFailed    = "chain.failed"
)

// Event is the interface that all events implement.
type Event interface {
	// EventType returns the "category.action" identifier.
	EventType() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once all chains are seeded, before dispatch.
type RunStartedEvent struct {
	baseEvent
	RunID    string
	Chains   int
	PoolSize int
	BaseSeed uint64
	Expected int // expected progress units
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, chains, poolSize int, baseSeed uint64, expected int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Chains:    chains,
		PoolSize:  poolSize,
		BaseSeed:  baseSeed,
		Expected:  expected,
	}
}

// RunCompletedEvent is emitted when every chain has completed.
type RunCompletedEvent struct {
	baseEvent
	RunID     string
	Solutions int
	Explored  int
	Cut       int
	Progress  int // observed progress units
	Duration  time.Duration
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, solutions, explored, cut, progress int, d time.Duration) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent(TypeRunCompleted),
		RunID:     runID,
		Solutions: solutions,
		Explored:  explored,
		Cut:       cut,
		Progress:  progress,
		Duration:  d,
	}
}

// RunAbortedEvent is emitted after in-flight chains were cancelled because
// a chain failed or the caller gave up. FailedChain is -1 when the caller
// cancelled.
type RunAbortedEvent struct {
	baseEvent
	RunID       string
	FailedChain int
	Completed   int // chains that finished before the abort
	Cancelled   int // chains that were still pending or running
	Drained     bool
	Err         error
}

// NewRunAbortedEvent creates a RunAbortedEvent.
func NewRunAbortedEvent(runID string, failedChain, completed, cancelled int, drained bool, err error) RunAbortedEvent {
	return RunAbortedEvent{
		baseEvent:   newBaseEvent(TypeRunAborted),
		RunID:       runID,
		FailedChain: failedChain,
		Completed:   completed,
		Cancelled:   cancelled,
		Drained:     drained,
		Err:         err,
	}
}

// -----------------------------------------------------------------------------
// Chain Events
// -----------------------------------------------------------------------------

// ChainStartedEvent is emitted when a worker slot picks up a chain.
type ChainStartedEvent struct {
	baseEvent
	RunID string
	Chain int
	Seed  uint64
}

// NewChainStartedEvent creates a ChainStartedEvent.
func NewChainStartedEvent(runID string, chain int, seed uint64) ChainStartedEvent {
	return ChainStartedEvent{
		baseEvent: newBaseEvent(TypeChainStarted),
		RunID:     runID,
		Chain:     chain,
		Seed:      seed,
	}
}

// ChainCompletedEvent is emitted when a chain's result has been merged.
type ChainCompletedEvent struct {
	baseEvent
	RunID    string
	Chain    int
	Explored int
	Cut      int
	Trees    int
	Duration time.Duration
}

// NewChainCompletedEvent creates a ChainCompletedEvent.
func NewChainCompletedEvent(runID string, chain, explored, cut, trees int, d time.Duration) ChainCompletedEvent {
	return ChainCompletedEvent{
		baseEvent: newBaseEvent(TypeChainCompleted),
		RunID:     runID,
		Chain:     chain,
		Explored:  explored,
		Cut:       cut,
		Trees:     trees,
		Duration:  d,
	}
}

// ChainFailedEvent is emitted when a chain's search returned an error.
type ChainFailedEvent struct {
	baseEvent
	RunID string
	Chain int
	Err   error
}

// NewChainFailedEvent creates a ChainFailedEvent.
func NewChainFailedEvent(runID string, chain int, err error) ChainFailedEvent {
	return ChainFailedEvent{
		baseEvent: newBaseEvent(TypeChainFailed),
		RunID:     runID,
		Chain:     chain,
		Err:       err,
	}
}
