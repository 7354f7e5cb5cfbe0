package strategy

import (
	"time"

	"github.com/ader1990/adpreplic/internal/model"
)

// Decision is the outcome of a strategy event. Strategies emit decisions
// only; the replica manager observes them and acts.
type Decision int

const (
	// NoChange means the local replica set should stay as it is
	NoChange Decision = iota
	// ShouldReplicate means this DC should acquire a local replica
	ShouldReplicate
	// ShouldEvict means this DC may drop its local replica
	ShouldEvict
)

// String returns a human-readable decision name
func (d Decision) String() string {
	switch d {
	case ShouldReplicate:
		return "should_replicate"
	case ShouldEvict:
		return "should_evict"
	default:
		return "no_change"
	}
}

// Strategy is one per-key policy state machine. Implementations hold the
// mutable per-key state; the engine serializes all calls on one key.
// Adding a policy variant means adding an implementation, not extending a
// registry.
type Strategy interface {
	// Init bootstraps the state machine. Idempotent: repeated calls with
	// identical params leave state unchanged.
	Init(replicated bool, params model.StrategyParams)
	// OnRead folds one local read into the state
	OnRead() Decision
	// OnWrite folds one local write into the state
	OnWrite() Decision
	// OnTick advances time by elapsed and applies due decay steps
	OnTick(elapsed time.Duration) Decision
	// SetReplicated records an admission or eviction applied by the
	// replica manager
	SetReplicated(replicated bool)
	// Strength returns the current strength value
	Strength() float64
	// Params returns the governing parameters
	Params() model.StrategyParams
}

// New constructs the strategy variant selected by kind
func New(kind model.StrategyKind) (Strategy, bool) {
	switch kind {
	case model.StrategyAdaptive:
		return &adaptiveDecay{}, true
	default:
		return nil, false
	}
}
