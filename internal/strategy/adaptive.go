package strategy

import (
	"time"

	"github.com/ader1990/adpreplic/internal/model"
)

// adaptiveDecay is the decaying-strength policy. Strength rises on local
// access and decays by decay_factor every decay_time; admission happens at
// or above repl_threshold, eviction at or below rmv_threshold. Both
// thresholds are inclusive.
type adaptiveDecay struct {
	params      model.StrategyParams
	strength    float64
	replicated  bool
	initialized bool
	pending     time.Duration // time accumulated toward the next decay step
}

// Init implements Strategy. A re-init with identical params is a no-op so
// strength accumulated across reads survives; changed params reset strength
// to its bootstrap value.
func (a *adaptiveDecay) Init(replicated bool, params model.StrategyParams) {
	if a.initialized && a.params == params {
		return
	}
	a.params = params
	a.replicated = replicated
	a.initialized = true
	a.pending = 0
	if replicated {
		a.strength = params.ReplThreshold
	} else {
		a.strength = 0
	}
	a.clamp()
}

// OnRead implements Strategy
func (a *adaptiveDecay) OnRead() Decision {
	a.strength += a.params.RStrength
	a.clamp()
	return a.admissionCheck()
}

// OnWrite implements Strategy
func (a *adaptiveDecay) OnWrite() Decision {
	a.strength += a.params.WStrength
	a.clamp()
	return a.admissionCheck()
}

// OnTick implements Strategy. A non-replicated key keeps decaying too; its
// strength can still rise on proxied reads, enabling later acquisition.
func (a *adaptiveDecay) OnTick(elapsed time.Duration) Decision {
	decayTime := time.Duration(a.params.DecayTime) * time.Millisecond
	if decayTime <= 0 {
		return NoChange
	}

	a.pending += elapsed
	decayed := false
	for a.pending >= decayTime {
		a.pending -= decayTime
		a.strength -= a.params.DecayFactor
		decayed = true
	}
	a.clamp()

	if decayed && a.replicated && a.strength <= a.params.RmvThreshold {
		return ShouldEvict
	}
	return NoChange
}

// SetReplicated implements Strategy. Admission bootstraps strength to the
// replication threshold; eviction zeroes it.
func (a *adaptiveDecay) SetReplicated(replicated bool) {
	if a.replicated == replicated {
		return
	}
	a.replicated = replicated
	if replicated {
		a.strength = a.params.ReplThreshold
	} else {
		a.strength = 0
	}
	a.clamp()
}

// Strength implements Strategy
func (a *adaptiveDecay) Strength() float64 {
	return a.strength
}

// Params implements Strategy
func (a *adaptiveDecay) Params() model.StrategyParams {
	return a.params
}

func (a *adaptiveDecay) admissionCheck() Decision {
	if !a.replicated && a.strength >= a.params.ReplThreshold {
		return ShouldReplicate
	}
	return NoChange
}

func (a *adaptiveDecay) clamp() {
	if a.strength < 0 {
		a.strength = 0
	}
	if a.strength > a.params.MaxStrength {
		a.strength = a.params.MaxStrength
	}
}
