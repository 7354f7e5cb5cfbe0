package strategy

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
)

// DecisionHandler receives tick-driven decisions. It runs outside the
// engine lock, so it may call back into the engine.
type DecisionHandler func(key model.Key, decision Decision)

// Engine owns one strategy state machine per key and drives decay ticks.
// It mutates no registry, store or network state; it only emits decisions.
type Engine struct {
	logger     *zap.Logger
	metrics    *metrics.Metrics
	resolution time.Duration

	mu     sync.Mutex
	states map[model.Key]Strategy

	handler  DecisionHandler
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates a strategy engine ticking at the given resolution
func NewEngine(resolution time.Duration, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	return &Engine{
		logger:     logger,
		metrics:    m,
		resolution: resolution,
		states:     make(map[model.Key]Strategy),
		stopChan:   make(chan struct{}),
	}
}

// SetDecisionHandler registers the callback for tick-driven decisions.
// Must be called before Start.
func (e *Engine) SetDecisionHandler(h DecisionHandler) {
	e.handler = h
}

// Start launches the decay ticker
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Stop halts the decay ticker and waits for it to drain
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
}

// InitStrategy bootstraps the state machine for key. Idempotent.
func (e *Engine) InitStrategy(key model.Key, kind model.StrategyKind, replicated bool, params model.StrategyParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[key]
	if !ok {
		state, ok = New(kind)
		if !ok {
			return errors.InvalidArgument("unknown strategy kind: " + string(kind))
		}
		e.states[key] = state
	}
	state.Init(replicated, params)
	return nil
}

// LocalRead folds one local read into the key's state
func (e *Engine) LocalRead(key model.Key) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[key]
	if !ok {
		return NoChange
	}
	return state.OnRead()
}

// LocalWrite folds one local write into the key's state
func (e *Engine) LocalWrite(key model.Key) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[key]
	if !ok {
		return NoChange
	}
	return state.OnWrite()
}

// SetReplicated records an admission or eviction applied by the replica
// manager
func (e *Engine) SetReplicated(key model.Key, replicated bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.states[key]; ok {
		state.SetReplicated(replicated)
	}
}

// Strength returns the current strength for key, zero if unknown
func (e *Engine) Strength(key model.Key) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.states[key]; ok {
		return state.Strength()
	}
	return 0
}

// Forget drops the state machine for key
func (e *Engine) Forget(key model.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, key)
}

// Tick advances every key's state by elapsed and reports decisions through
// the handler. Exposed for deterministic tests; the run loop calls it with
// real elapsed time.
func (e *Engine) Tick(elapsed time.Duration) {
	type pending struct {
		key      model.Key
		decision Decision
	}

	e.mu.Lock()
	var decisions []pending
	for key, state := range e.states {
		before := state.Strength()
		d := state.OnTick(elapsed)
		if state.Strength() != before {
			e.metrics.StrengthDecaysTotal.Inc()
		}
		if d != NoChange {
			decisions = append(decisions, pending{key: key, decision: d})
		}
	}
	e.mu.Unlock()

	for _, p := range decisions {
		e.logger.Debug("Strategy decision",
			zap.String("key", p.key),
			zap.String("decision", p.decision.String()))
		if e.handler != nil {
			e.handler(p.key, p.decision)
		}
	}
}

// run is the decay ticker loop
func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.resolution)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-e.stopChan:
			return
		case now := <-ticker.C:
			e.Tick(now.Sub(last))
			last = now
		}
	}
}
