package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/clock"
	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/registry"
	"github.com/ader1990/adpreplic/internal/store"
	"github.com/ader1990/adpreplic/internal/strategy"
	"github.com/ader1990/adpreplic/internal/transport"
	"github.com/ader1990/adpreplic/internal/util/keylock"
)

// InterDC is the outbound coordination surface the manager drives.
// Implemented by transport.Manager; faked in tests.
type InterDC interface {
	GossipReplicaLocation(key model.Key)
	PushNewReplica(ctx context.Context, targets []model.DCID, req transport.NewReplicaRequest) error
	FanOutUpdate(ctx context.Context, dcs []model.DCID, req transport.UpdateRequest) error
	ReadFromAny(ctx context.Context, key model.Key, dcs []model.DCID) (model.Value, error)
	BroadcastEvict(dcs []model.DCID, key model.Key)
	Peers() []model.DCID
}

// Manager is the client-facing facade. It serializes every operation per
// key and orchestrates the value store, the registry, the strategy engine
// and the inter-DC manager.
type Manager struct {
	self     model.DCID
	defaults model.StrategyParams

	values   *store.ValueStore
	registry *registry.Registry
	engine   *strategy.Engine
	interDC  InterDC
	clock    *clock.Clock
	locks    *keylock.KeyLock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewManager creates the replica manager and registers it as the engine's
// decision handler.
func NewManager(
	self model.DCID,
	defaults model.StrategyParams,
	values *store.ValueStore,
	reg *registry.Registry,
	engine *strategy.Engine,
	interDC InterDC,
	clk *clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Manager {
	mgr := &Manager{
		self:     self,
		defaults: defaults,
		values:   values,
		registry: reg,
		engine:   engine,
		interDC:  interDC,
		clock:    clk,
		locks:    keylock.New(),
		metrics:  m,
		logger:   logger,
	}
	engine.SetDecisionHandler(mgr.onDecision)
	return mgr
}

// Create registers a new key with this DC as its first replica holder and
// pushes min_dcs_number-1 additional replicas to peers.
func (m *Manager) Create(ctx context.Context, key model.Key, value model.Value, kind model.StrategyKind, params model.StrategyParams) error {
	start := time.Now()
	unlock := m.locks.Lock(key)
	defer unlock()

	if _, err := m.registry.Read(key); err == nil {
		m.metrics.RecordClientOp("create", "already_exists", time.Since(start).Seconds())
		return errors.AlreadyExists(key)
	}

	if err := m.engine.InitStrategy(key, kind, true, params); err != nil {
		m.metrics.RecordClientOp("create", "error", time.Since(start).Seconds())
		return err
	}

	record := &model.ReplicaRecord{
		Key:        key,
		Replicated: true,
		Strength:   params.ReplThreshold,
		Strategy:   kind,
		Params:     params,
		DCs:        []model.DCID{m.self},
		LastUpdate: m.clock.Now(),
	}

	targets := m.pickReplicaTargets(params.MinDCsNumber - 1)
	for _, dc := range targets {
		record.AddDC(dc)
	}

	if err := m.registry.Create(key, record); err != nil {
		m.metrics.RecordClientOp("create", "error", time.Since(start).Seconds())
		return err
	}
	if err := m.values.Put(key, value); err != nil {
		m.metrics.RecordClientOp("create", "error", time.Since(start).Seconds())
		return err
	}

	m.interDC.GossipReplicaLocation(key)

	if len(targets) > 0 {
		req := transport.NewReplicaRequest{
			Key:      key,
			Value:    value,
			Strategy: kind,
			Params:   params,
			DCs:      append([]model.DCID(nil), record.DCs...),
		}
		if err := m.interDC.PushNewReplica(ctx, targets, req); err != nil {
			m.logger.Warn("Partial failure pushing initial replicas",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	m.syncStats()
	m.metrics.RecordClientOp("create", "ok", time.Since(start).Seconds())
	m.logger.Info("Key created",
		zap.String("key", key),
		zap.Int("replica_dcs", len(record.DCs)))
	return nil
}

// Read serves a value locally when replicated, otherwise from any peer
// holding a replica. Read pressure can admit a local replica.
func (m *Manager) Read(ctx context.Context, key model.Key) (model.Value, error) {
	start := time.Now()
	unlock := m.locks.Lock(key)
	defer unlock()

	decision := m.engine.LocalRead(key)
	m.registry.SetStrength(key, m.engine.Strength(key))

	if value, err := m.values.Get(key); err == nil {
		m.metrics.RecordClientOp("read", "ok", time.Since(start).Seconds())
		return value, nil
	}

	record, err := m.registry.Read(key)
	if err != nil {
		m.metrics.RecordClientOp("read", "not_found", time.Since(start).Seconds())
		return nil, errors.NotFound(key)
	}
	holders := record.RemotePeers(m.self)
	if len(holders) == 0 {
		m.metrics.RecordClientOp("read", "not_found", time.Since(start).Seconds())
		return nil, errors.NotFound(key)
	}

	if ctx.Err() != nil {
		m.metrics.RecordClientOp("read", "aborted", time.Since(start).Seconds())
		return nil, errors.Aborted(key, ctx.Err())
	}

	value, err := m.interDC.ReadFromAny(ctx, key, holders)
	if err != nil {
		m.metrics.RecordClientOp("read", "error", time.Since(start).Seconds())
		return nil, err
	}

	if decision == strategy.ShouldReplicate {
		if admitErr := m.admit(key, record, value); admitErr != nil {
			m.logger.Warn("Failed to admit replica after remote read",
				zap.String("key", key),
				zap.Error(admitErr))
		}
	}

	m.metrics.RecordClientOp("read", "ok", time.Since(start).Seconds())
	return value, nil
}

// Update writes a new value locally when replicated and fans the update
// out to every other holder, best-effort.
func (m *Manager) Update(ctx context.Context, key model.Key, value model.Value) error {
	start := time.Now()
	unlock := m.locks.Lock(key)
	defer unlock()

	ts := m.clock.Now()
	decision := m.engine.LocalWrite(key)
	m.registry.SetStrength(key, m.engine.Strength(key))

	record, err := m.registry.Read(key)
	if err != nil {
		m.metrics.RecordClientOp("update", "not_found", time.Since(start).Seconds())
		return errors.NotFound(key)
	}

	if record.Replicated {
		if err := m.values.Put(key, value); err != nil {
			m.metrics.RecordClientOp("update", "error", time.Since(start).Seconds())
			return err
		}
		record.LastUpdate = ts
		record.Strength = m.engine.Strength(key)
		if err := m.registry.Update(key, record); err != nil {
			m.metrics.RecordClientOp("update", "error", time.Since(start).Seconds())
			return err
		}
	} else if decision == strategy.ShouldReplicate {
		if admitErr := m.admit(key, record, value); admitErr != nil {
			m.logger.Warn("Failed to admit replica on write pressure",
				zap.String("key", key),
				zap.Error(admitErr))
		} else {
			record, _ = m.registry.Read(key)
		}
	}

	req := transport.UpdateRequest{
		Key:       key,
		Value:     value,
		Params:    record.Params,
		Timestamp: ts,
	}
	if err := m.interDC.FanOutUpdate(ctx, record.RemotePeers(m.self), req); err != nil {
		m.logger.Warn("Partial failure fanning out update",
			zap.String("key", key),
			zap.Error(err))
	}

	m.metrics.RecordClientOp("update", "ok", time.Since(start).Seconds())
	return nil
}

// RemoveReplica drops this DC's local copy; the key persists globally at
// the remaining holders.
func (m *Manager) RemoveReplica(key model.Key) error {
	start := time.Now()
	unlock := m.locks.Lock(key)
	defer unlock()

	record, err := m.registry.Read(key)
	if err != nil {
		m.metrics.RecordClientOp("remove_replica", "ok", time.Since(start).Seconds())
		return nil
	}

	if err := m.dropLocalReplica(key, record); err != nil {
		m.metrics.RecordClientOp("remove_replica", "error", time.Since(start).Seconds())
		return err
	}

	m.metrics.RecordClientOp("remove_replica", "ok", time.Since(start).Seconds())
	return nil
}

// AddDCToReplica records that dc holds a replica of key. Creates a
// non-replicated stub when the key is unknown here.
func (m *Manager) AddDCToReplica(key model.Key, dc model.DCID) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	record, err := m.registry.Read(key)
	if err != nil {
		record = &model.ReplicaRecord{
			Key:        key,
			Replicated: false,
			Strength:   0,
			Strategy:   model.StrategyAdaptive,
			Params:     m.defaults,
			DCs:        []model.DCID{dc},
			LastUpdate: m.clock.Now(),
		}
		if err := m.engine.InitStrategy(key, record.Strategy, false, record.Params); err != nil {
			return err
		}
		if err := m.registry.Create(key, record); err != nil {
			return err
		}
		m.syncStats()
		return nil
	}

	record.AddDC(dc)
	if err := m.registry.Update(key, record); err != nil {
		return err
	}
	return nil
}

// RemoveDCFromReplica removes dc from the key's replica set. Idempotent.
func (m *Manager) RemoveDCFromReplica(key model.Key, dc model.DCID) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	record, err := m.registry.Read(key)
	if err != nil {
		return nil
	}
	record.RemoveDC(dc)
	return m.registry.Update(key, record)
}

// HandleReplicaLocation implements transport.Handlers
func (m *Manager) HandleReplicaLocation(key model.Key, from model.DCID) error {
	return m.AddDCToReplica(key, from)
}

// HandleNewReplica implements transport.Handlers. A RemoteOnly stub is
// upgraded in place; a key already replicated here reports AlreadyExists.
func (m *Manager) HandleNewReplica(key model.Key, value model.Value, kind model.StrategyKind, params model.StrategyParams, dcs []model.DCID) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	existing, err := m.registry.Read(key)
	if err == nil && existing.Replicated {
		return errors.AlreadyExists(key)
	}

	if err := m.engine.InitStrategy(key, kind, true, params); err != nil {
		return err
	}
	m.engine.SetReplicated(key, true)

	record := &model.ReplicaRecord{
		Key:        key,
		Replicated: true,
		Strength:   params.ReplThreshold,
		Strategy:   kind,
		Params:     params,
		DCs:        append([]model.DCID(nil), dcs...),
		LastUpdate: m.clock.Now(),
	}
	record.AddDC(m.self)

	if existing == nil {
		err = m.registry.Create(key, record)
	} else {
		err = m.registry.Update(key, record)
	}
	if err != nil {
		return err
	}
	if err := m.values.Put(key, value); err != nil {
		return err
	}

	m.syncStats()
	m.logger.Info("Replica instantiated by peer push",
		zap.String("key", key),
		zap.Int("replica_dcs", len(record.DCs)))
	return nil
}

// HandleUpdate implements transport.Handlers: last-writer-wins by
// timestamp, stale updates are dropped without error.
func (m *Manager) HandleUpdate(key model.Key, value model.Value, params model.StrategyParams, ts model.Timestamp) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	record, err := m.registry.Read(key)
	if err != nil || !record.Replicated {
		return errors.NoReplica(key)
	}

	if !ts.After(record.LastUpdate) {
		m.logger.Debug("Dropping stale update",
			zap.String("key", key),
			zap.String("from", ts.DC))
		return nil
	}

	if err := m.values.Put(key, value); err != nil {
		return err
	}
	record.LastUpdate = ts
	if err := m.registry.Update(key, record); err != nil {
		return err
	}
	m.clock.Observe(ts)
	return nil
}

// HandleRemoteRead implements transport.Handlers
func (m *Manager) HandleRemoteRead(key model.Key) (model.Value, error) {
	value, err := m.values.Get(key)
	if err != nil {
		return nil, errors.NoReplica(key)
	}
	return value, nil
}

// HandleEvictSignal implements transport.Handlers
func (m *Manager) HandleEvictSignal(key model.Key, from model.DCID) error {
	return m.RemoveDCFromReplica(key, from)
}

// DefaultParams returns the configured default strategy parameters
func (m *Manager) DefaultParams() model.StrategyParams {
	return m.defaults
}

// onDecision applies tick-driven strategy decisions. The engine never
// evicts on its own: the last-replica guard lives here.
func (m *Manager) onDecision(key model.Key, decision strategy.Decision) {
	if decision != strategy.ShouldEvict {
		return
	}

	unlock := m.locks.Lock(key)
	defer unlock()

	record, err := m.registry.Read(key)
	if err != nil || !record.Replicated {
		return
	}

	if len(record.DCs) <= 1 {
		m.metrics.RecordLastReplicaRetained()
		m.logger.Info("Last replica retained despite low strength",
			zap.String("key", key),
			zap.Float64("strength", m.engine.Strength(key)))
		return
	}

	if err := m.dropLocalReplica(key, record); err != nil {
		m.logger.Warn("Decay-driven eviction failed",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	m.metrics.RecordEviction()
	m.logger.Info("Replica evicted by strength decay", zap.String("key", key))
}

// admit instates a local replica for key with the given value. Callers
// hold the key lock and pass the current record.
func (m *Manager) admit(key model.Key, record *model.ReplicaRecord, value model.Value) error {
	if err := m.values.Put(key, value); err != nil {
		return err
	}
	m.engine.SetReplicated(key, true)

	record.Replicated = true
	record.AddDC(m.self)
	record.Strength = m.engine.Strength(key)
	if err := m.registry.Update(key, record); err != nil {
		return err
	}

	m.interDC.GossipReplicaLocation(key)
	m.metrics.RecordAdmission()
	m.syncStats()
	m.logger.Info("Replica admitted by access pressure",
		zap.String("key", key),
		zap.Float64("strength", record.Strength))
	return nil
}

// dropLocalReplica removes the local copy and tells the other holders.
// Callers hold the key lock.
func (m *Manager) dropLocalReplica(key model.Key, record *model.ReplicaRecord) error {
	if err := m.values.Remove(key); err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
		return err
	}
	m.engine.SetReplicated(key, false)

	record.Replicated = false
	record.Strength = 0
	record.RemoveDC(m.self)
	if err := m.registry.Update(key, record); err != nil {
		return err
	}

	m.interDC.BroadcastEvict(record.RemotePeers(m.self), key)
	m.syncStats()
	return nil
}

// pickReplicaTargets selects up to n peers for initial replica placement
func (m *Manager) pickReplicaTargets(n int) []model.DCID {
	if n <= 0 {
		return nil
	}
	peers := m.interDC.Peers()
	if len(peers) > n {
		peers = peers[:n]
	}
	return peers
}

func (m *Manager) syncStats() {
	entries, replicated := m.registry.Stats()
	m.metrics.UpdateRegistryStats(entries, replicated)
}
