package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/cluster"
	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/util/workerpool"
)

// Manager is the outbound side of the inter-DC protocol: fan-out RPC to
// peer DCs. Partial failures are aggregated and reported, never retried
// here. Fire-and-forget traffic (gossip, evict signals) runs through the
// worker pool.
type Manager struct {
	membership *cluster.Membership
	pool       *workerpool.WorkerPool
	metrics    *metrics.Metrics
	logger     *zap.Logger

	queryTimeout    time.Duration
	mutationTimeout time.Duration

	clientsMu sync.Mutex
	clients   map[model.DCID]*PeerClient
}

// NewManager creates the inter-DC manager
func NewManager(
	membership *cluster.Membership,
	pool *workerpool.WorkerPool,
	queryTimeout, mutationTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		membership:      membership,
		pool:            pool,
		metrics:         m,
		logger:          logger,
		queryTimeout:    queryTimeout,
		mutationTimeout: mutationTimeout,
		clients:         make(map[model.DCID]*PeerClient),
	}
}

// Peers returns the identities of all currently known peer DCs
func (mgr *Manager) Peers() []model.DCID {
	peers := mgr.membership.Peers()
	ids := make([]model.DCID, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// GossipReplicaLocation tells every known peer that this DC now replicates
// key. Best-effort, fire-and-forget: failures are logged, never surfaced.
func (mgr *Manager) GossipReplicaLocation(key model.Key) {
	self := mgr.membership.Self().ID
	msg := LocationAnnounce{Key: key, From: self}

	for _, peer := range mgr.membership.Peers() {
		peer := peer
		task := workerpool.Task{
			ID: fmt.Sprintf("gossip-%s-%s", peer.ID, key),
			Fn: func(ctx context.Context) error {
				mgr.metrics.RecordGossip("outbound")
				client, err := mgr.client(peer.ID)
				if err != nil {
					return err
				}
				start := time.Now()
				err = client.AnnounceLocation(ctx, msg)
				mgr.metrics.RecordRPC("replica_location", time.Since(start).Seconds())
				if err != nil {
					mgr.metrics.RecordFanoutFailure("replica_location")
				}
				return err
			},
		}
		if !mgr.pool.TrySubmit(task) {
			mgr.logger.Warn("Gossip task rejected, pool saturated",
				zap.String("key", key),
				zap.String("peer", peer.ID))
		}
	}
}

// PushNewReplica instantiates replicas at the given targets, synchronously.
// The caller picks the targets (the first min_dcs_number-1 peers). The
// aggregate of per-target failures is returned for the caller to log.
func (mgr *Manager) PushNewReplica(ctx context.Context, targets []model.DCID, req NewReplicaRequest) error {
	var result *multierror.Error
	for _, dc := range targets {
		if err := mgr.callPeer(ctx, dc, "new_replica", func(ctx context.Context, c *PeerClient) error {
			return c.NewReplica(ctx, req)
		}); err != nil {
			result = multierror.Append(result, fmt.Errorf("push to %s: %w", dc, err))
		}
	}
	return result.ErrorOrNil()
}

// FanOutUpdate delivers one update to every DC in dcs, excluding self.
// Best-effort: the aggregate of per-target failures is returned for the
// caller to log, not to propagate.
func (mgr *Manager) FanOutUpdate(ctx context.Context, dcs []model.DCID, req UpdateRequest) error {
	self := mgr.membership.Self().ID

	var result *multierror.Error
	for _, dc := range dcs {
		if dc == self {
			continue
		}
		if err := mgr.callPeer(ctx, dc, "update", func(ctx context.Context, c *PeerClient) error {
			return c.Update(ctx, req)
		}); err != nil {
			result = multierror.Append(result, fmt.Errorf("update to %s: %w", dc, err))
		}
	}
	return result.ErrorOrNil()
}

// ReadFromAny tries each DC in dcs sequentially and returns the first
// successful value. Returns NoDcs for an empty candidate list, otherwise
// the last error when every candidate fails.
func (mgr *Manager) ReadFromAny(ctx context.Context, key model.Key, dcs []model.DCID) (model.Value, error) {
	self := mgr.membership.Self().ID

	var lastErr error
	tried := 0
	for _, dc := range dcs {
		if dc == self {
			continue
		}
		tried++

		var value model.Value
		err := mgr.callPeer(ctx, dc, "remote_read", func(ctx context.Context, c *PeerClient) error {
			var readErr error
			value, readErr = c.RemoteRead(ctx, key)
			return readErr
		})
		if err == nil {
			mgr.metrics.RecordRemoteRead("ok")
			return value, nil
		}

		lastErr = err
		mgr.logger.Debug("Remote read failed, trying next holder",
			zap.String("key", key),
			zap.String("peer", dc),
			zap.Error(err))
	}

	if tried == 0 {
		mgr.metrics.RecordRemoteRead("no_dcs")
		return nil, errors.NoDcs(key)
	}
	mgr.metrics.RecordRemoteRead("failed")
	return nil, lastErr
}

// BroadcastEvict tells every DC in dcs (excluding self) that this DC
// dropped its replica of key. Fire-and-forget.
func (mgr *Manager) BroadcastEvict(dcs []model.DCID, key model.Key) {
	self := mgr.membership.Self().ID
	msg := EvictSignal{Key: key, From: self}

	for _, dc := range dcs {
		if dc == self {
			continue
		}
		dc := dc
		task := workerpool.Task{
			ID: fmt.Sprintf("evict-%s-%s", dc, key),
			Fn: func(ctx context.Context) error {
				err := mgr.callPeer(ctx, dc, "evict_signal", func(ctx context.Context, c *PeerClient) error {
					return c.SignalEvict(ctx, msg)
				})
				return err
			},
		}
		if !mgr.pool.TrySubmit(task) {
			mgr.logger.Warn("Evict signal task rejected, pool saturated",
				zap.String("key", key),
				zap.String("peer", dc))
		}
	}
}

// callPeer resolves a client for dc and runs one timed RPC against it
func (mgr *Manager) callPeer(ctx context.Context, dc model.DCID, rpc string, fn func(context.Context, *PeerClient) error) error {
	client, err := mgr.client(dc)
	if err != nil {
		mgr.metrics.RecordFanoutFailure(rpc)
		return err
	}

	start := time.Now()
	err = fn(ctx, client)
	mgr.metrics.RecordRPC(rpc, time.Since(start).Seconds())
	if err != nil {
		mgr.metrics.RecordFanoutFailure(rpc)
	}
	return err
}

// client returns the cached client for dc, creating it on first use.
// Membership owns address resolution, so a DC that re-joins with a new
// address gets a fresh client.
func (mgr *Manager) client(dc model.DCID) (*PeerClient, error) {
	peer, ok := mgr.membership.Lookup(dc)
	if !ok {
		return nil, errors.Internal(fmt.Sprintf("unknown peer dc: %s", dc), nil)
	}

	mgr.clientsMu.Lock()
	defer mgr.clientsMu.Unlock()
	if c, ok := mgr.clients[dc]; ok && c.baseURL == "http://"+peer.Addr {
		return c, nil
	}
	c := NewPeerClient(dc, peer.Addr, mgr.queryTimeout, mgr.mutationTimeout, mgr.logger)
	mgr.clients[dc] = c
	return c, nil
}
