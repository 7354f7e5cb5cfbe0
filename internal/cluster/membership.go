package cluster

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/config"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
)

// Peer is one reachable data center
type Peer struct {
	ID   model.DCID
	Addr string // host:port of the peer's RPC server
}

// nodeMeta is the memberlist node metadata announcing a DC's RPC address
type nodeMeta struct {
	DCID    string `json:"dc_id"`
	RPCAddr string `json:"rpc_addr"`
}

// Membership tracks the set of participating DCs. The static DC list file
// seeds the set; the optional memberlist layer discovers joins and leaves
// at runtime.
type Membership struct {
	self       Peer
	logger     *zap.Logger
	metrics    *metrics.Metrics
	memberlist *memberlist.Memberlist

	mu    sync.RWMutex
	peers map[model.DCID]Peer
}

// NewMembership seeds membership from the static peer list. Self is
// excluded from the peer set.
func NewMembership(self Peer, static []config.Peer, m *metrics.Metrics, logger *zap.Logger) *Membership {
	ms := &Membership{
		self:    self,
		logger:  logger,
		metrics: m,
		peers:   make(map[model.DCID]Peer),
	}
	for _, p := range static {
		if p.ID == self.ID {
			continue
		}
		ms.peers[p.ID] = Peer{ID: p.ID, Addr: p.Addr}
	}
	m.UpdateMembers(len(ms.peers))
	return ms
}

// StartGossip joins the memberlist cluster for runtime discovery. The seed
// join retries with exponential backoff; this is a control-plane handshake,
// the one place where retries belong.
func (ms *Membership) StartGossip(cfg config.GossipConfig) error {
	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = ms.self.ID
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.GossipInterval = cfg.GossipInterval
	mlConfig.ProbeTimeout = cfg.ProbeTimeout
	mlConfig.ProbeInterval = cfg.ProbeInterval
	mlConfig.Delegate = &memberDelegate{membership: ms}
	mlConfig.Events = &memberEventDelegate{membership: ms}
	mlConfig.LogOutput = zapWriter{logger: ms.logger}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return fmt.Errorf("failed to create memberlist: %w", err)
	}
	ms.memberlist = ml

	if len(cfg.SeedNodes) > 0 {
		policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.JoinRetries))
		join := func() error {
			_, err := ml.Join(cfg.SeedNodes)
			return err
		}
		if err := backoff.Retry(join, policy); err != nil {
			ms.logger.Warn("Failed to join seed nodes, continuing with static peers",
				zap.Strings("seeds", cfg.SeedNodes),
				zap.Error(err))
		}
	}

	return nil
}

// Shutdown leaves the gossip cluster
func (ms *Membership) Shutdown() error {
	if ms.memberlist == nil {
		return nil
	}
	if err := ms.memberlist.Leave(2 * time.Second); err != nil {
		ms.logger.Warn("Memberlist leave failed", zap.Error(err))
	}
	return ms.memberlist.Shutdown()
}

// Self returns this DC's identity
func (ms *Membership) Self() Peer {
	return ms.self
}

// Peers returns all known peer DCs, excluding self
func (ms *Membership) Peers() []Peer {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	peers := make([]Peer, 0, len(ms.peers))
	for _, p := range ms.peers {
		peers = append(peers, p)
	}
	return peers
}

// Lookup resolves a DC id to its RPC address
func (ms *Membership) Lookup(dc model.DCID) (Peer, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, ok := ms.peers[dc]
	return p, ok
}

func (ms *Membership) addPeer(p Peer) {
	if p.ID == ms.self.ID {
		return
	}
	ms.mu.Lock()
	ms.peers[p.ID] = p
	count := len(ms.peers)
	ms.mu.Unlock()

	ms.metrics.UpdateMembers(count)
	ms.logger.Info("Peer DC joined",
		zap.String("dc_id", p.ID),
		zap.String("rpc_addr", p.Addr))
}

func (ms *Membership) removePeer(id model.DCID) {
	ms.mu.Lock()
	_, ok := ms.peers[id]
	delete(ms.peers, id)
	count := len(ms.peers)
	ms.mu.Unlock()

	if ok {
		ms.metrics.UpdateMembers(count)
		ms.logger.Info("Peer DC left", zap.String("dc_id", id))
	}
}

// memberDelegate implements memberlist.Delegate
type memberDelegate struct {
	membership *Membership
}

// NodeMeta implements memberlist.Delegate
func (d *memberDelegate) NodeMeta(limit int) []byte {
	data, _ := json.Marshal(nodeMeta{
		DCID:    d.membership.self.ID,
		RPCAddr: d.membership.self.Addr,
	})
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// NotifyMsg implements memberlist.Delegate
func (d *memberDelegate) NotifyMsg(data []byte) {}

// GetBroadcasts implements memberlist.Delegate
func (d *memberDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState implements memberlist.Delegate
func (d *memberDelegate) LocalState(join bool) []byte {
	return nil
}

// MergeRemoteState implements memberlist.Delegate
func (d *memberDelegate) MergeRemoteState(buf []byte, join bool) {}

// memberEventDelegate handles memberlist events
type memberEventDelegate struct {
	membership *Membership
}

// NotifyJoin is called when a node joins
func (d *memberEventDelegate) NotifyJoin(node *memberlist.Node) {
	var meta nodeMeta
	if err := json.Unmarshal(node.Meta, &meta); err != nil || meta.DCID == "" {
		d.membership.logger.Warn("Joining node carries no usable metadata",
			zap.String("node", node.Name))
		return
	}
	d.membership.addPeer(Peer{ID: meta.DCID, Addr: meta.RPCAddr})
}

// NotifyLeave is called when a node leaves
func (d *memberEventDelegate) NotifyLeave(node *memberlist.Node) {
	d.membership.removePeer(node.Name)
}

// NotifyUpdate is called when a node's metadata changes
func (d *memberEventDelegate) NotifyUpdate(node *memberlist.Node) {
	var meta nodeMeta
	if err := json.Unmarshal(node.Meta, &meta); err != nil || meta.DCID == "" {
		return
	}
	d.membership.addPeer(Peer{ID: meta.DCID, Addr: meta.RPCAddr})
}

// zapWriter adapts memberlist's log output onto zap
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Write(p []byte) (int, error) {
	w.logger.Debug("memberlist", zap.ByteString("line", p))
	return len(p), nil
}
