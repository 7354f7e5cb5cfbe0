package cluster

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/config"
	"github.com/ader1990/adpreplic/internal/metrics"
)

func newMembership(t *testing.T, static []config.Peer) (*Membership, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("dc-a", prometheus.NewRegistry())
	self := Peer{ID: "dc-a", Addr: "10.0.0.1:7420"}
	return NewMembership(self, static, m, zap.NewNop()), m
}

func TestStaticPeersExcludeSelf(t *testing.T) {
	ms, m := newMembership(t, []config.Peer{
		{ID: "dc-a", Addr: "10.0.0.1:7420"},
		{ID: "dc-b", Addr: "10.0.0.2:7420"},
		{ID: "dc-c", Addr: "10.0.0.3:7420"},
	})

	peers := ms.Peers()
	assert.Len(t, peers, 2)
	for _, p := range peers {
		assert.NotEqual(t, "dc-a", p.ID)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MembersTotal))
}

func TestLookup(t *testing.T) {
	ms, _ := newMembership(t, []config.Peer{{ID: "dc-b", Addr: "10.0.0.2:7420"}})

	peer, ok := ms.Lookup("dc-b")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2:7420", peer.Addr)

	_, ok = ms.Lookup("dc-x")
	assert.False(t, ok)
}

func TestDynamicPeerChurn(t *testing.T) {
	ms, m := newMembership(t, nil)

	ms.addPeer(Peer{ID: "dc-b", Addr: "10.0.0.2:7420"})
	ms.addPeer(Peer{ID: "dc-b", Addr: "10.0.0.2:7420"}) // idempotent
	ms.addPeer(Peer{ID: "dc-a", Addr: "10.0.0.1:7420"}) // self, ignored

	assert.Len(t, ms.Peers(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MembersTotal))

	ms.removePeer("dc-b")
	ms.removePeer("dc-b") // idempotent
	assert.Empty(t, ms.Peers())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.MembersTotal))
}

func TestSelf(t *testing.T) {
	ms, _ := newMembership(t, nil)
	assert.Equal(t, Peer{ID: "dc-a", Addr: "10.0.0.1:7420"}, ms.Self())
}
