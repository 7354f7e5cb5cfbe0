package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/cluster"
	"github.com/ader1990/adpreplic/internal/config"
	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/util/workerpool"
)

// recordingHandlers is a transport.Handlers capturing inbound traffic
type recordingHandlers struct {
	mu        sync.Mutex
	locations []LocationAnnounce
	replicas  []NewReplicaRequest
	updates   []UpdateRequest
	evicts    []EvictSignal
	values    map[model.Key]model.Value
}

func newRecordingHandlers() *recordingHandlers {
	return &recordingHandlers{values: make(map[model.Key]model.Value)}
}

func (h *recordingHandlers) HandleReplicaLocation(key model.Key, from model.DCID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.locations = append(h.locations, LocationAnnounce{Key: key, From: from})
	return nil
}

func (h *recordingHandlers) HandleNewReplica(key model.Key, value model.Value, strategy model.StrategyKind, params model.StrategyParams, dcs []model.DCID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replicas = append(h.replicas, NewReplicaRequest{Key: key, Value: value, Strategy: strategy, Params: params, DCs: dcs})
	h.values[key] = value
	return nil
}

func (h *recordingHandlers) HandleUpdate(key model.Key, value model.Value, params model.StrategyParams, ts model.Timestamp) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, UpdateRequest{Key: key, Value: value, Params: params, Timestamp: ts})
	h.values[key] = value
	return nil
}

func (h *recordingHandlers) HandleRemoteRead(key model.Key) (model.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, ok := h.values[key]
	if !ok {
		return nil, errors.NoReplica(key)
	}
	return value, nil
}

func (h *recordingHandlers) HandleEvictSignal(key model.Key, from model.DCID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evicts = append(h.evicts, EvictSignal{Key: key, From: from})
	return nil
}

// startPeer runs an in-process peer DC and returns its RPC address
func startPeer(t *testing.T, h Handlers) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	m := metrics.NewMetrics("peer", prometheus.NewRegistry())
	RegisterRoutes(router, h, m, zap.NewNop())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func newTestManager(t *testing.T, peers ...config.Peer) (*Manager, *metrics.Metrics) {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.NewMetrics("dc-a", prometheus.NewRegistry())
	membership := cluster.NewMembership(cluster.Peer{ID: "dc-a", Addr: "127.0.0.1:0"}, peers, m, logger)
	pool := workerpool.NewWorkerPool(&workerpool.Config{Name: "test", Logger: logger})
	t.Cleanup(pool.Stop)

	return NewManager(membership, pool, 1*time.Second, 5*time.Second, m, logger), m
}

func TestReadFromAny(t *testing.T) {
	handlers := newRecordingHandlers()
	handlers.values["k"] = []byte("v")
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	value, err := mgr.ReadFromAny(context.Background(), "k", []model.DCID{"dc-b"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), []byte(value))
}

func TestReadFromAnyFailsOver(t *testing.T) {
	handlers := newRecordingHandlers()
	handlers.values["k"] = []byte("v")
	addr := startPeer(t, handlers)

	// dc-b is unreachable, dc-c holds the value
	mgr, _ := newTestManager(t,
		config.Peer{ID: "dc-b", Addr: "127.0.0.1:1"},
		config.Peer{ID: "dc-c", Addr: addr},
	)

	value, err := mgr.ReadFromAny(context.Background(), "k", []model.DCID{"dc-b", "dc-c"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), []byte(value))
}

func TestReadFromAnyNoCandidates(t *testing.T) {
	mgr, _ := newTestManager(t)

	// Self is filtered out, leaving no candidates
	_, err := mgr.ReadFromAny(context.Background(), "k", []model.DCID{"dc-a"})
	assert.True(t, errors.Is(err, errors.ErrCodeNoDcs))
}

func TestReadFromAnyAllFail(t *testing.T) {
	handlers := newRecordingHandlers() // does not hold "k"
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	_, err := mgr.ReadFromAny(context.Background(), "k", []model.DCID{"dc-b"})
	assert.True(t, errors.Is(err, errors.ErrCodeNoReplica))
}

func TestFanOutUpdateDelivers(t *testing.T) {
	handlers := newRecordingHandlers()
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	req := UpdateRequest{
		Key:       "k",
		Value:     []byte("v2"),
		Timestamp: model.Timestamp{WallNanos: 42, DC: "dc-a"},
	}
	// Self in the target set is skipped
	err := mgr.FanOutUpdate(context.Background(), []model.DCID{"dc-a", "dc-b"}, req)
	require.NoError(t, err)

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	require.Len(t, handlers.updates, 1)
	assert.Equal(t, model.Key("k"), handlers.updates[0].Key)
	assert.Equal(t, int64(42), handlers.updates[0].Timestamp.WallNanos)
}

func TestFanOutUpdateReportsPartialFailure(t *testing.T) {
	handlers := newRecordingHandlers()
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t,
		config.Peer{ID: "dc-b", Addr: addr},
		config.Peer{ID: "dc-c", Addr: "127.0.0.1:1"},
	)

	req := UpdateRequest{Key: "k", Value: []byte("v")}
	err := mgr.FanOutUpdate(context.Background(), []model.DCID{"dc-b", "dc-c"}, req)

	// The healthy target was still served
	handlers.mu.Lock()
	delivered := len(handlers.updates)
	handlers.mu.Unlock()
	assert.Equal(t, 1, delivered)

	// The aggregate names the failed target
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dc-c")
}

func TestPushNewReplica(t *testing.T) {
	handlers := newRecordingHandlers()
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	req := NewReplicaRequest{
		Key:      "k",
		Value:    []byte("v"),
		Strategy: model.StrategyAdaptive,
		Params:   model.StrategyParams{ReplThreshold: 100, MaxStrength: 1000},
		DCs:      []model.DCID{"dc-a", "dc-b"},
	}
	require.NoError(t, mgr.PushNewReplica(context.Background(), []model.DCID{"dc-b"}, req))

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	require.Len(t, handlers.replicas, 1)
	assert.Equal(t, []model.DCID{"dc-a", "dc-b"}, handlers.replicas[0].DCs)
	assert.Equal(t, float64(100), handlers.replicas[0].Params.ReplThreshold)
}

func TestGossipReplicaLocationIsAsync(t *testing.T) {
	handlers := newRecordingHandlers()
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	mgr.GossipReplicaLocation("k")

	require.Eventually(t, func() bool {
		handlers.mu.Lock()
		defer handlers.mu.Unlock()
		return len(handlers.locations) == 1
	}, 2*time.Second, 10*time.Millisecond)

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	assert.Equal(t, LocationAnnounce{Key: "k", From: "dc-a"}, handlers.locations[0])
}

func TestBroadcastEvictIsAsync(t *testing.T) {
	handlers := newRecordingHandlers()
	addr := startPeer(t, handlers)

	mgr, _ := newTestManager(t, config.Peer{ID: "dc-b", Addr: addr})

	mgr.BroadcastEvict([]model.DCID{"dc-a", "dc-b"}, "k")

	require.Eventually(t, func() bool {
		handlers.mu.Lock()
		defer handlers.mu.Unlock()
		return len(handlers.evicts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	assert.Equal(t, EvictSignal{Key: "k", From: "dc-a"}, handlers.evicts[0])
}

func TestPeers(t *testing.T) {
	mgr, _ := newTestManager(t,
		config.Peer{ID: "dc-b", Addr: "127.0.0.1:1"},
		config.Peer{ID: "dc-c", Addr: "127.0.0.1:2"},
	)
	assert.ElementsMatch(t, []model.DCID{"dc-b", "dc-c"}, mgr.Peers())
}

func TestUnknownTargetIsReported(t *testing.T) {
	mgr, _ := newTestManager(t)

	err := mgr.FanOutUpdate(context.Background(), []model.DCID{"dc-x"}, UpdateRequest{Key: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dc-x")
}
