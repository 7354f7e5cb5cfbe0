package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one DC instance
type Metrics struct {
	// Client operation metrics
	ClientOpsTotal    prometheus.CounterVec
	ClientOpsDuration prometheus.HistogramVec

	// Replication decision metrics
	ReplicasAdmittedTotal    prometheus.Counter
	ReplicasEvictedTotal     prometheus.Counter
	LastReplicaRetainedTotal prometheus.Counter
	StrengthDecaysTotal      prometheus.Counter

	// Inter-DC RPC metrics
	RemoteReadsTotal    prometheus.CounterVec
	FanoutFailuresTotal prometheus.CounterVec
	RPCDuration         prometheus.HistogramVec
	InboundRPCTotal     prometheus.CounterVec
	GossipMessagesTotal prometheus.CounterVec

	// Registry metrics
	RegistryEntriesTotal prometheus.Gauge
	ReplicatedKeysTotal  prometheus.Gauge

	// Membership metrics
	MembersTotal prometheus.Gauge

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	CPUUsagePercent  prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(dcID string, reg prometheus.Registerer) *Metrics {
	labels := prometheus.Labels{"dc_id": dcID}
	factory := promauto.With(reg)

	return &Metrics{
		ClientOpsTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "replica",
			Name:        "client_ops_total",
			Help:        "Total number of client operations by type and outcome",
			ConstLabels: labels,
		}, []string{"op", "outcome"}),
		ClientOpsDuration: *factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "adpreplic",
			Subsystem:   "replica",
			Name:        "client_ops_duration_seconds",
			Help:        "Histogram of client operation durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"op"}),
		ReplicasAdmittedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "strategy",
			Name:        "replicas_admitted_total",
			Help:        "Total number of replicas admitted locally by access pressure",
			ConstLabels: labels,
		}),
		ReplicasEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "strategy",
			Name:        "replicas_evicted_total",
			Help:        "Total number of local replicas dropped by strength decay",
			ConstLabels: labels,
		}),
		LastReplicaRetainedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "strategy",
			Name:        "last_replica_retained_total",
			Help:        "Total number of eviction decisions overridden to keep the last replica",
			ConstLabels: labels,
		}),
		StrengthDecaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "strategy",
			Name:        "strength_decays_total",
			Help:        "Total number of per-key strength decay ticks applied",
			ConstLabels: labels,
		}),
		RemoteReadsTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "interdc",
			Name:        "remote_reads_total",
			Help:        "Total number of remote reads by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		FanoutFailuresTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "interdc",
			Name:        "fanout_failures_total",
			Help:        "Total number of per-target fan-out failures by rpc",
			ConstLabels: labels,
		}, []string{"rpc"}),
		RPCDuration: *factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "adpreplic",
			Subsystem:   "interdc",
			Name:        "rpc_duration_seconds",
			Help:        "Histogram of outbound RPC durations by rpc",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"rpc"}),
		InboundRPCTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "interdc",
			Name:        "inbound_rpc_total",
			Help:        "Total number of inbound peer RPCs by rpc",
			ConstLabels: labels,
		}, []string{"rpc"}),
		GossipMessagesTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adpreplic",
			Subsystem:   "interdc",
			Name:        "gossip_messages_total",
			Help:        "Total number of replica-location gossip messages by direction",
			ConstLabels: labels,
		}, []string{"direction"}),
		RegistryEntriesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "registry",
			Name:        "entries_total",
			Help:        "Current number of keys known to the replica registry",
			ConstLabels: labels,
		}),
		ReplicatedKeysTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "registry",
			Name:        "replicated_keys_total",
			Help:        "Current number of keys replicated locally",
			ConstLabels: labels,
		}),
		MembersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "cluster",
			Name:        "members_total",
			Help:        "Current number of known peer DCs",
			ConstLabels: labels,
		}),
		MemoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "system",
			Name:        "memory_usage_bytes",
			Help:        "Current memory usage in bytes",
			ConstLabels: labels,
		}),
		CPUUsagePercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "system",
			Name:        "cpu_usage_percent",
			Help:        "Current CPU usage percentage",
			ConstLabels: labels,
		}),
		GoroutinesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adpreplic",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// RecordClientOp records one client operation
func (m *Metrics) RecordClientOp(op, outcome string, duration float64) {
	m.ClientOpsTotal.WithLabelValues(op, outcome).Inc()
	m.ClientOpsDuration.WithLabelValues(op).Observe(duration)
}

// RecordAdmission records a replica admission
func (m *Metrics) RecordAdmission() {
	m.ReplicasAdmittedTotal.Inc()
}

// RecordEviction records a decay-driven eviction
func (m *Metrics) RecordEviction() {
	m.ReplicasEvictedTotal.Inc()
}

// RecordLastReplicaRetained records an overridden eviction decision
func (m *Metrics) RecordLastReplicaRetained() {
	m.LastReplicaRetainedTotal.Inc()
}

// RecordRemoteRead records a remote read outcome
func (m *Metrics) RecordRemoteRead(outcome string) {
	m.RemoteReadsTotal.WithLabelValues(outcome).Inc()
}

// RecordFanoutFailure records one failed fan-out target
func (m *Metrics) RecordFanoutFailure(rpc string) {
	m.FanoutFailuresTotal.WithLabelValues(rpc).Inc()
}

// RecordRPC records an outbound RPC duration
func (m *Metrics) RecordRPC(rpc string, duration float64) {
	m.RPCDuration.WithLabelValues(rpc).Observe(duration)
}

// RecordInboundRPC records one inbound peer RPC
func (m *Metrics) RecordInboundRPC(rpc string) {
	m.InboundRPCTotal.WithLabelValues(rpc).Inc()
}

// RecordGossip records one gossip message
func (m *Metrics) RecordGossip(direction string) {
	m.GossipMessagesTotal.WithLabelValues(direction).Inc()
}

// UpdateRegistryStats updates registry gauges
func (m *Metrics) UpdateRegistryStats(entries, replicated int) {
	m.RegistryEntriesTotal.Set(float64(entries))
	m.ReplicatedKeysTotal.Set(float64(replicated))
}

// UpdateMembers updates the known peer gauge
func (m *Metrics) UpdateMembers(count int) {
	m.MembersTotal.Set(float64(count))
}

// UpdateSystemStats updates system-level gauges
func (m *Metrics) UpdateSystemStats(memoryBytes uint64, cpuPercent float64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryBytes))
	m.CPUUsagePercent.Set(cpuPercent)
	m.GoroutinesTotal.Set(float64(goroutines))
}
