package model

// Key identifies a replicated item. Keys are opaque to the controller.
type Key = string

// Value is an opaque payload. Each update supersedes the previous value.
type Value = []byte

// DCID is the stable identity of a participating data center.
type DCID = string

// StrategyKind selects which policy variant governs a key.
type StrategyKind string

const (
	// StrategyAdaptive is the decaying-strength admit/evict policy.
	StrategyAdaptive StrategyKind = "adaptive"
)

// Timestamp is a monotonic triple used for last-writer-wins ordering of
// update fan-out. Comparison order: wall clock, per-process counter, DC id.
type Timestamp struct {
	WallNanos int64  `json:"wall_nanos"`
	Counter   uint64 `json:"counter"`
	DC        DCID   `json:"dc"`
}

// Compare returns -1, 0 or 1 if t is older than, equal to or newer than o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.WallNanos < o.WallNanos:
		return -1
	case t.WallNanos > o.WallNanos:
		return 1
	}
	switch {
	case t.Counter < o.Counter:
		return -1
	case t.Counter > o.Counter:
		return 1
	}
	switch {
	case t.DC < o.DC:
		return -1
	case t.DC > o.DC:
		return 1
	}
	return 0
}

// After reports whether t wins over o under last-writer-wins.
func (t Timestamp) After(o Timestamp) bool {
	return t.Compare(o) > 0
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool {
	return t.WallNanos == 0 && t.Counter == 0 && t.DC == ""
}

// StrategyParams configures the adaptive-decay policy for one key.
// Immutable once set unless reconfigured through an administrative path.
type StrategyParams struct {
	DecayTime     int64   `json:"decay_time" yaml:"decay_time"`         // ticks between decrements, in milliseconds
	DecayFactor   float64 `json:"decay_factor" yaml:"decay_factor"`     // strength decrement per tick
	ReplThreshold float64 `json:"repl_threshold" yaml:"repl_threshold"` // admit at or above
	RmvThreshold  float64 `json:"rmv_threshold" yaml:"rmv_threshold"`   // evict at or below
	MaxStrength   float64 `json:"max_strength" yaml:"max_strength"`
	RStrength     float64 `json:"rstrength" yaml:"rstrength"` // gain per local read
	WStrength     float64 `json:"wstrength" yaml:"wstrength"` // gain per local write
	MinDCsNumber  int     `json:"min_dcs_number" yaml:"min_dcs_number"`
}

// ReplicaRecord is the registry entry for one key at this DC.
type ReplicaRecord struct {
	Key        Key            `json:"key"`
	Replicated bool           `json:"replicated"`
	Strength   float64        `json:"-"` // volatile, never persisted
	Strategy   StrategyKind   `json:"strategy"`
	Params     StrategyParams `json:"params"`
	DCs        []DCID         `json:"dcs"`
	LastUpdate Timestamp      `json:"last_update_ts"`
}

// HasDC reports whether dc is in the record's replica set.
func (r *ReplicaRecord) HasDC(dc DCID) bool {
	for _, d := range r.DCs {
		if d == dc {
			return true
		}
	}
	return false
}

// AddDC inserts dc into the replica set. Idempotent.
func (r *ReplicaRecord) AddDC(dc DCID) {
	if !r.HasDC(dc) {
		r.DCs = append(r.DCs, dc)
	}
}

// RemoveDC deletes dc from the replica set. Idempotent.
func (r *ReplicaRecord) RemoveDC(dc DCID) {
	for i, d := range r.DCs {
		if d == dc {
			r.DCs = append(r.DCs[:i], r.DCs[i+1:]...)
			return
		}
	}
}

// RemotePeers returns the replica set without self, preserving order.
func (r *ReplicaRecord) RemotePeers(self DCID) []DCID {
	peers := make([]DCID, 0, len(r.DCs))
	for _, d := range r.DCs {
		if d != self {
			peers = append(peers, d)
		}
	}
	return peers
}

// Clone returns a deep copy. Registry reads hand out clones so callers
// never mutate registry-owned state directly.
func (r *ReplicaRecord) Clone() *ReplicaRecord {
	cp := *r
	cp.DCs = append([]DCID(nil), r.DCs...)
	return &cp
}
