package transport

import "github.com/ader1990/adpreplic/internal/model"

// Wire messages for the inter-DC RPC surface. Values travel base64-encoded
// inside JSON bodies; timestamps travel as their full triple so receivers
// can apply last-writer-wins without re-stamping.

// LocationAnnounce tells a peer that the sender now replicates a key
type LocationAnnounce struct {
	Key  model.Key  `json:"key"`
	From model.DCID `json:"from"`
}

// NewReplicaRequest instantiates a replica at the receiver
type NewReplicaRequest struct {
	Key      model.Key            `json:"key"`
	Value    model.Value          `json:"value"`
	Strategy model.StrategyKind   `json:"strategy"`
	Params   model.StrategyParams `json:"params"`
	DCs      []model.DCID         `json:"dcs"`
}

// UpdateRequest carries one fan-out update
type UpdateRequest struct {
	Key       model.Key            `json:"key"`
	Value     model.Value          `json:"value"`
	Params    model.StrategyParams `json:"params"`
	Timestamp model.Timestamp      `json:"ts"`
}

// EvictSignal tells a peer that the sender dropped its replica of a key
type EvictSignal struct {
	Key  model.Key  `json:"key"`
	From model.DCID `json:"from"`
}

// ReadResponse carries a remotely served value
type ReadResponse struct {
	Key   model.Key   `json:"key"`
	Value model.Value `json:"value"`
}

// ErrorResponse is the JSON error body peers return on failure
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusResponse acknowledges a state-changing call
type StatusResponse struct {
	Status string `json:"status"`
}
