package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/model"
)

// PeerClient issues RPCs to one peer DC. Every call carries a bounded
// timeout; the circuit breaker stops hammering a partitioned peer once the
// failure rate trips it. The client never retries — retries are the
// orchestrator's choice.
type PeerClient struct {
	dc              model.DCID
	baseURL         string
	httpClient      *http.Client
	cb              *gobreaker.CircuitBreaker
	queryTimeout    time.Duration
	mutationTimeout time.Duration
	logger          *zap.Logger
}

// NewPeerClient creates a client for the peer at addr (host:port)
func NewPeerClient(dc model.DCID, addr string, queryTimeout, mutationTimeout time.Duration, logger *zap.Logger) *PeerClient {
	cbSettings := gobreaker.Settings{
		Name:        fmt.Sprintf("peer-%s", dc),
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Peer circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &PeerClient{
		dc:              dc,
		baseURL:         "http://" + addr,
		httpClient:      &http.Client{},
		cb:              gobreaker.NewCircuitBreaker(cbSettings),
		queryTimeout:    queryTimeout,
		mutationTimeout: mutationTimeout,
		logger:          logger,
	}
}

// DC returns the peer's identity
func (c *PeerClient) DC() model.DCID {
	return c.dc
}

// AnnounceLocation delivers a replica-location gossip message
func (c *PeerClient) AnnounceLocation(ctx context.Context, msg LocationAnnounce) error {
	return c.post(ctx, "/internal/v1/replicas/location", c.mutationTimeout, msg, nil)
}

// NewReplica pushes a fresh replica to the peer
func (c *PeerClient) NewReplica(ctx context.Context, req NewReplicaRequest) error {
	return c.post(ctx, "/internal/v1/replicas", c.mutationTimeout, req, nil)
}

// Update delivers one fan-out update
func (c *PeerClient) Update(ctx context.Context, req UpdateRequest) error {
	return c.post(ctx, "/internal/v1/replicas/update", c.mutationTimeout, req, nil)
}

// RemoteRead fetches a value the peer replicates
func (c *PeerClient) RemoteRead(ctx context.Context, key model.Key) (model.Value, error) {
	var resp ReadResponse
	path := "/internal/v1/replicas/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodGet, path, c.queryTimeout, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// SignalEvict tells the peer the sender dropped its replica
func (c *PeerClient) SignalEvict(ctx context.Context, msg EvictSignal) error {
	return c.post(ctx, "/internal/v1/replicas/evict", c.mutationTimeout, msg, nil)
}

func (c *PeerClient) post(ctx context.Context, path string, timeout time.Duration, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, timeout, body, out)
}

func (c *PeerClient) do(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.execute(ctx, method, path, timeout, body, out)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Timeout(c.dc, err)
	}
	return err
}

func (c *PeerClient) execute(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("failed to encode rpc body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Internal("failed to build rpc request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Timeout(c.dc, err)
		}
		return errors.Internal(fmt.Sprintf("rpc to %s failed", c.dc), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Code != 0 {
			return errors.New(errors.ErrorCode(errBody.Code), errBody.Message, nil)
		}
		return errors.FromHTTPStatus(resp.StatusCode, c.dc)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Internal("failed to decode rpc response", err)
		}
	}
	return nil
}
