package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
)

func TestClientTimesOutSlowPeer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewPeerClient("dc-b", strings.TrimPrefix(srv.URL, "http://"),
		50*time.Millisecond, 50*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := client.RemoteRead(context.Background(), "k")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout))
	assert.Less(t, elapsed, 400*time.Millisecond, "deadline was not enforced")
}

func TestClientMapsPeerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":1003,"message":"no local replica for key: k"}`))
	}))
	defer srv.Close()

	client := NewPeerClient("dc-b", strings.TrimPrefix(srv.URL, "http://"),
		time.Second, time.Second, zap.NewNop())

	_, err := client.RemoteRead(context.Background(), "k")
	assert.True(t, errors.Is(err, errors.ErrCodeNoReplica))
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := NewPeerClient("dc-b", "127.0.0.1:1",
		100*time.Millisecond, 100*time.Millisecond, zap.NewNop())

	// Hammer the dead peer until the breaker trips
	for i := 0; i < 10; i++ {
		_, _ = client.RemoteRead(context.Background(), "k")
	}

	start := time.Now()
	_, err := client.RemoteRead(context.Background(), "k")
	require.Error(t, err)
	// An open breaker rejects without dialing
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout))
}
