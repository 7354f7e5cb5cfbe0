package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
)

// Handlers is the inbound side of the inter-DC protocol. The replica
// manager implements it; the routes below translate wire traffic onto it.
type Handlers interface {
	// HandleReplicaLocation records that a peer now replicates key
	HandleReplicaLocation(key model.Key, from model.DCID) error
	// HandleNewReplica instantiates a pushed replica locally
	HandleNewReplica(key model.Key, value model.Value, strategy model.StrategyKind, params model.StrategyParams, dcs []model.DCID) error
	// HandleUpdate applies a fan-out update under last-writer-wins
	HandleUpdate(key model.Key, value model.Value, params model.StrategyParams, ts model.Timestamp) error
	// HandleRemoteRead serves a read for a locally replicated key
	HandleRemoteRead(key model.Key) (model.Value, error)
	// HandleEvictSignal removes a peer from the key's replica set
	HandleEvictSignal(key model.Key, from model.DCID) error
}

// RegisterRoutes mounts the inter-DC RPC surface under /internal/v1
func RegisterRoutes(router *gin.Engine, h Handlers, m *metrics.Metrics, logger *zap.Logger) {
	group := router.Group("/internal/v1")

	group.POST("/replicas/location", func(c *gin.Context) {
		m.RecordInboundRPC("replica_location")
		var msg LocationAnnounce
		if err := c.ShouldBindJSON(&msg); err != nil {
			abortWithError(c, errors.InvalidArgument("malformed location announce"))
			return
		}
		m.RecordGossip("inbound")
		if err := h.HandleReplicaLocation(msg.Key, msg.From); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
	})

	group.POST("/replicas", func(c *gin.Context) {
		m.RecordInboundRPC("new_replica")
		var req NewReplicaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, errors.InvalidArgument("malformed new replica request"))
			return
		}
		if err := h.HandleNewReplica(req.Key, req.Value, req.Strategy, req.Params, req.DCs); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
	})

	group.POST("/replicas/update", func(c *gin.Context) {
		m.RecordInboundRPC("update")
		var req UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, errors.InvalidArgument("malformed update request"))
			return
		}
		if err := h.HandleUpdate(req.Key, req.Value, req.Params, req.Timestamp); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
	})

	group.GET("/replicas/:key", func(c *gin.Context) {
		m.RecordInboundRPC("remote_read")
		key := c.Param("key")
		value, err := h.HandleRemoteRead(key)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ReadResponse{Key: key, Value: value})
	})

	group.POST("/replicas/evict", func(c *gin.Context) {
		m.RecordInboundRPC("evict_signal")
		var msg EvictSignal
		if err := c.ShouldBindJSON(&msg); err != nil {
			abortWithError(c, errors.InvalidArgument("malformed evict signal"))
			return
		}
		if err := h.HandleEvictSignal(msg.Key, msg.From); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
	})

	logger.Info("Inter-DC RPC routes mounted", zap.String("prefix", "/internal/v1"))
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), ErrorResponse{
		Code:    int(errors.GetCode(err)),
		Message: err.Error(),
	})
}
