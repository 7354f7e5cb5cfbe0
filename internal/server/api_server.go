package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/replica"
	"github.com/ader1990/adpreplic/internal/transport"
	"github.com/ader1990/adpreplic/internal/validation"
)

// CreateKeyRequest is the client body for key creation. Params defaults to
// the configured strategy defaults when omitted.
type CreateKeyRequest struct {
	Value    model.Value           `json:"value" binding:"required"`
	Strategy model.StrategyKind    `json:"strategy"`
	Params   *model.StrategyParams `json:"params"`
}

// UpdateKeyRequest is the client body for key updates
type UpdateKeyRequest struct {
	Value model.Value `json:"value" binding:"required"`
}

// ValueResponse carries a read value back to the client
type ValueResponse struct {
	Key   model.Key   `json:"key"`
	Value model.Value `json:"value"`
}

// APIServer hosts the client API and the inter-DC RPC surface on one
// listener.
type APIServer struct {
	httpServer *http.Server
	manager    *replica.Manager
	validator  *validation.Validator
	logger     *zap.Logger
}

// NewAPIServer builds the gin engine with client and peer routes mounted
func NewAPIServer(
	addr string,
	manager *replica.Manager,
	m *metrics.Metrics,
	logger *zap.Logger,
) *APIServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	s := &APIServer{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		manager:   manager,
		validator: validation.NewValidator(),
		logger:    logger,
	}

	v1 := router.Group("/v1")
	v1.PUT("/keys/:key", s.createKey)
	v1.GET("/keys/:key", s.readKey)
	v1.POST("/keys/:key", s.updateKey)
	v1.DELETE("/keys/:key/replica", s.removeReplica)

	transport.RegisterRoutes(router, manager, m, logger)

	return s
}

// Start begins serving. Blocks until the listener fails or is shut down.
func (s *APIServer) Start() error {
	s.logger.Info("API server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("API server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *APIServer) createKey(c *gin.Context) {
	key := c.Param("key")
	if err := s.validator.ValidateKey(key); err != nil {
		s.abort(c, err)
		return
	}

	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, errors.InvalidArgument("malformed create body"))
		return
	}
	if err := s.validator.ValidateValue(req.Value); err != nil {
		s.abort(c, err)
		return
	}

	kind := req.Strategy
	if kind == "" {
		kind = model.StrategyAdaptive
	}
	params := s.manager.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}

	if err := s.manager.Create(c.Request.Context(), key, req.Value, kind, params); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.StatusResponse{Status: "ok"})
}

func (s *APIServer) readKey(c *gin.Context) {
	key := c.Param("key")
	if err := s.validator.ValidateKey(key); err != nil {
		s.abort(c, err)
		return
	}

	value, err := s.manager.Read(c.Request.Context(), key)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Key: key, Value: value})
}

func (s *APIServer) updateKey(c *gin.Context) {
	key := c.Param("key")
	if err := s.validator.ValidateKey(key); err != nil {
		s.abort(c, err)
		return
	}

	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, errors.InvalidArgument("malformed update body"))
		return
	}
	if err := s.validator.ValidateValue(req.Value); err != nil {
		s.abort(c, err)
		return
	}

	if err := s.manager.Update(c.Request.Context(), key, req.Value); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.StatusResponse{Status: "ok"})
}

func (s *APIServer) removeReplica(c *gin.Context) {
	key := c.Param("key")
	if err := s.validator.ValidateKey(key); err != nil {
		s.abort(c, err)
		return
	}

	if err := s.manager.RemoveReplica(key); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.StatusResponse{Status: "ok"})
}

func (s *APIServer) abort(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, transport.ErrorResponse{
		Code:    int(errors.GetCode(err)),
		Message: err.Error(),
	})
}

// requestLogger logs every request with latency and status
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
