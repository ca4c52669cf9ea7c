package server

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/redcache/redcache"
	apperrors "github.com/redcache/redcache/internal/shared/errors"
	"github.com/redcache/redcache/internal/shared/logger"
	"github.com/redcache/redcache/internal/utils/metrics"
)

// Server exposes cache operations over HTTP for operational use:
// inspecting entries, priming or evicting them, and clearing whole
// caches. The cache engine owns no network surface of its own; this
// facade sits on top of a Manager.
type Server struct {
	router   *gin.Engine
	manager  *redcache.Manager
	client   redis.UniversalClient
	logger   *logger.Logger
	breakers *breakerSet
}

// New creates the HTTP facade.
func New(manager *redcache.Manager, client redis.UniversalClient, log *logger.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		manager:  manager,
		client:   client,
		logger:   log,
		breakers: newBreakerSet(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestID())
	router.Use(Metrics(m))
	router.Use(cors.Default())

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/caches", s.listCaches)
		v1.GET("/caches/:name/entries/:key", s.getEntry)
		v1.PUT("/caches/:name/entries/:key", s.putEntry)
		v1.DELETE("/caches/:name/entries/:key", s.deleteEntry)
		v1.POST("/caches/:name/clear", s.clearCache)
	}

	s.router = router
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	if err := s.client.Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listCaches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"caches": s.manager.CacheNames()})
}

type entryResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type putEntryRequest struct {
	Value any `json:"value"`
}

func (s *Server) getEntry(c *gin.Context) {
	cache, ok := s.cache(c)
	if !ok {
		return
	}
	key := c.Param("key")

	type getResult struct {
		value any
		found bool
	}

	result, err := s.breakers.Execute(cache.Name(), func() (any, error) {
		value, found, err := cache.Get(c.Request.Context(), key)
		if err != nil {
			return nil, err
		}
		return getResult{value: value, found: found}, nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	res := result.(getResult)
	if !res.found {
		s.respondError(c, apperrors.NotFound("entry"))
		return
	}

	c.JSON(http.StatusOK, entryResponse{Key: key, Value: res.value})
}

func (s *Server) putEntry(c *gin.Context) {
	cache, ok := s.cache(c)
	if !ok {
		return
	}
	key := c.Param("key")

	var req putEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.BadRequest("request body must be JSON with a value field"))
		return
	}

	_, err := s.breakers.Execute(cache.Name(), func() (any, error) {
		return nil, cache.Put(c.Request.Context(), key, req.Value)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) deleteEntry(c *gin.Context) {
	cache, ok := s.cache(c)
	if !ok {
		return
	}
	key := c.Param("key")

	_, err := s.breakers.Execute(cache.Name(), func() (any, error) {
		return nil, cache.Evict(c.Request.Context(), key)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) clearCache(c *gin.Context) {
	cache, ok := s.cache(c)
	if !ok {
		return
	}

	_, err := s.breakers.Execute(cache.Name(), func() (any, error) {
		return nil, cache.Clear(c.Request.Context())
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) cache(c *gin.Context) (*redcache.Cache, bool) {
	cache, err := s.manager.Cache(c.Param("name"))
	if err != nil {
		s.respondError(c, apperrors.BadRequest(err.Error()))
		return nil, false
	}
	return cache, true
}

// respondError maps engine and breaker errors onto the error response
// contract.
func (s *Server) respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		// already shaped
	case errors.Is(err, redcache.ErrSerialization):
		appErr = apperrors.Serialization(err.Error(), err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		appErr = apperrors.StoreUnavailable("cache store circuit open", err)
	default:
		// Everything else surfacing from the engine is a transport
		// failure talking to Redis.
		appErr = apperrors.StoreUnavailable("", err)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", c.GetString("request_id"),
			"path", c.FullPath(),
			logger.Err(err),
		)
	}

	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
