package webapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/thependalorian/cea-gateway/internal/domain/auth"
	"github.com/thependalorian/cea-gateway/internal/platform/config"
	"github.com/thependalorian/cea-gateway/internal/platform/errors"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
	"github.com/thependalorian/cea-gateway/internal/platform/storage"
	httptransport "github.com/thependalorian/cea-gateway/internal/transport/http"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Service exposes the gateway's operational endpoints: health and the
// authenticated admin surface.
type Service struct {
	config  *config.Config
	logger  *logging.Logger
	tokens  *auth.AuthToken
	started time.Time
}

// NewService creates the web API service.
func NewService(cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "logger is required")
	}

	service := &Service{
		config:  cfg,
		logger:  logger,
		started: time.Now(),
	}
	if cfg.Server.Token != "" {
		service.tokens = auth.NewAuthToken(cfg.Server.Token)
	}
	return service, nil
}

// Register mounts the health route and the admin group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)

	adminGroup := router.Group("/admin")
	adminGroup.GET("", s.handleAdminGet)

	securedGroup := adminGroup.Group("")
	securedGroup.Use(s.authMiddleware())
	{
		securedGroup.GET("/system", s.handleSystemGet)
	}

	s.logger.InfoTag("HTTP", "web API routes registered")
	return nil
}

// handleHealth reports liveness plus audit storage reachability.
// @Summary Service health
// @Tags System
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /api/health [get]
func (s *Service) handleHealth(c *gin.Context) {
	dbStatus := "ok"
	if err := storage.Ping(); err != nil {
		dbStatus = "unavailable"
	}

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"service":   "cea-gateway",
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime_s":  int64(time.Since(s.started).Seconds()),
		"database":  dbStatus,
	}, "Service is healthy")
}

func (s *Service) handleAdminGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Admin service is running")
}

// handleSystemGet returns host and runtime statistics.
// @Summary System statistics
// @Tags System
// @Produce json
// @Security BearerAuth
// @Success 200 {object} httptransport.APIResponse
// @Failure 401 {object} httptransport.APIResponse
// @Router /api/admin/system [get]
func (s *Service) handleSystemGet(c *gin.Context) {
	data := gin.H{
		"goroutines": runtime.NumGoroutine(),
		"go_version": runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory"] = gin.H{
			"total_bytes":  vm.Total,
			"used_bytes":   vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if info, err := host.Info(); err == nil {
		data["host"] = gin.H{
			"hostname": info.Hostname,
			"os":       info.OS,
			"platform": info.Platform,
			"uptime_s": info.Uptime,
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "System statistics retrieved successfully")
}

// authMiddleware accepts either the configured static token or a JWT signed
// with it.
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.Server.Token == "" {
			httptransport.RespondError(c, http.StatusServiceUnavailable, "admin token is not configured", nil)
			c.Abort()
			return
		}

		credential := auth.Resolve(c.GetHeader("Authorization"), c.Query("token"))
		token := credential.BearerToken()
		if token == "" {
			token = credential.Header
		}
		if token == "" {
			httptransport.RespondError(c, http.StatusUnauthorized, "missing credentials", nil)
			c.Abort()
			return
		}

		if token == s.config.Server.Token {
			c.Set("user_id", "admin")
			c.Next()
			return
		}

		if s.tokens != nil {
			if ok, userID, err := s.tokens.VerifyToken(token); err == nil && ok {
				c.Set("user_id", userID)
				c.Next()
				return
			}
		}

		s.logger.WarnTag("auth", "rejected admin request: invalid credentials")
		httptransport.RespondError(c, http.StatusUnauthorized, "invalid credentials", nil)
		c.Abort()
	}
}
