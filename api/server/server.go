package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"alarmsrv/api/middleware"
	"alarmsrv/internal/bus"
	"alarmsrv/internal/config"
	"alarmsrv/internal/database"
	"alarmsrv/internal/logger"
	"alarmsrv/internal/rules"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

type Server struct {
	router      *gin.Engine
	ruleService *rules.Service
	publisher   *bus.Publisher
	config      *config.Config
}

// NewServer 组装 HTTP 层：路由、限流、规则服务
//
// publisher may be nil, in which case rule-change events are not
// broadcast and mutations succeed exactly as before.
func NewServer(cfg *config.Config, ruleService *rules.Service, publisher *bus.Publisher) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router:      router,
		ruleService: ruleService,
		publisher:   publisher,
		config:      cfg,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	limiter := middleware.NewIPRateLimiter(middleware.RateLimiterConfig{
		RequestsPerMinute: s.config.RateLimit.PerMinute,
		BurstSize:         s.config.RateLimit.Burst,
	})

	api := s.router.Group("/alarmApi")
	api.Use(limiter.Middleware())

	{
		api.POST("/rules", s.createRule)
		api.GET("/rules", s.searchRules)
		api.GET("/rules/:id", s.getRule)
		api.PUT("/rules/:id", s.updateRule)
		api.DELETE("/rules/:id", s.deleteRule)
		api.PATCH("/rules/:id/enable", s.enableRule)
		api.PATCH("/rules/:id/disable", s.disableRule)

		api.GET("/channels/:channel_id/rules", s.listChannelRules)
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/", s.serviceInfo)
}

// Run 启动 HTTP 服务
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// 统一响应包装

func respondOK(c *gin.Context, status int, message string, data gin.H) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"data":    gin.H{},
	})
}

// writeError 将领域/存储错误映射为 HTTP 状态码
func writeError(c *gin.Context, err error) {
	var verr *rules.ValidationError
	var derr *rules.DuplicateRuleError

	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr.Error())
	case errors.As(err, &derr):
		respondError(c, http.StatusConflict, derr.Error())
	case errors.Is(err, database.ErrNotFound):
		respondError(c, http.StatusNotFound, "alert rule not found")
	case errors.Is(err, database.ErrConstraint), errors.Is(err, database.ErrDuplicate):
		respondError(c, http.StatusConflict, "constraint violation")
	case errors.Is(err, database.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, "storage unavailable")
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

// publishChange 异步广播规则变更，失败只记日志
func (s *Server) publishChange(action string, ruleID uint) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, action, ruleID); err != nil {
			logger.Warn("failed to publish rule event",
				zap.String("action", action),
				zap.Uint("rule_id", ruleID),
				zap.Error(err),
			)
		}
	}()
}

func parseRuleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid rule id")
		return 0, false
	}
	return uint(id), true
}

// CreateRuleRequest 创建/更新规则的请求体
type CreateRuleRequest struct {
	ChannelID    int64   `json:"channel_id"`
	DataType     string  `json:"data_type"`
	PointID      int64   `json:"point_id"`
	RuleName     string  `json:"rule_name"`
	WarningLevel int     `json:"warning_level"`
	Operator     string  `json:"operator"`
	Value        float64 `json:"value"`
	Enabled      *bool   `json:"enabled"` // 缺省为 true
	Description  string  `json:"description"`
}

func (r CreateRuleRequest) toInput() rules.RuleInput {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return rules.RuleInput{
		ChannelID:    r.ChannelID,
		DataType:     r.DataType,
		PointID:      r.PointID,
		RuleName:     r.RuleName,
		WarningLevel: r.WarningLevel,
		Operator:     r.Operator,
		Value:        r.Value,
		Enabled:      enabled,
		Description:  r.Description,
	}
}

func (s *Server) createRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := s.ruleService.Create(req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishChange(bus.ActionCreated, rule.ID)
	respondOK(c, http.StatusCreated, "alert rule created", gin.H{"rule": rule})
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok {
		return
	}

	rule, err := s.ruleService.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "ok", gin.H{"rule": rule})
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := s.ruleService.Update(id, req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishChange(bus.ActionUpdated, rule.ID)
	respondOK(c, http.StatusOK, "alert rule updated", gin.H{"rule": rule})
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok {
		return
	}

	if err := s.ruleService.Delete(id); err != nil {
		writeError(c, err)
		return
	}

	s.publishChange(bus.ActionDeleted, id)
	respondOK(c, http.StatusOK, "alert rule deleted", gin.H{"rule_id": id})
}

func (s *Server) enableRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok {
		return
	}

	rule, err := s.ruleService.Enable(id)
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishChange(bus.ActionEnabled, id)
	respondOK(c, http.StatusOK, "alert rule enabled", gin.H{"rule": rule})
}

func (s *Server) disableRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok {
		return
	}

	rule, err := s.ruleService.Disable(id)
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishChange(bus.ActionDisabled, id)
	respondOK(c, http.StatusOK, "alert rule disabled", gin.H{"rule": rule})
}

func (s *Server) listChannelRules(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("channel_id"), 10, 64)
	if err != nil || channelID <= 0 {
		respondError(c, http.StatusBadRequest, "invalid channel id")
		return
	}

	list, err := s.ruleService.ListByChannel(channelID)
	if err != nil {
		writeError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "ok", gin.H{"total": len(list), "list": list})
}

// SearchRulesRequest 高级搜索查询参数
type SearchRulesRequest struct {
	Keyword      string `form:"keyword"`
	WarningLevel *int   `form:"warning_level"`
	Enabled      *bool  `form:"enabled"`
	StartTime    string `form:"start_time"` // YYYY-MM-DD HH:MM:SS
	EndTime      string `form:"end_time"`
	Page         int    `form:"page,default=1"`
	PageSize     int    `form:"page_size,default=10"`
}

const timeLayout = "2006-01-02 15:04:05"

func (s *Server) searchRules(c *gin.Context) {
	var req SearchRulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	filter := database.SearchFilter{
		Keyword:      req.Keyword,
		WarningLevel: req.WarningLevel,
		Enabled:      req.Enabled,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}

	if req.StartTime != "" {
		t, err := time.ParseInLocation(timeLayout, req.StartTime, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid start_time, expected format: YYYY-MM-DD HH:MM:SS")
			return
		}
		filter.StartTime = &t
	}
	if req.EndTime != "" {
		t, err := time.ParseInLocation(timeLayout, req.EndTime, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid end_time, expected format: YYYY-MM-DD HH:MM:SS")
			return
		}
		filter.EndTime = &t
	}

	list, total, err := s.ruleService.Search(filter)
	if err != nil {
		writeError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "ok", gin.H{"total": total, "list": list})
}

func (s *Server) healthCheck(c *gin.Context) {
	total, err := s.ruleService.Count()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "service unhealthy")
		return
	}
	enabled, err := s.ruleService.CountEnabled()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "service unhealthy")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"rules": gin.H{
			"total":   total,
			"enabled": enabled,
		},
	})
}

func (s *Server) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  "alarmsrv",
		"version":  version,
		"status":   "running",
		"database": s.config.Database.Path,
	})
}
