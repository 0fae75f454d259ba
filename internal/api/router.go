// internal/api/router.go
package api

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/TubeDigest/internal/config"
	"github.com/Corphon/TubeDigest/internal/di"
)

// 每个IP的请求预算
const (
	defaultRateLimit = 120 // 普通接口，每分钟
	llmRateLimit     = 20  // 会调用 LLM 的接口，每分钟
)

// SetupRouter 从容器获取处理器并配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("配置未加载")
	}

	handler, err := di.Resolve[*Handler](di.GetContainer(), di.ServiceHandler)
	if err != nil {
		return nil, fmt.Errorf("API处理器未正确初始化: %w", err)
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewRouter(cfg, handler), nil
}

// NewRouter 注册所有路由
func NewRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware(handler.Metrics))

	// 静态文件和页面模板
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}
	if cfg.TemplatesDir != "" {
		pattern := filepath.Join(cfg.TemplatesDir, "*.html")
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			r.LoadHTMLGlob(pattern)
			r.GET("/", handler.IndexPage)
		}
	}

	// WebSocket 进度推送
	r.GET("/ws/session", handler.SessionWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(handler.Limiter.RateLimitMiddleware("api", defaultRateLimit, time.Minute, handler.Response))
	{
		llmLimit := handler.Limiter.RateLimitMiddleware("llm", llmRateLimit, time.Minute, handler.Response)

		// 摘要
		api.POST("/summary", llmLimit, handler.GenerateSummary)
		api.GET("/summary", handler.GetSummary)

		// 章节操作
		sections := api.Group("/sections/:index")
		{
			sections.POST("/select", handler.SelectSection)
			sections.PUT("", handler.EditSection)
			sections.POST("/save", handler.SaveSection)
			sections.POST("/regenerate", llmLimit, handler.RegenerateSection)
		}

		api.GET("/export", handler.ExportSummary)
		api.GET("/providers", handler.GetProviders)
		api.GET("/metrics", handler.GetMetrics)
	}

	return r
}
