// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/TubeDigest/internal/api"
	"github.com/Corphon/TubeDigest/internal/auth"
	"github.com/Corphon/TubeDigest/internal/config"
	"github.com/Corphon/TubeDigest/internal/di"
	"github.com/Corphon/TubeDigest/internal/services"
	"github.com/Corphon/TubeDigest/internal/storage"
	"github.com/Corphon/TubeDigest/internal/transcript"
	"github.com/Corphon/TubeDigest/internal/utils"

	// 注册 LLM 提供者
	_ "github.com/Corphon/TubeDigest/internal/llm/providers/githubmodels"
	_ "github.com/Corphon/TubeDigest/internal/llm/providers/openrouter"
)

const (
	shutdownTimeout     = 30 * time.Second
	rateLimitCleanupGap = 5 * time.Minute
)

// 启动时必须存在的服务
var requiredServices = []string{
	di.ServiceConfig,
	di.ServiceLLM,
	di.ServiceSessions,
	di.ServiceHandler,
}

// App 应用程序实例
type App struct {
	config   *config.Config
	configMu sync.RWMutex // 配置会被热加载协程替换
	router   *gin.Engine
	server   *http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
}

var (
	instance     *App
	instanceLock sync.Mutex
)

// GetApp 获取应用实例（单例模式）
func GetApp() *App {
	instanceLock.Lock()
	defer instanceLock.Unlock()

	if instance == nil {
		ctx, cancel := context.WithCancel(context.Background())
		instance = &App{
			ctx:      ctx,
			cancel:   cancel,
			stopChan: make(chan struct{}),
		}
	}
	return instance
}

// Initialize 加载配置、初始化日志和服务并构建路由
func (a *App) Initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	return a.InitializeWithConfig(cfg)
}

// InitializeWithConfig 使用给定配置初始化应用
func (a *App) InitializeWithConfig(cfg *config.Config) error {
	config.SetCurrentConfig(cfg)
	a.setConfig(cfg)

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	di.GetContainer().Clear()
	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}
	if missing := di.GetContainer().Missing(requiredServices...); len(missing) > 0 {
		return fmt.Errorf("关键服务未注册: %v", missing)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router

	a.startBackgroundWorkers()

	utils.GetLogger().Info("application initialized", map[string]interface{}{
		"port":     cfg.Port,
		"services": di.GetContainer().GetNames(),
		"debug":    cfg.DebugMode,
	})
	return nil
}

// initLogger 设置日志级别，并在 LogDir 不为空时额外写入日志文件
func initLogger(cfg *config.Config) error {
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}
	if cfg.LogDir == "" {
		return nil
	}
	return utils.InitLogger(filepath.Join(cfg.LogDir, "tubedigest.log"))
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置未加载")
	}
	container := di.GetContainer()
	logger := utils.GetLogger()

	metrics := utils.NewSummaryMetrics(utils.GetMetricsCollector(), logger)
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceMetrics, metrics)

	// 1. 字幕：HTTP 客户端外加内存缓存
	client := transcript.NewClient(cfg.TranscriptEndpoint, cfg.TranscriptPassword, cfg.HTTPTimeout)
	transcripts := storage.NewTranscriptCache(client, cfg.CacheSize, cfg.CacheTTL, metrics)
	container.Register(di.ServiceTranscript, transcripts)

	// 2. LLM
	llmService := services.NewLLMService(nil, metrics)
	container.Register(di.ServiceLLM, llmService)

	// 3. 导出与会话
	exporter := services.NewExportService()
	container.Register(di.ServiceExport, exporter)

	sessions := services.NewSessionService(transcripts, llmService, exporter, cfg.SessionTTL, metrics)
	container.Register(di.ServiceSessions, sessions)

	// 4. API
	signer, err := auth.NewCookieSigner([]byte(cfg.SessionSecret))
	if err != nil {
		return fmt.Errorf("create cookie signer: %w", err)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("session_secret not set, sessions will not survive a restart", nil)
	}
	ws := api.NewWebSocketManager(logger)
	container.Register(di.ServiceWebSocket, ws)

	handler, err := api.NewHandler(sessions, llmService, metrics, ws, signer)
	if err != nil {
		return err
	}
	container.Register(di.ServiceHandler, handler)

	return nil
}

// startBackgroundWorkers 启动清理任务、WebSocket 管理器和配置热加载
func (a *App) startBackgroundWorkers() {
	container := di.GetContainer()
	logger := utils.GetLogger()
	cfg := a.GetConfig()

	if sessions, err := di.Resolve[*services.SessionService](container, di.ServiceSessions); err == nil {
		sessions.StartCleanup(a.ctx)
	}
	if handler, err := di.Resolve[*api.Handler](container, di.ServiceHandler); err == nil {
		handler.WebSocket.Start()
		handler.Limiter.StartCleanup(a.ctx, rateLimitCleanupGap)
	}

	if cfg.ConfigFile == "" {
		return
	}
	if _, err := os.Stat(cfg.ConfigFile); err != nil {
		logger.Debug("config file not found, hot reload disabled", map[string]interface{}{
			"path": cfg.ConfigFile,
		})
		return
	}

	watcher, err := config.NewWatcher(cfg.ConfigFile, a.onConfigChange, func(err error) {
		logger.Warn("config reload failed", map[string]interface{}{"error": err.Error()})
	})
	if err != nil {
		logger.Warn("config watcher disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	go func() {
		if err := watcher.Start(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// onConfigChange 应用热加载后的配置。LLM 服务每次请求都读取当前配置，
// 字幕接口地址和密码需要重启才生效。
func (a *App) onConfigChange(cfg *config.Config) {
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))

	previous := a.setConfig(cfg)
	di.GetContainer().Register(di.ServiceConfig, cfg)

	if previous != nil && (previous.TranscriptEndpoint != cfg.TranscriptEndpoint || previous.TranscriptPassword != cfg.TranscriptPassword) {
		logger.Warn("transcript endpoint changed, restart required", nil)
	}
	logger.Info("configuration reloaded", map[string]interface{}{"file": cfg.ConfigFile})
}

// Run 启动HTTP服务器，直到收到中断信号或 Stop 被调用
func (a *App) Run() error {
	if a.router == nil {
		return fmt.Errorf("应用尚未初始化")
	}
	logger := utils.GetLogger()
	cfg := a.GetConfig()

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]interface{}{
			"addr": "http://localhost:" + cfg.Port,
		})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serverErr:
		if ok {
			a.Cleanup()
			return fmt.Errorf("启动服务器失败: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case <-a.stopChan:
	}

	return a.Shutdown()
}

// Stop 请求 Run 退出
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

// Shutdown 优雅关闭服务器并释放资源
func (a *App) Shutdown() error {
	var err error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = a.server.Shutdown(ctx)
	}
	a.Cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	utils.GetLogger().Info("server stopped", nil)
	return nil
}

// Cleanup 停止后台任务并关闭 WebSocket 连接和日志文件
func (a *App) Cleanup() {
	a.cancel()
	if handler, err := di.Resolve[*api.Handler](di.GetContainer(), di.ServiceHandler); err == nil {
		handler.WebSocket.Shutdown()
	}
	utils.GetLogger().Close()
}

// GetConfig 返回应用当前配置
func (a *App) GetConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}

// setConfig 替换当前配置并返回旧配置
func (a *App) setConfig(cfg *config.Config) *config.Config {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	previous := a.config
	a.config = cfg
	return previous
}

// Router 返回已构建的路由
func (a *App) Router() *gin.Engine {
	return a.router
}

// IsDebugMode 是否处于调试模式
func (a *App) IsDebugMode() bool {
	cfg := a.GetConfig()
	return cfg != nil && cfg.DebugMode
}
