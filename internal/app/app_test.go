package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/TubeDigest/internal/config"
	"github.com/Corphon/TubeDigest/internal/di"
	"github.com/Corphon/TubeDigest/internal/services"
)

// testConfig 返回指向临时目录的配置
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	templates := filepath.Join(dir, "templates")
	if err := os.MkdirAll(templates, 0755); err != nil {
		t.Fatalf("创建模板目录失败: %v", err)
	}
	page := `<html><body>{{.title}}{{range .languages}}<option>{{.Code}}</option>{{end}}</body></html>`
	if err := os.WriteFile(filepath.Join(templates, "index.html"), []byte(page), 0644); err != nil {
		t.Fatalf("创建模板文件失败: %v", err)
	}

	return &config.Config{
		Port:               "0",
		TemplatesDir:       templates,
		LogDir:             filepath.Join(dir, "logs"),
		LogLevel:           "error",
		TranscriptEndpoint: "http://127.0.0.1:1/transcript",
		HTTPTimeout:        time.Second,
		DefaultProvider:    "github",
		MaxTokens:          config.MinMaxTokens,
		GitHub:             config.ProviderConfig{Endpoint: config.DefaultGitHubEndpoint, Model: config.DefaultModelName},
		OpenRouter:         config.ProviderConfig{Endpoint: config.DefaultOpenRouterEndpoint, Model: config.DefaultModelName},
		SessionTTL:         time.Hour,
		CacheTTL:           time.Minute,
		CacheSize:          10,
	}
}

func resetApp(t *testing.T) {
	instance = nil
	t.Cleanup(func() {
		if instance != nil {
			instance.Cleanup()
		}
		instance = nil
		di.GetContainer().Clear()
	})
}

func TestGetApp(t *testing.T) {
	resetApp(t)

	app1 := GetApp()
	if app1 == nil {
		t.Fatal("GetApp应该返回一个非nil的应用实例")
	}
	if app2 := GetApp(); app1 != app2 {
		t.Fatal("GetApp应该返回相同的实例")
	}
	if app1.stopChan == nil {
		t.Fatal("应用实例的stopChan应该被初始化")
	}
}

func TestInitializeWithConfig(t *testing.T) {
	resetApp(t)
	cfg := testConfig(t)

	application := GetApp()
	if err := application.InitializeWithConfig(cfg); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	if missing := di.GetContainer().Missing(requiredServices...); len(missing) != 0 {
		t.Fatalf("服务未注册: %v", missing)
	}
	if _, err := di.Resolve[*services.LLMService](di.GetContainer(), di.ServiceLLM); err != nil {
		t.Errorf("LLM服务类型不正确: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, "tubedigest.log")); err != nil {
		t.Errorf("日志文件应该被创建: %v", err)
	}
	if application.IsDebugMode() {
		t.Error("调试模式应该关闭")
	}

	w := httptest.NewRecorder()
	application.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/providers", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/providers status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.Success {
		t.Errorf("unexpected response: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	application.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<option>zh-TW</option>") {
		t.Errorf("index page missing languages: %s", w.Body.String())
	}
	if cookie := w.Header().Get("Set-Cookie"); !strings.Contains(cookie, services.SessionCookieName) {
		t.Errorf("index page should set session cookie, got %q", cookie)
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	resetApp(t)
	if err := GetApp().Run(); err == nil {
		t.Fatal("未初始化时 Run 应该返回错误")
	}
}

func TestRunStopsOnStop(t *testing.T) {
	resetApp(t)
	cfg := testConfig(t)

	application := GetApp()
	if err := application.InitializeWithConfig(cfg); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run() }()

	time.Sleep(50 * time.Millisecond)
	application.Stop()
	application.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run 返回错误: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run 没有在 Stop 后退出")
	}
}

func TestConfigChangeUpdatesContainer(t *testing.T) {
	resetApp(t)
	cfg := testConfig(t)

	application := GetApp()
	if err := application.InitializeWithConfig(cfg); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	updated := *cfg
	updated.MaxTokens = 2000
	application.onConfigChange(&updated)

	got, err := di.Resolve[*config.Config](di.GetContainer(), di.ServiceConfig)
	if err != nil {
		t.Fatalf("Resolve config: %v", err)
	}
	if got.MaxTokens != 2000 || application.GetConfig().MaxTokens != 2000 {
		t.Errorf("配置未更新: %d", got.MaxTokens)
	}
}

func TestConfigChangeWhileReading(t *testing.T) {
	resetApp(t)
	cfg := testConfig(t)

	application := GetApp()
	if err := application.InitializeWithConfig(cfg); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			updated := *cfg
			updated.DebugMode = i%2 == 0
			application.onConfigChange(&updated)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if application.GetConfig() == nil {
				t.Error("配置不应为空")
				return
			}
			application.IsDebugMode()
		}
	}()
	wg.Wait()

	if application.IsDebugMode() {
		t.Error("最后一次热加载关闭了调试模式")
	}
}
