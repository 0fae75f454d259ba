// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/TubeDigest/internal/config"
	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/llm"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/utils"
)

// ProviderKind 调用方选择的 LLM 提供者
type ProviderKind string

const (
	ProviderGitHub     ProviderKind = "github"
	ProviderOpenRouter ProviderKind = "openrouter"
)

// ProviderKinds 所有可选提供者
func ProviderKinds() []ProviderKind {
	return []ProviderKind{ProviderGitHub, ProviderOpenRouter}
}

// ParseProviderKind 校验提供者名称
func ParseProviderKind(s string) (ProviderKind, error) {
	switch p := ProviderKind(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGitHub, ProviderOpenRouter:
		return p, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown provider %q", s), nil)
}

// 生成参数固定，与原有行为一致
const (
	defaultTemperature = 1.0
	defaultTopP        = 1.0
)

// ProviderStatus 提供者的配置状态，供界面展示
type ProviderStatus struct {
	Name        ProviderKind `json:"name"`
	DisplayName string       `json:"display_name"`
	Model       string       `json:"model"`
	Endpoint    string       `json:"endpoint"`
	Configured  bool         `json:"configured"`
	Default     bool         `json:"default"`
}

type cachedProvider struct {
	fingerprint string
	provider    llm.Provider
}

// LLMService 按调用方选择的提供者发送提示词
type LLMService struct {
	registry     *llm.Registry
	configSource func() *config.Config
	metrics      *utils.SummaryMetrics
	logger       *utils.Logger

	providerMutex sync.Mutex
	providers     map[ProviderKind]cachedProvider
}

// NewLLMService 创建服务；registry 为 nil 时使用全局注册表
func NewLLMService(registry *llm.Registry, metrics *utils.SummaryMetrics) *LLMService {
	if registry == nil {
		registry = llm.DefaultRegistry
	}
	if metrics == nil {
		metrics = utils.NewSummaryMetrics(nil, nil)
	}
	return &LLMService{
		registry:     registry,
		configSource: config.GetCurrentConfig,
		metrics:      metrics,
		logger:       utils.GetLogger(),
		providers:    make(map[ProviderKind]cachedProvider),
	}
}

// Complete 发送一次请求并返回生成的文本。
// 凭证缺失时在任何网络请求之前返回 ConfigError。
func (s *LLMService) Complete(ctx context.Context, kind ProviderKind, pair prompt.Pair) (string, error) {
	cfg := s.configSource()
	if cfg == nil {
		return "", apperrors.NewConfigError("configuration not loaded", nil)
	}

	pc, ok := cfg.Provider(string(kind))
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown provider %q", kind), nil)
	}
	if strings.TrimSpace(pc.APIKey) == "" {
		return "", apperrors.NewConfigError(fmt.Sprintf("no API key configured for provider %s", kind), llm.ErrMissingAPIKey)
	}

	provider, err := s.getProvider(kind, pc, cfg.HTTPTimeout)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) || errors.Is(err, llm.ErrUnknownProvider) {
			return "", apperrors.NewConfigError(fmt.Sprintf("provider %s is not available", kind), err)
		}
		return "", apperrors.NewProviderError(fmt.Sprintf("initialize provider %s", kind), err)
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:       pair.User,
		SystemPrompt: pair.System,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  defaultTemperature,
		TopP:         defaultTopP,
		Model:        pc.Model,
	})
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordLLMRequest(string(kind), pc.Model, 0, duration, err)
		s.logger.Warn("LLM request failed", map[string]interface{}{
			"provider": kind,
			"model":    pc.Model,
			"error":    err.Error(),
		})
		return "", apperrors.NewProviderError(fmt.Sprintf("%s request failed", provider.GetName()), err)
	}

	s.metrics.RecordLLMRequest(string(kind), resp.ModelName, resp.TokensUsed, duration, nil)
	return strings.TrimSpace(resp.Text), nil
}

// getProvider 按配置指纹缓存已初始化的提供者，配置热更新后自动重建
func (s *LLMService) getProvider(kind ProviderKind, pc config.ProviderConfig, timeout time.Duration) (llm.Provider, error) {
	fingerprint := strings.Join([]string{pc.Endpoint, pc.APIKey, pc.Model, timeout.String()}, "|")

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	if cached, ok := s.providers[kind]; ok && cached.fingerprint == fingerprint {
		return cached.provider, nil
	}

	provider, err := s.registry.GetProvider(string(kind), map[string]string{
		"api_key":       pc.APIKey,
		"base_url":      pc.Endpoint,
		"default_model": pc.Model,
	})
	if err != nil {
		return nil, err
	}
	if hc, ok := provider.(interface{ SetHTTPClient(*http.Client) }); ok && timeout > 0 {
		hc.SetHTTPClient(&http.Client{Timeout: timeout})
	}

	s.providers[kind] = cachedProvider{fingerprint: fingerprint, provider: provider}
	return provider, nil
}

// ProviderStatuses 返回每个提供者是否已配置凭证
func (s *LLMService) ProviderStatuses() []ProviderStatus {
	cfg := s.configSource()
	if cfg == nil {
		return nil
	}

	statuses := make([]ProviderStatus, 0, 2)
	for _, kind := range ProviderKinds() {
		pc, _ := cfg.Provider(string(kind))
		status := ProviderStatus{
			Name:       kind,
			Model:      pc.Model,
			Endpoint:   pc.Endpoint,
			Configured: strings.TrimSpace(pc.APIKey) != "",
			Default:    cfg.DefaultProvider == string(kind),
		}
		switch kind {
		case ProviderGitHub:
			status.DisplayName = "GitHub Models"
		case ProviderOpenRouter:
			status.DisplayName = "OpenRouter"
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// DefaultProvider 配置中的默认提供者
func (s *LLMService) DefaultProvider() ProviderKind {
	if cfg := s.configSource(); cfg != nil && cfg.DefaultProvider != "" {
		return ProviderKind(cfg.DefaultProvider)
	}
	return ProviderGitHub
}
