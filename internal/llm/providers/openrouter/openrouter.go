// internal/llm/providers/openrouter/openrouter.go
package openrouter

import (
	"context"
	"net/http"

	"github.com/Corphon/TubeDigest/internal/llm"
)

// Name 注册名，与配置中的 provider 取值一致
const Name = "openrouter"

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{
			baseURL:      "https://openrouter.ai/api/v1",
			defaultModel: "gpt-4o-mini",
		}
	})
}

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
	httpReferer  string // 请求来源
	appName      string // 应用名称
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return llm.ErrMissingAPIKey
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	// OpenRouter 用这两个头做应用归属统计
	if appName, exists := config["app_name"]; exists && appName != "" {
		p.appName = appName
	} else {
		p.appName = "TubeDigest"
	}
	if httpReferer, exists := config["http_referer"]; exists && httpReferer != "" {
		p.httpReferer = httpReferer
	} else {
		p.httpReferer = "http://localhost"
	}

	return nil
}

// SetHTTPClient 替换底层客户端（超时由调用方配置）
func (p *Provider) SetHTTPClient(client *http.Client) {
	if client != nil {
		p.client = client
	}
}

func (p *Provider) GetName() string {
	return "OpenRouter"
}

func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.apiKey,
		"HTTP-Referer":  p.httpReferer,
		"X-Title":       p.appName,
	}

	resp, err := llm.PostChatCompletion(ctx, p.client, p.baseURL, headers, model, req)
	if err != nil {
		return nil, err
	}
	resp.ProviderName = p.GetName()
	return resp, nil
}
