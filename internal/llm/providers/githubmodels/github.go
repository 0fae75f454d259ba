// internal/llm/providers/githubmodels/github.go
package githubmodels

import (
	"context"
	"net/http"

	"github.com/Corphon/TubeDigest/internal/llm"
)

// Name 注册名，与配置中的 provider 取值一致
const Name = "github"

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{
			baseURL:      "https://models.inference.ai.azure.com",
			defaultModel: "gpt-4o-mini",
		}
	})
}

// Provider GitHub Models（Azure AI Inference）的 OpenAI 兼容端点
type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
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

	return nil
}

// SetHTTPClient 替换底层客户端（超时由调用方配置）
func (p *Provider) SetHTTPClient(client *http.Client) {
	if client != nil {
		p.client = client
	}
}

func (p *Provider) GetName() string {
	return "GitHub Models"
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
	}

	resp, err := llm.PostChatCompletion(ctx, p.client, p.baseURL, headers, model, req)
	if err != nil {
		return nil, err
	}
	resp.ProviderName = p.GetName()
	return resp, nil
}
