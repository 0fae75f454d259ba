package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Corphon/TubeDigest/internal/config"
	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/utils"

	_ "github.com/Corphon/TubeDigest/internal/llm/providers/githubmodels"
	_ "github.com/Corphon/TubeDigest/internal/llm/providers/openrouter"
)

func newTestLLMService(cfg *config.Config) (*LLMService, *utils.MetricsCollector) {
	collector := utils.NewMetricsCollector()
	logger := utils.NewLogger(io.Discard, utils.ERROR)
	s := NewLLMService(nil, utils.NewSummaryMetrics(collector, logger))
	s.logger = logger
	s.configSource = func() *config.Config { return cfg }
	return s, collector
}

func TestCompleteMissingKeyIsConfigError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	s, _ := newTestLLMService(&config.Config{
		GitHub:     config.ProviderConfig{Endpoint: srv.URL, Model: "gpt-4o-mini"},
		OpenRouter: config.ProviderConfig{Endpoint: srv.URL, APIKey: "  "},
	})

	for _, kind := range ProviderKinds() {
		_, err := s.Complete(context.Background(), kind, prompt.Pair{User: "x"})
		if !apperrors.IsConfigError(err) {
			t.Errorf("%s: want ConfigError, got %v", kind, err)
		}
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("no request expected, got %d", hits)
	}
}

func TestCompleteSendsFixedParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			TopP        float32 `json:"top_p"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.Model != "gpt-4o-mini" || body.Temperature != 1 || body.TopP != 1 || body.MaxTokens != 2000 {
			t.Errorf("unexpected request %+v", body)
		}
		if len(body.Messages) != 2 || body.Messages[0].Content != "sys" || body.Messages[1].Content != "usr" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  generated \n"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	s, collector := newTestLLMService(&config.Config{
		MaxTokens:   2000,
		HTTPTimeout: 5 * time.Second,
		GitHub:      config.ProviderConfig{Endpoint: srv.URL, APIKey: "k", Model: "gpt-4o-mini"},
	})

	text, err := s.Complete(context.Background(), ProviderGitHub, prompt.Pair{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "generated" {
		t.Errorf("text = %q", text)
	}
	if collector.GetCounterValue("llm_requests_github") != 1 || collector.GetCounterValue("llm_tokens_total") != 42 {
		t.Errorf("metrics not recorded: %v", collector.GetMetrics())
	}
}

func TestCompleteProviderFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"empty choices", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}},
		{"blank content", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			s, collector := newTestLLMService(&config.Config{
				OpenRouter: config.ProviderConfig{Endpoint: srv.URL, APIKey: "k", Model: "m"},
			})
			_, err := s.Complete(context.Background(), ProviderOpenRouter, prompt.Pair{User: "x"})
			if !apperrors.IsProviderError(err) {
				t.Fatalf("want ProviderError, got %v", err)
			}
			if collector.GetCounterValue("llm_requests_failed") != 1 {
				t.Error("failure not counted")
			}
		})
	}
}

func TestCompleteUnknownProvider(t *testing.T) {
	s, _ := newTestLLMService(&config.Config{})
	if _, err := s.Complete(context.Background(), ProviderKind("gemini"), prompt.Pair{}); !apperrors.IsValidationError(err) {
		t.Errorf("want ValidationError, got %v", err)
	}
}

func TestCompleteWithoutConfig(t *testing.T) {
	s, _ := newTestLLMService(nil)
	if _, err := s.Complete(context.Background(), ProviderGitHub, prompt.Pair{}); !apperrors.IsConfigError(err) {
		t.Errorf("want ConfigError, got %v", err)
	}
}

func TestProviderCacheFollowsConfig(t *testing.T) {
	cfg := &config.Config{GitHub: config.ProviderConfig{Endpoint: "http://a", APIKey: "one", Model: "m"}}
	s, _ := newTestLLMService(cfg)

	first, err := s.getProvider(ProviderGitHub, cfg.GitHub, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := s.getProvider(ProviderGitHub, cfg.GitHub, time.Second)
	if first != again {
		t.Error("provider should be reused while config is unchanged")
	}

	cfg.GitHub.APIKey = "two"
	rotated, _ := s.getProvider(ProviderGitHub, cfg.GitHub, time.Second)
	if rotated == first {
		t.Error("provider should be rebuilt after key rotation")
	}
}

func TestProviderStatuses(t *testing.T) {
	s, _ := newTestLLMService(&config.Config{
		DefaultProvider: "openrouter",
		GitHub:          config.ProviderConfig{Model: "gpt-4o-mini"},
		OpenRouter:      config.ProviderConfig{APIKey: "k", Model: "gpt-4o-mini"},
	})

	statuses := s.ProviderStatuses()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	if statuses[0].Name != ProviderGitHub || statuses[0].Configured || statuses[0].Default {
		t.Errorf("github status = %+v", statuses[0])
	}
	if statuses[1].Name != ProviderOpenRouter || !statuses[1].Configured || !statuses[1].Default {
		t.Errorf("openrouter status = %+v", statuses[1])
	}
	if s.DefaultProvider() != ProviderOpenRouter {
		t.Errorf("DefaultProvider = %s", s.DefaultProvider())
	}
}

func TestParseProviderKind(t *testing.T) {
	if k, err := ParseProviderKind(" GitHub "); err != nil || k != ProviderGitHub {
		t.Errorf("ParseProviderKind = %q, %v", k, err)
	}
	if _, err := ParseProviderKind(""); !apperrors.IsValidationError(err) {
		t.Errorf("empty provider: %v", err)
	}
}
