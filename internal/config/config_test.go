package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Corphon/TubeDigest/internal/utils"
)

// isolate points CONFIG_FILE at a temp path so a stray config.yaml never leaks in
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("CONFIG_FILE", path)
	for _, key := range []string{
		"PORT", "GITHUB_API_KEY", "OPENROUTER_API_KEY", "LLM_MAX_TOKENS",
		"DEFAULT_PROVIDER", "HTTP_TIMEOUT", "SESSION_TTL", "SESSION_SECRET",
		SecretKeyEnv,
	} {
		t.Setenv(key, "")
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GitHub.Endpoint != DefaultGitHubEndpoint || cfg.GitHub.Model != DefaultModelName {
		t.Errorf("unexpected github defaults %+v", cfg.GitHub)
	}
	if cfg.OpenRouter.Endpoint != DefaultOpenRouterEndpoint {
		t.Errorf("unexpected openrouter endpoint %q", cfg.OpenRouter.Endpoint)
	}
	if cfg.MaxTokens != MinMaxTokens {
		t.Errorf("MaxTokens = %d", cfg.MaxTokens)
	}
	if cfg.HTTPTimeout != 120*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_API_KEY", "gh-key")
	t.Setenv("OPENROUTER_API_MODEL_NAME", "openai/gpt-4o")
	t.Setenv("LLM_MAX_TOKENS", "50000")
	t.Setenv("DEFAULT_PROVIDER", "openrouter")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.APIKey != "gh-key" {
		t.Errorf("GitHub.APIKey = %q", cfg.GitHub.APIKey)
	}
	if cfg.OpenRouter.Model != "openai/gpt-4o" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if cfg.MaxTokens != MaxMaxTokens {
		t.Errorf("MaxTokens should be clamped to %d, got %d", MaxMaxTokens, cfg.MaxTokens)
	}
	if cfg.DefaultProvider != "openrouter" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "HTTP_TIMEOUT", "soon"},
		{"bad tokens", "LLM_MAX_TOKENS", "many"},
		{"bad provider", "DEFAULT_PROVIDER", "gemini"},
		{"bad port", "PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestYAMLFileOverridesEnv(t *testing.T) {
	path := isolate(t)
	t.Setenv("GITHUB_API_KEY", "from-env")

	yaml := `
port: "9090"
session_ttl: 45m
github:
  api_key: from-file
openrouter:
  model: meta-llama/llama-3-8b
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GitHub.APIKey != "from-file" {
		t.Errorf("GitHub.APIKey = %q", cfg.GitHub.APIKey)
	}
	if cfg.GitHub.Model != DefaultModelName {
		t.Errorf("empty YAML values must not clear env values, got %q", cfg.GitHub.Model)
	}
	if cfg.OpenRouter.Model != "meta-llama/llama-3-8b" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestYAMLFileInvalid(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestProviderLookup(t *testing.T) {
	cfg := &Config{
		GitHub:     ProviderConfig{APIKey: "a"},
		OpenRouter: ProviderConfig{APIKey: "b"},
	}
	if p, ok := cfg.Provider("github"); !ok || p.APIKey != "a" {
		t.Errorf("github lookup = %+v, %v", p, ok)
	}
	if p, ok := cfg.Provider("openrouter"); !ok || p.APIKey != "b" {
		t.Errorf("openrouter lookup = %+v, %v", p, ok)
	}
	if _, ok := cfg.Provider("anthropic"); ok {
		t.Error("unknown provider should not resolve")
	}
}

func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	SetCurrentConfig(&Config{Port: "1234"})
	defer SetCurrentConfig(nil)

	cfg := GetCurrentConfig()
	cfg.Port = "9999"
	if GetCurrentConfig().Port != "1234" {
		t.Error("GetCurrentConfig must return a copy")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("port: \"8081\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	defer SetCurrentConfig(nil)

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// give the watcher a moment to register before writing
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("port: \"8082\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Port != "8082" {
			t.Errorf("reloaded Port = %q", cfg.Port)
		}
		if GetCurrentConfig().Port != "8082" {
			t.Error("reload should install the new config")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestEncryptedSecrets(t *testing.T) {
	path := isolate(t)
	sealed, err := utils.Encrypt("gh-secret", "passphrase")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	yaml := "github:\n  api_key: \"" + sealed + "\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("encrypted value without key should fail")
	}

	t.Setenv(SecretKeyEnv, "passphrase")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.APIKey != "gh-secret" {
		t.Errorf("APIKey = %q", cfg.GitHub.APIKey)
	}

	t.Setenv(SecretKeyEnv, "wrong")
	if _, err := Load(); err == nil {
		t.Error("wrong key should fail")
	}
}
