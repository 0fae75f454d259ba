// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Corphon/TubeDigest/internal/utils"
)

// 当前配置的单例实例
var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// 提供者与字幕接口的默认值
const (
	DefaultGitHubEndpoint     = "https://models.inference.ai.azure.com"
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"
	DefaultModelName          = "gpt-4o-mini"
	DefaultTranscriptEndpoint = "https://yt.vl.comp.polyu.edu.hk/transcript"

	MinMaxTokens = 1000
	MaxMaxTokens = 10000
)

// ProviderConfig 单个 LLM 提供者的端点、凭证和模型
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// Config 存储应用配置
type Config struct {
	Port         string `yaml:"port"`
	StaticDir    string `yaml:"static_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	LogDir       string `yaml:"log_dir"`
	LogLevel     string `yaml:"log_level"`
	DebugMode    bool   `yaml:"debug_mode"`

	// 字幕接口
	TranscriptEndpoint string        `yaml:"transcript_endpoint"`
	TranscriptPassword string        `yaml:"transcript_password"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`

	// LLM
	DefaultProvider string         `yaml:"default_provider"`
	MaxTokens       int            `yaml:"max_tokens"`
	GitHub          ProviderConfig `yaml:"github"`
	OpenRouter      ProviderConfig `yaml:"openrouter"`

	// 会话与缓存
	SessionSecret string        `yaml:"session_secret"` // 会话 cookie 签名密钥，为空时每次启动随机生成
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheSize     int           `yaml:"cache_size"`

	// 配置文件路径，用于热加载
	ConfigFile string `yaml:"-"`
}

// Load 依次读取 .env、环境变量和可选的 YAML 文件
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		StaticDir:    getEnv("STATIC_DIR", "web/static"),
		TemplatesDir: getEnv("TEMPLATES_DIR", "web/templates"),
		LogDir:       getEnv("LOG_DIR", "logs"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DebugMode:    getEnvBool("DEBUG_MODE", false),

		TranscriptEndpoint: getEnv("TRANSCRIPT_API_ENDPOINT", DefaultTranscriptEndpoint),
		TranscriptPassword: getEnv("TRANSCRIPT_API_PASSWORD", ""),

		SessionSecret: getEnv("SESSION_SECRET", ""),

		DefaultProvider: getEnv("DEFAULT_PROVIDER", "github"),
		GitHub: ProviderConfig{
			Endpoint: getEnv("GITHUB_API_ENDPOINT", DefaultGitHubEndpoint),
			APIKey:   getEnv("GITHUB_API_KEY", ""),
			Model:    getEnv("GITHUB_API_MODEL_NAME", DefaultModelName),
		},
		OpenRouter: ProviderConfig{
			Endpoint: getEnv("OPENROUTER_API_ENDPOINT", DefaultOpenRouterEndpoint),
			APIKey:   getEnv("OPENROUTER_API_KEY", ""),
			Model:    getEnv("OPENROUTER_API_MODEL_NAME", DefaultModelName),
		},

		ConfigFile: getEnv("CONFIG_FILE", "config.yaml"),
	}

	var err error
	if cfg.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxTokens, err = getEnvInt("LLM_MAX_TOKENS", MinMaxTokens); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getEnvInt("CACHE_SIZE", 200); err != nil {
		return nil, err
	}

	if err := cfg.applyFile(cfg.ConfigFile); err != nil {
		return nil, err
	}

	if err := cfg.decryptSecrets(os.Getenv(SecretKeyEnv)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile 用 YAML 文件中的非空值覆盖当前配置，文件不存在时忽略
func (c *Config) applyFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(&file)
	return nil
}

func (c *Config) merge(o *Config) {
	setString(&c.Port, o.Port)
	setString(&c.StaticDir, o.StaticDir)
	setString(&c.TemplatesDir, o.TemplatesDir)
	setString(&c.LogDir, o.LogDir)
	setString(&c.LogLevel, o.LogLevel)
	if o.DebugMode {
		c.DebugMode = true
	}

	setString(&c.TranscriptEndpoint, o.TranscriptEndpoint)
	setString(&c.TranscriptPassword, o.TranscriptPassword)
	if o.HTTPTimeout > 0 {
		c.HTTPTimeout = o.HTTPTimeout
	}

	setString(&c.SessionSecret, o.SessionSecret)
	setString(&c.DefaultProvider, o.DefaultProvider)
	if o.MaxTokens > 0 {
		c.MaxTokens = o.MaxTokens
	}
	mergeProvider(&c.GitHub, o.GitHub)
	mergeProvider(&c.OpenRouter, o.OpenRouter)

	if o.SessionTTL > 0 {
		c.SessionTTL = o.SessionTTL
	}
	if o.CacheTTL > 0 {
		c.CacheTTL = o.CacheTTL
	}
	if o.CacheSize > 0 {
		c.CacheSize = o.CacheSize
	}
}

// SecretKeyEnv 解密 "enc:" 前缀配置值所用密钥的环境变量
const SecretKeyEnv = "CONFIG_SECRET_KEY"

// decryptSecrets 解密以 "enc:" 开头的凭证字段
func (c *Config) decryptSecrets(key string) error {
	fields := map[string]*string{
		"transcript_password": &c.TranscriptPassword,
		"session_secret":      &c.SessionSecret,
		"github.api_key":      &c.GitHub.APIKey,
		"openrouter.api_key":  &c.OpenRouter.APIKey,
	}
	for name, field := range fields {
		if !utils.IsEncrypted(*field) {
			continue
		}
		if key == "" {
			return fmt.Errorf("%s is encrypted but %s is not set", name, SecretKeyEnv)
		}
		plain, err := utils.Decrypt(*field, key)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}

func mergeProvider(dst *ProviderConfig, src ProviderConfig) {
	setString(&dst.Endpoint, src.Endpoint)
	setString(&dst.APIKey, src.APIKey)
	setString(&dst.Model, src.Model)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate 补全默认值并拒绝非法取值
func (c *Config) Validate() error {
	if c.Port == "" {
		c.Port = "8080"
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Port)
	}
	if c.TranscriptEndpoint == "" {
		return fmt.Errorf("transcript_endpoint is required")
	}

	switch c.DefaultProvider {
	case "github", "openrouter":
	default:
		return fmt.Errorf("default_provider must be github or openrouter, got %q", c.DefaultProvider)
	}

	if c.MaxTokens < MinMaxTokens {
		c.MaxTokens = MinMaxTokens
	}
	if c.MaxTokens > MaxMaxTokens {
		c.MaxTokens = MaxMaxTokens
	}

	if c.GitHub.Endpoint == "" {
		c.GitHub.Endpoint = DefaultGitHubEndpoint
	}
	if c.GitHub.Model == "" {
		c.GitHub.Model = DefaultModelName
	}
	if c.OpenRouter.Endpoint == "" {
		c.OpenRouter.Endpoint = DefaultOpenRouterEndpoint
	}
	if c.OpenRouter.Model == "" {
		c.OpenRouter.Model = DefaultModelName
	}

	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 120 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 200
	}

	return nil
}

// Provider 返回指定提供者的配置
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case "github":
		return c.GitHub, true
	case "openrouter":
		return c.OpenRouter, true
	default:
		return ProviderConfig{}, false
	}
}

// SetCurrentConfig 安装当前配置
func SetCurrentConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return nil
	}
	configCopy := *currentConfig
	return &configCopy
}

// Reload 重新读取配置文件并替换当前配置，失败时保留旧配置
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	SetCurrentConfig(cfg)
	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
