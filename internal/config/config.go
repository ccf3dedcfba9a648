package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// 探针默认值。
const (
	DefaultBaseURL        = "https://fit-iq-backend.fly.dev"
	DefaultPersona        = "wellness_specialist"
	DefaultMessage        = "Hi! Can you help me with what I'm trying to achieve?"
	DefaultConnectTimeout = 5 * time.Second
	DefaultReceiveTimeout = 20 * time.Second
	DefaultHTTPTimeout    = 30 * time.Second
)

// Config 聚合探针和本地 mock 后端的配置项。
type Config struct {
	Probe ProbeConfig
	Mock  MockConfig
}

// Load 从环境变量加载全部配置。
func Load() (*Config, error) {
	probe, err := LoadProbe()
	if err != nil {
		return nil, err
	}

	mock, err := LoadMock()
	if err != nil {
		return nil, err
	}

	return &Config{Probe: probe, Mock: mock}, nil
}

// LoadProbe 只读取探针相关的环境变量，mock 配置错误不影响探针。
func LoadProbe() (ProbeConfig, error) {
	return loadProbeConfig()
}

// LoadMock 只读取 mock 后端相关的环境变量。
func LoadMock() (MockConfig, error) {
	return loadMockConfig()
}

// ProbeConfig 描述一次探针运行所需的远端地址、凭证和超时。
type ProbeConfig struct {
	BaseURL        string
	APIKey         string
	Email          string
	Password       string
	Persona        string
	Message        string
	GoalFile       string
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	HTTPTimeout    time.Duration
}

// Validate 检查运行探针前必须具备的字段。
func (c ProbeConfig) Validate() error {
	if _, err := WebSocketBase(c.BaseURL); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("PROBE_EMAIL and PROBE_PASSWORD are required")
	}
	if c.ConnectTimeout <= 0 || c.ReceiveTimeout <= 0 {
		return fmt.Errorf("stream timeouts must be positive")
	}
	return nil
}

// WebSocketBase 把 HTTP 基础地址转换成对应的 ws/wss 地址。
func WebSocketBase(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid base url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", base)
	}
	return u.String(), nil
}

func loadProbeConfig() (ProbeConfig, error) {
	connect, err := parseDurationSecondsEnv("PROBE_CONNECT_TIMEOUT", DefaultConnectTimeout)
	if err != nil {
		return ProbeConfig{}, err
	}
	receive, err := parseDurationSecondsEnv("PROBE_RECEIVE_TIMEOUT", DefaultReceiveTimeout)
	if err != nil {
		return ProbeConfig{}, err
	}
	httpTimeout, err := parseDurationSecondsEnv("PROBE_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return ProbeConfig{}, err
	}

	return ProbeConfig{
		BaseURL:        getEnvOrDefault("PROBE_BASE_URL", DefaultBaseURL),
		APIKey:         strings.TrimSpace(os.Getenv("API_KEY")),
		Email:          strings.TrimSpace(os.Getenv("PROBE_EMAIL")),
		Password:       os.Getenv("PROBE_PASSWORD"),
		Persona:        getEnvOrDefault("PROBE_PERSONA", DefaultPersona),
		Message:        getEnvOrDefault("PROBE_MESSAGE", DefaultMessage),
		GoalFile:       strings.TrimSpace(os.Getenv("PROBE_GOAL_FILE")),
		ConnectTimeout: connect,
		ReceiveTimeout: receive,
		HTTPTimeout:    httpTimeout,
	}, nil
}

// MockConfig 描述本地 mock 后端。
type MockConfig struct {
	Server     ServerConfig
	APIKey     string
	Email      string
	Password   string
	ReplyMode  string
	Batch      bool
	ChunkDelay time.Duration
	AI         AIConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadMockConfig() (MockConfig, error) {
	server, err := loadServerConfig()
	if err != nil {
		return MockConfig{}, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return MockConfig{}, err
	}

	batch, err := parseBoolEnv("MOCK_BATCH_FRAMES", true)
	if err != nil {
		return MockConfig{}, err
	}

	delay := 0
	if override, err := parseOptionalIntEnv("MOCK_CHUNK_DELAY_MS"); err != nil {
		return MockConfig{}, err
	} else if override != nil && *override > 0 {
		delay = *override
	}

	mode := strings.ToLower(getEnvOrDefault("MOCK_REPLY_MODE", "scripted"))
	switch mode {
	case "scripted", "oblivious", "llm":
	default:
		return MockConfig{}, fmt.Errorf("invalid MOCK_REPLY_MODE value: %q", mode)
	}

	return MockConfig{
		Server:     server,
		APIKey:     strings.TrimSpace(os.Getenv("MOCK_API_KEY")),
		Email:      getEnvOrDefault("MOCK_EMAIL", "probe@example.com"),
		Password:   getEnvOrDefault("MOCK_PASSWORD", "probe-password"),
		ReplyMode:  mode,
		Batch:      batch,
		ChunkDelay: time.Duration(delay) * time.Millisecond,
		AI:         ai,
	}, nil
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置，仅 mock 后端的 llm 模式使用。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationSecondsEnv 读取以秒为单位的超时，允许小数。
func parseDurationSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return defaultValue, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value %v: must be positive", key, *seconds)
	}
	return time.Duration(*seconds * float64(time.Second)), nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
