package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported completion providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Supported backends for the rate-limit and session stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	// Server
	Host        string
	Port        string
	Debug       bool
	CORSOrigins []string

	// Completion API
	Provider         string
	APIKey           string
	BaseURL          string
	Model            string
	ModelCatalog     map[string]string // alias=id overrides from MODEL_CATALOG
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	RequestTimeout   time.Duration

	// Conversation
	MaxHistory int
	SessionTTL time.Duration

	// Security
	RateLimitPerMinute int
	MinMessageLength   int
	MaxMessageLength   int
	BlockedWords       []string

	// Stores
	StoreBackend string
	RedisURL     string

	// Logging
	LogLevel string
	LogFile  string

	// Company profile override (YAML); empty uses the embedded default
	ProfilePath string
}

// ConfigurationError reports a setting that prevents the service from starting.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	env := &envParser{}

	debug := env.boolean("DEBUG", false)
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}

	cfg := &Config{
		Host:        getEnvOrDefault("HOST", "0.0.0.0"),
		Port:        getEnvOrDefault("PORT", "10000"),
		Debug:       debug,
		CORSOrigins: getEnvAsListOrDefault("CORS_ORIGINS", []string{"*"}),

		Provider:         strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderGroq)),
		BaseURL:          getEnvOrDefault("COMPLETION_BASE_URL", ""),
		Model:            getEnvOrDefault("MODEL", "fast"),
		ModelCatalog:     env.mapping("MODEL_CATALOG"),
		Temperature:      env.float("TEMPERATURE", 0.7),
		MaxTokens:        env.integer("MAX_TOKENS", 1024),
		TopP:             env.float("TOP_P", 1.0),
		FrequencyPenalty: env.float("FREQUENCY_PENALTY", 0),
		PresencePenalty:  env.float("PRESENCE_PENALTY", 0),
		RequestTimeout:   time.Duration(env.integer("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		MaxHistory: env.integer("MAX_CONVERSATION_HISTORY", 10),
		SessionTTL: time.Duration(env.integer("SESSION_TTL_HOURS", 24)) * time.Hour,

		RateLimitPerMinute: env.integer("RATE_LIMIT_PER_MINUTE", 30),
		MinMessageLength:   env.integer("MIN_MESSAGE_LENGTH", 1),
		MaxMessageLength:   env.integer("MAX_MESSAGE_LENGTH", 1000),
		BlockedWords:       getEnvAsListOrDefault("BLOCKED_WORDS", []string{"spam", "hack", "malware", "injures"}),

		StoreBackend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		RedisURL:     getEnvOrDefault("REDIS_URL", ""),

		LogLevel: getEnvOrDefault("LOG_LEVEL", logLevel),
		LogFile:  getEnvOrDefault("LOG_FILE", "logs/welcome_agent.log"),

		ProfilePath: getEnvOrDefault("COMPANY_PROFILE_PATH", ""),
	}
	if env.err != nil {
		return nil, env.err
	}

	cfg.APIKey = getEnvOrDefault("COMPLETION_API_KEY", os.Getenv(credentialKey(cfg.Provider)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini:
	default:
		return &ConfigurationError{Key: "COMPLETION_PROVIDER", Message: fmt.Sprintf("unsupported provider %q", c.Provider)}
	}
	if c.APIKey == "" {
		return &ConfigurationError{Key: credentialKey(c.Provider), Message: "completion API key is not set"}
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 1 {
		return &ConfigurationError{Key: "TEMPERATURE", Message: "must be between 0.0 and 1.0"}
	}
	if math.IsNaN(c.TopP) || c.TopP < 0 || c.TopP > 1 {
		return &ConfigurationError{Key: "TOP_P", Message: "must be between 0.0 and 1.0"}
	}
	if c.MaxTokens < 1 {
		return &ConfigurationError{Key: "MAX_TOKENS", Message: "must be at least 1"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigurationError{Key: "REQUEST_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.MaxHistory < 1 {
		return &ConfigurationError{Key: "MAX_CONVERSATION_HISTORY", Message: "must be at least 1"}
	}
	if c.RateLimitPerMinute < 1 {
		return &ConfigurationError{Key: "RATE_LIMIT_PER_MINUTE", Message: "must be at least 1"}
	}
	if c.SessionTTL <= 0 {
		return &ConfigurationError{Key: "SESSION_TTL_HOURS", Message: "must be positive"}
	}
	if c.MinMessageLength > c.MaxMessageLength {
		return &ConfigurationError{Key: "MIN_MESSAGE_LENGTH", Message: "exceeds MAX_MESSAGE_LENGTH"}
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return &ConfigurationError{Key: "REDIS_URL", Message: "required when STORE_BACKEND=redis"}
		}
	default:
		return &ConfigurationError{Key: "STORE_BACKEND", Message: fmt.Sprintf("unsupported backend %q", c.StoreBackend)}
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func credentialKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// envParser reads typed settings and keeps the first parse failure.
type envParser struct {
	err error
}

func (p *envParser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *envParser) integer(key string, defaultVal int) int {
	n, err := getEnvAsIntOrDefault(key, defaultVal)
	p.keep(err)
	return n
}

func (p *envParser) float(key string, defaultVal float64) float64 {
	f, err := getEnvAsFloatOrDefault(key, defaultVal)
	p.keep(err)
	return f
}

func (p *envParser) boolean(key string, defaultVal bool) bool {
	b, err := getEnvAsBoolOrDefault(key, defaultVal)
	p.keep(err)
	return b
}

func (p *envParser) mapping(key string) map[string]string {
	m, err := getEnvAsMap(key)
	p.keep(err)
	return m
}

func getEnvAsIntOrDefault(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal, &ConfigurationError{Key: key, Message: fmt.Sprintf("%q is not an integer", val)}
	}
	return n, nil
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultVal, &ConfigurationError{Key: key, Message: fmt.Sprintf("%q is not a finite number", val)}
	}
	return f, nil
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal, &ConfigurationError{Key: key, Message: fmt.Sprintf("%q is not a boolean", val)}
	}
	return b, nil
}

// getEnvAsMap parses "alias=value" pairs separated by commas.
func getEnvAsMap(key string) (map[string]string, error) {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, &ConfigurationError{Key: key, Message: fmt.Sprintf("%q is not an alias=value pair", item)}
		}
		out[k] = v
	}
	return out, nil
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
