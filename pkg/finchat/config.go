package finchat

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Vendors     VendorsConfig     `mapstructure:"vendors"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Input       InputConfig       `mapstructure:"input"`
	Router      RouterConfig      `mapstructure:"router"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	Output      OutputConfig      `mapstructure:"output"`
	Context     ContextConfig     `mapstructure:"context"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Languages   LanguageConfig    `mapstructure:"languages"`
	Privacy     PrivacyConfig     `mapstructure:"privacy"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// VendorConfig names a provider plus its free-form settings block,
// decoded per provider with configutil.DecodeSettings.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Reasoning  VendorConfig `mapstructure:"reasoning"`
	Classifier VendorConfig `mapstructure:"classifier"`
	Structurer VendorConfig `mapstructure:"structurer"`
}

type GatewayConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type InputConfig struct {
	MaxContentChars int `mapstructure:"max_content_chars"`
	HistoryLimit    int `mapstructure:"history_limit"`
}

type RouterConfig struct {
	ClassifierTimeoutMS int `mapstructure:"classifier_timeout_ms"`
	HistoryTurns        int `mapstructure:"history_turns"`
}

type WorkersConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
}

type OutputConfig struct {
	Format    string `mapstructure:"format"`
	MaxChunks int    `mapstructure:"max_chunks"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type ContextConfig struct {
	MessageCeiling int `mapstructure:"message_ceiling"`
}

type BreakerConfig struct {
	FailureThreshold         int `mapstructure:"failure_threshold"`
	ResetTimeoutMS           int `mapstructure:"reset_timeout_ms"`
	HalfOpenSuccessThreshold int `mapstructure:"half_open_success_threshold"`
}

type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMS int     `mapstructure:"base_delay_ms"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms"`
	Jitter      float64 `mapstructure:"jitter"`
}

type LanguageConfig struct {
	Default string `mapstructure:"default"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type EngineConfig struct {
	MaxHops int `mapstructure:"max_hops"`
}

type PersistenceConfig struct {
	Dir string `mapstructure:"dir"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("input.max_content_chars", 1000)
	v.SetDefault("input.history_limit", 6)
	v.SetDefault("router.classifier_timeout_ms", 5000)
	v.SetDefault("router.history_turns", 6)
	v.SetDefault("workers.timeout_ms", 15000)
	v.SetDefault("output.format", "whatsapp")
	v.SetDefault("output.max_chunks", 4)
	v.SetDefault("output.timeout_ms", 8000)
	v.SetDefault("context.message_ceiling", 30)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_ms", 30000)
	v.SetDefault("breaker.half_open_success_threshold", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 100)
	v.SetDefault("retry.max_delay_ms", 2000)
	v.SetDefault("retry.jitter", 0.2)
	v.SetDefault("languages.default", "en")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("engine.max_hops", 16)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Reasoning.Provider) == "" {
		return fmt.Errorf("vendors.reasoning.provider is required")
	}
	if strings.TrimSpace(c.Gateway.Provider) == "" {
		return fmt.Errorf("gateway.provider is required")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Reasoning.Settings = expandSettings(cfg.Vendors.Reasoning.Settings)
	cfg.Vendors.Classifier.Settings = expandSettings(cfg.Vendors.Classifier.Settings)
	cfg.Vendors.Structurer.Settings = expandSettings(cfg.Vendors.Structurer.Settings)
	cfg.Gateway.Settings = expandSettings(cfg.Gateway.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
