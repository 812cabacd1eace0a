package finchat

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
vendors:
  reasoning:
    provider: mock
gateway:
  provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "development" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if cfg.Input.MaxContentChars != 1000 || cfg.Input.HistoryLimit != 6 {
		t.Fatalf("input defaults = %+v", cfg.Input)
	}
	if cfg.Output.Format != "whatsapp" || cfg.Output.MaxChunks != 4 {
		t.Fatalf("output defaults = %+v", cfg.Output)
	}
	if cfg.Context.MessageCeiling != 30 {
		t.Fatalf("message ceiling = %d", cfg.Context.MessageCeiling)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Breaker.HalfOpenSuccessThreshold != 2 {
		t.Fatalf("breaker defaults = %+v", cfg.Breaker)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Jitter != 0.2 {
		t.Fatalf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Languages.Default != "en" || !cfg.Privacy.RedactPII {
		t.Fatalf("languages/privacy defaults = %+v %+v", cfg.Languages, cfg.Privacy)
	}
	if cfg.Engine.MaxHops != 16 {
		t.Fatalf("max hops = %d", cfg.Engine.MaxHops)
	}
}

func TestLoadConfigOverridesAndSettings(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
vendors:
  reasoning:
    provider: mock
    settings:
      response_text: hello there
gateway:
  provider: twilio
  settings:
    from: "+15550100"
output:
  format: plain
  max_chunks: 2
context:
  message_ceiling: 12
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Output.Format != "plain" || cfg.Output.MaxChunks != 2 {
		t.Fatalf("output = %+v", cfg.Output)
	}
	if cfg.Context.MessageCeiling != 12 {
		t.Fatalf("message ceiling = %d", cfg.Context.MessageCeiling)
	}
	if got := cfg.Vendors.Reasoning.Settings["response_text"]; got != "hello there" {
		t.Fatalf("reasoning settings = %v", cfg.Vendors.Reasoning.Settings)
	}
	if got := cfg.Gateway.Settings["from"]; got != "+15550100" {
		t.Fatalf("gateway settings = %v", cfg.Gateway.Settings)
	}
}

func TestLoadConfigExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GATEWAY_TOKEN", "s3cret")
	t.Setenv("TEST_ENV_NAME", "staging")
	path := writeConfig(t, `
environment: ${TEST_ENV_NAME}
vendors:
  reasoning:
    provider: mock
gateway:
  provider: twilio
  settings:
    auth_token: ${TEST_GATEWAY_TOKEN}
    nested:
      token: ${TEST_GATEWAY_TOKEN}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if got := cfg.Gateway.Settings["auth_token"]; got != "s3cret" {
		t.Fatalf("auth_token = %v", got)
	}
	nested, ok := cfg.Gateway.Settings["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested settings = %T", cfg.Gateway.Settings["nested"])
	}
	if nested["token"] != "s3cret" {
		t.Fatalf("nested token = %v", nested["token"])
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, `
gateway:
  provider: mock
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("want error for missing reasoning provider")
	}

	path = writeConfig(t, `
vendors:
  reasoning:
    provider: mock
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("want error for missing gateway provider")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}
