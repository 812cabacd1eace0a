package finchat

import (
	"fmt"
	"strings"

	"github.com/mainstar123/finchat/pkg/configutil"
	"github.com/mainstar123/finchat/pkg/gateway"
	gwtwilio "github.com/mainstar123/finchat/pkg/gateway/twilio"
	gwws "github.com/mainstar123/finchat/pkg/gateway/ws"
	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/providers/mock"
)

type LLMFactory func(settings map[string]any) (llm.Adapter, error)
type GatewayFactory func(settings map[string]any) (gateway.Gateway, error)

type ProviderRegistry struct {
	llm      map[string]LLMFactory
	gateways map[string]GatewayFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		llm:      make(map[string]LLMFactory),
		gateways: make(map[string]GatewayFactory),
	}
	r.RegisterLLM("mock", func(settings map[string]any) (llm.Adapter, error) {
		var cfg struct {
			ResponseText string   `mapstructure:"response_text"`
			Responses    []string `mapstructure:"responses"`
		}
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			ResponseText: cfg.ResponseText,
			Responses:    cfg.Responses,
		}), nil
	})
	r.RegisterGateway("mock", func(map[string]any) (gateway.Gateway, error) {
		return &gateway.Mock{}, nil
	})
	r.RegisterGateway("twilio", func(settings map[string]any) (gateway.Gateway, error) {
		schema := configutil.Schema{Required: []string{"account_sid", "auth_token", "from"}}
		if err := configutil.ValidateSettings(settings, schema); err != nil {
			return nil, fmt.Errorf("twilio settings: %w", err)
		}
		var cfg gwtwilio.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return gwtwilio.New(cfg)
	})
	r.RegisterGateway("ws", func(settings map[string]any) (gateway.Gateway, error) {
		schema := configutil.Schema{Required: []string{"url"}}
		if err := configutil.ValidateSettings(settings, schema); err != nil {
			return nil, fmt.Errorf("ws settings: %w", err)
		}
		var cfg gwws.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return gwws.New(cfg), nil
	})
	return r
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterGateway(name string, factory GatewayFactory) {
	r.gateways[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildLLM(vendor VendorConfig) (llm.Adapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(vendor.Provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildGateway(cfg GatewayConfig) (gateway.Gateway, error) {
	fn := r.gateways[strings.ToLower(strings.TrimSpace(cfg.Provider))]
	if fn == nil {
		return nil, fmt.Errorf("gateway provider not registered: %s", cfg.Provider)
	}
	return fn(cfg.Settings)
}
