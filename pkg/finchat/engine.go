// Package finchat assembles the message-routing pipeline: filters,
// router, workers, stores and delivery, wired from a single Config.
package finchat

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/contextstore"
	"github.com/mainstar123/finchat/pkg/gateway"
	"github.com/mainstar123/finchat/pkg/lang"
	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/metrics"
	"github.com/mainstar123/finchat/pkg/observers"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/profile"
	"github.com/mainstar123/finchat/pkg/redact"
	"github.com/mainstar123/finchat/pkg/resilience"
	"github.com/mainstar123/finchat/pkg/stages"
)

type Engine struct {
	cfg      Config
	engine   *pipeline.Engine
	locks    *pipeline.ThreadLocks
	threads  contextstore.Store
	profiles profile.Store
	pacer    *gateway.Pacer
	breakers *resilience.Registry
	asyncObs *metrics.AsyncObserver
	log      *slog.Logger
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Optional overrides; built from Config when nil.
	Threads  contextstore.Store
	Profiles profile.Store
	Gateway  gateway.Gateway
	Detector lang.Detector
	Observer metrics.Observer
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel)
	redact.SetEnabled(cfg.Privacy.RedactPII)
	log := slog.Default()

	log.Info("finchat_init",
		"environment", cfg.Environment,
		"reasoning_provider", cfg.Vendors.Reasoning.Provider,
		"gateway", cfg.Gateway.Provider,
	)

	obs := opts.Observer
	if obs == nil {
		obs = observers.NewLoggerObserver(log)
	}
	asyncObs := metrics.NewAsyncObserver(obs, 2048)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	breakers := resilience.NewRegistry()
	breakerOpts := resilience.Options{
		FailureThreshold:         cfg.Breaker.FailureThreshold,
		ResetTimeout:             time.Duration(cfg.Breaker.ResetTimeoutMS) * time.Millisecond,
		HalfOpenSuccessThreshold: cfg.Breaker.HalfOpenSuccessThreshold,
	}
	retryCfg := llm.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:      cfg.Retry.Jitter,
	}
	buildAdapter := func(vendor VendorConfig) (llm.Adapter, error) {
		inner, err := providers.BuildLLM(vendor)
		if err != nil {
			return nil, err
		}
		cb := llm.NewCircuitBreakerAdapter(inner, breakers, breakerOpts)
		cb.SetObserver(asyncObs)
		return llm.NewRetryAdapter(cb, retryCfg), nil
	}

	reasoning, err := buildAdapter(cfg.Vendors.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("reasoning adapter: %w", err)
	}
	classifier := reasoning
	if strings.TrimSpace(cfg.Vendors.Classifier.Provider) != "" {
		if classifier, err = buildAdapter(cfg.Vendors.Classifier); err != nil {
			return nil, fmt.Errorf("classifier adapter: %w", err)
		}
	}
	structurer := reasoning
	if strings.TrimSpace(cfg.Vendors.Structurer.Provider) != "" {
		if structurer, err = buildAdapter(cfg.Vendors.Structurer); err != nil {
			return nil, fmt.Errorf("structurer adapter: %w", err)
		}
	}

	detector := opts.Detector
	if detector == nil {
		detector = lang.NewLLMDetector(classifier)
	}

	threads := opts.Threads
	if threads == nil {
		if dir := strings.TrimSpace(cfg.Persistence.Dir); dir != "" {
			fs, err := contextstore.NewFileStore(dir, cfg.Context.MessageCeiling)
			if err != nil {
				return nil, fmt.Errorf("context store: %w", err)
			}
			threads = fs
		} else {
			threads = contextstore.NewMemoryStore(cfg.Context.MessageCeiling)
		}
	}
	profiles := opts.Profiles
	if profiles == nil {
		profiles = profile.NewMemoryStore()
	}

	gw := opts.Gateway
	if gw == nil {
		if gw, err = providers.BuildGateway(cfg.Gateway); err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
	}

	workerTimeout := time.Duration(cfg.Workers.TimeoutMS) * time.Millisecond
	registry := pipeline.NewRegistry()
	summarizer := stages.NewHistorySummarizer(reasoning, workerTimeout)
	registry.Register(stages.NewInputFilter(stages.InputFilterConfig{
		MaxContentChars: cfg.Input.MaxContentChars,
		HistoryLimit:    cfg.Input.HistoryLimit,
	}, detector, summarizer, log))
	registry.Register(stages.NewRouter(stages.RouterConfig{
		ClassifierTimeout: time.Duration(cfg.Router.ClassifierTimeoutMS) * time.Millisecond,
		HistoryTurns:      cfg.Router.HistoryTurns,
	}, classifier, asyncObs, log))
	registry.Register(stages.NewRegistrationWorker(profiles, log))
	registry.Register(stages.NewFinanceWorker(reasoning, workerTimeout, log))
	registry.Register(stages.NewGeneralWorker(reasoning, workerTimeout, log))
	registry.Register(stages.NewErrorHandler(nil, log))
	registry.Register(stages.NewOutputFilter(stages.OutputFilterConfig{
		Timeout:   time.Duration(cfg.Output.TimeoutMS) * time.Millisecond,
		MaxChunks: cfg.Output.MaxChunks,
	}, structurer, formatterFor(cfg.Output.Format), log))

	return &Engine{
		cfg:      cfg,
		engine:   pipeline.NewEngine(registry, cfg.Engine.MaxHops, asyncObs, log),
		locks:    pipeline.NewThreadLocks(),
		threads:  threads,
		profiles: profiles,
		pacer:    gateway.NewPacer(gw, asyncObs, log),
		breakers: breakers,
		asyncObs: asyncObs,
		log:      log,
	}, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Breakers() *resilience.Registry { return e.breakers }

func (e *Engine) Threads() contextstore.Store { return e.threads }

func (e *Engine) Profiles() profile.Store { return e.profiles }

// Close drains the async observer. Call after the last turn.
func (e *Engine) Close() error {
	e.asyncObs.Close()
	return nil
}

// Drain satisfies runner.Drainer so the engine can sit inside a
// lifecycle runner.
func (e *Engine) Drain() error { return e.Close() }

func formatterFor(format string) stages.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "plain":
		return stages.PlainFormatter{}
	default:
		return stages.WhatsAppFormatter{}
	}
}

func SetDefaultLogger(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
