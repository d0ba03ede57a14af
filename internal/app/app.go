// Package app assembles the workspace and its backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadproton/server/internal/activity"
	"github.com/leadproton/server/internal/config"
	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/llm"
	"github.com/leadproton/server/internal/mail"
	natsclient "github.com/leadproton/server/internal/nats"
	"github.com/leadproton/server/internal/queue"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/internal/tracking"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Config    *config.Config
	Store     store.KV
	Bus       *events.Bus
	Workspace *workspace.Workspace

	// NATS and Bridge are nil unless NATS_URL is set.
	NATS   *natsclient.Client
	Bridge *natsclient.Bridge
	// Producer is nil unless AMQP_URL is set.
	Producer *queue.Producer

	logger *logger.Logger
}

// New opens the configured store and builds the workspace. Optional relays
// are started by Connect.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrGlobal(log)

	kv, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}

	client, err := NewLLMClient(ctx, cfg)
	if err != nil {
		log.Warn("failed to create LLM client, using heuristics", zap.Error(err))
		client = nil
	}
	gw := gateway.New(client, log)
	log.Info("AI gateway ready", zap.String("provider", gw.Provider()))

	bus := events.NewBus()
	ws := workspace.New(workspace.Deps{
		KV:         kv,
		Bus:        bus,
		Activities: activity.NewStore(kv, bus, log),
		Gateway:    gw,
		Mailer:     NewMailer(cfg, log),
		Tracker:    tracking.NewInjector(cfg.TrackingBaseURL),
		Logger:     log,
	})

	return &App{
		Config:    cfg,
		Store:     kv,
		Bus:       bus,
		Workspace: ws,
		logger:    log,
	}, nil
}

// NewLLMClient returns a client for the configured default provider, or for
// the first provider with a key. It returns nil when no key is set.
func NewLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	keys := llm.Keys{
		Gemini:    cfg.GeminiAPIKey,
		Anthropic: cfg.AnthropicAPIKey,
		OpenAI:    cfg.OpenAIAPIKey,
	}
	keyFor := map[llm.Provider]string{
		llm.ProviderGemini:    keys.Gemini,
		llm.ProviderAnthropic: keys.Anthropic,
		llm.ProviderOpenAI:    keys.OpenAI,
	}

	if p := llm.Provider(cfg.DefaultLLM); keyFor[p] != "" {
		return llm.NewClient(ctx, p, keys)
	}
	for _, p := range []llm.Provider{llm.ProviderGemini, llm.ProviderAnthropic, llm.ProviderOpenAI} {
		if keyFor[p] != "" {
			return llm.NewClient(ctx, p, keys)
		}
	}
	return nil, nil
}

// NewMailer returns the SMTP sender when SMTP is configured and a logging
// sender otherwise.
func NewMailer(cfg *config.Config, log *logger.Logger) mail.Sender {
	if !cfg.SMTPEnabled() {
		return mail.NewLogSender(log)
	}
	return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, log)
}

// Connect starts the NATS change bridge and the AMQP activity producer when
// they are configured. A relay that cannot connect is logged and skipped.
func (a *App) Connect(ctx context.Context) {
	if a.Config.NATSURL != "" {
		client, err := natsclient.Connect(ctx, natsclient.ConfigFrom(a.Config), a.logger)
		if err != nil {
			a.logger.Warn("NATS unavailable, change bridge disabled", zap.Error(err))
		} else {
			bridge := natsclient.NewBridge(client, a.Bus, a.logger)
			if err := bridge.Start(ctx); err != nil {
				a.logger.Warn("failed to start change bridge", zap.Error(err))
				client.Close()
			} else {
				a.NATS, a.Bridge = client, bridge
			}
		}
	}

	if a.Config.AMQPURL != "" {
		producer, err := queue.NewProducer(a.Config.AMQPURL, a.Config.AMQPExchange, a.logger)
		if err != nil {
			a.logger.Warn("RabbitMQ unavailable, activity feed disabled", zap.Error(err))
		} else {
			producer.Attach(a.Bus)
			a.Producer = producer
		}
	}
}

// Close stops the relays and closes the store.
func (a *App) Close() error {
	if a.Bridge != nil {
		a.Bridge.Stop()
	}
	if a.NATS != nil {
		a.NATS.Close()
	}
	var errs []error
	if a.Producer != nil {
		errs = append(errs, a.Producer.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
