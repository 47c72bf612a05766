// Package app assembles the chat pipeline from configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/config"
	"github.com/capitalize-ai/travel-concierge/internal/intent"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/llm"
	natsclient "github.com/capitalize-ai/travel-concierge/internal/nats"
	"github.com/capitalize-ai/travel-concierge/internal/service"
	"github.com/capitalize-ai/travel-concierge/internal/session"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

// App holds the wired chat service and its optional event connection.
type App struct {
	Chat   *service.ChatService
	Events *natsclient.Client
}

// New builds the chat service for cfg. When client is nil one is created
// for the configured provider. NATS is connected only when NATSURL is set;
// a failed connection is logged and publishing stays off.
func New(cfg *config.Config, client llm.Client, log *logger.Logger) (*App, error) {
	if client == nil {
		var err error
		client, err = llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.APIKey(), cfg.BaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	}

	a := &App{}
	opts := service.Options{
		Model:       cfg.Model(),
		Temperature: cfg.ReplyTemperature,
		Timeout:     cfg.GenerationTimeout,
	}

	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(natsclient.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
			Name:  "travel-concierge",
		}, log)
		if err != nil {
			log.Warn("transcript events disabled", zap.Error(err))
		} else {
			a.Events = nc
			opts.Publisher = natsclient.NewPublisher(nc)
		}
	}

	a.Chat = service.NewChatService(
		session.NewStore(),
		language.NewDetector(nil, log),
		intent.NewClassifier(client, cfg.Model(), log),
		client,
		opts,
		log,
	)

	log.Info("chat pipeline ready",
		zap.String("provider", client.Name()),
		zap.String("model", cfg.Model()),
		zap.Bool("events", a.Events != nil),
	)

	return a, nil
}

// Close releases the event connection, if any.
func (a *App) Close() {
	if a.Events != nil {
		a.Events.Close()
	}
}
