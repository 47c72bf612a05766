// Package service orchestrates chat turns across detection, classification,
// prompting and generation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/intent"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/llm"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/internal/prompt"
	"github.com/capitalize-ai/travel-concierge/internal/session"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
	"github.com/capitalize-ai/travel-concierge/pkg/metrics"
	"github.com/capitalize-ai/travel-concierge/pkg/tracing"
)

// ErrGeneration wraps any failure of the reply generation call.
var ErrGeneration = errors.New("reply generation failed")

// DefaultReplyTemperature lets replies vary; classification always uses 0.
const DefaultReplyTemperature = 0.6

// TranscriptPublisher receives every stored message.
type TranscriptPublisher interface {
	PublishTranscript(ctx context.Context, event *model.TranscriptEvent) error
}

// Options configures a ChatService.
type Options struct {
	Model       string
	Temperature float64
	// Timeout bounds one generation call; zero means no extra bound.
	Timeout   time.Duration
	Publisher TranscriptPublisher
}

// TurnResult describes a completed turn.
type TurnResult struct {
	SessionID string
	User      model.Message
	Reply     model.Message
	Language  language.Label
	Intent    intent.Record
}

// ChatService handles user turns for sessions in a Store.
type ChatService struct {
	store      *session.Store
	detector   *language.Detector
	classifier *intent.Classifier
	llmClient  llm.Client
	opts       Options
	logger     *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(
	store *session.Store,
	detector *language.Detector,
	classifier *intent.Classifier,
	llmClient llm.Client,
	opts Options,
	log *logger.Logger,
) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		store:      store,
		detector:   detector,
		classifier: classifier,
		llmClient:  llmClient,
		opts:       opts,
		logger:     log,
	}
}

// Store returns the session store the service mutates.
func (s *ChatService) Store() *session.Store {
	return s.store
}

// HandleTurn runs one turn on sessionID. explicit is the caller's language
// selection; empty means detect. The user message is stored before the
// generation call and the reply only after it succeeds, so a failed turn
// leaves exactly one new message.
func (s *ChatService) HandleTurn(ctx context.Context, sessionID, message string, explicit language.Label) (*TurnResult, error) {
	return s.handle(ctx, sessionID, message, explicit, nil)
}

// HandleTurnStream is HandleTurn with the reply delivered token by token.
// The reply is stored once the stream has completed.
func (s *ChatService) HandleTurnStream(ctx context.Context, sessionID, message string, explicit language.Label, onToken llm.StreamCallback) (*TurnResult, error) {
	if onToken == nil {
		return nil, errors.New("token callback is required")
	}
	return s.handle(ctx, sessionID, message, explicit, onToken)
}

func (s *ChatService) handle(ctx context.Context, sessionID, message string, explicit language.Label, onToken llm.StreamCallback) (*TurnResult, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer().Start(ctx, "chat.HandleTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	unlock := sess.LockTurn()
	defer unlock()

	log := s.logger.With(zap.String("session_id", sessionID))

	lang := explicit
	if lang == "" {
		lang = s.detector.Detect(message)
	}

	outcome := s.classifier.Classify(ctx, message)
	record := outcome.Record
	systemPrompt := prompt.Compose(lang, record)

	span.SetAttributes(
		attribute.String("chat.language", string(lang)),
		attribute.String("chat.intent", string(record.Intent)),
	)

	history := sess.Messages()
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: message})

	userMsg := sess.Append(model.RoleUser, message)
	s.publish(ctx, log, sessionID, userMsg, lang, record.Intent)

	resp, err := s.generate(ctx, messages, onToken)
	if err != nil {
		metrics.RecordTurn(string(lang), string(record.Intent), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		log.Error("reply generation failed",
			zap.String("language", string(lang)),
			zap.String("intent", string(record.Intent)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	reply := sess.Append(model.RoleAssistant, resp.Content)
	s.publish(ctx, log, sessionID, reply, lang, record.Intent)

	metrics.RecordTurn(string(lang), string(record.Intent), "success")
	metrics.RecordTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	log.Info("turn completed",
		zap.String("language", string(lang)),
		zap.String("intent", string(record.Intent)),
		zap.Bool("classification_fallback", outcome.Fallback),
		zap.Int64("latency_ms", resp.LatencyMs),
	)

	return &TurnResult{
		SessionID: sessionID,
		User:      userMsg,
		Reply:     reply,
		Language:  lang,
		Intent:    record,
	}, nil
}

func (s *ChatService) generate(ctx context.Context, messages []llm.ChatMessage, onToken llm.StreamCallback) (*llm.CompletionResponse, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	ctx, span := tracing.Tracer().Start(ctx, "chat.generate")
	defer span.End()

	req := &llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    messages,
		Temperature: s.temperature(),
	}

	start := time.Now()
	var (
		resp *llm.CompletionResponse
		err  error
	)
	if onToken != nil {
		resp, err = s.llmClient.CompleteStream(ctx, req, onToken)
	} else {
		resp, err = s.llmClient.Complete(ctx, req)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordLLMCall("reply", status, time.Since(start).Seconds())

	return resp, err
}

func (s *ChatService) temperature() float64 {
	if s.opts.Temperature > 0 {
		return s.opts.Temperature
	}
	return DefaultReplyTemperature
}

func (s *ChatService) publish(ctx context.Context, log *logger.Logger, sessionID string, msg model.Message, lang language.Label, kind intent.Kind) {
	if s.opts.Publisher == nil {
		return
	}

	err := s.opts.Publisher.PublishTranscript(ctx, &model.TranscriptEvent{
		SessionID: sessionID,
		Message:   msg,
		Language:  string(lang),
		Intent:    string(kind),
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Warn("failed to publish transcript event", zap.String("message_id", msg.ID), zap.Error(err))
	}
}
