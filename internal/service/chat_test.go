package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/travel-concierge/internal/intent"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/llm"
	"github.com/capitalize-ai/travel-concierge/internal/llm/llmtest"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/internal/session"
)

const parisClassification = `{"intent":"attraction","entities":{"location":"Paris","date":"next week"}}`

type fixedGuesser string

func (g fixedGuesser) Guess(string) (string, error) { return string(g), nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.TranscriptEvent
	err    error
}

func (p *recordingPublisher) PublishTranscript(_ context.Context, e *model.TranscriptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func newService(t *testing.T, client llm.Client, opts Options) *ChatService {
	t.Helper()
	if opts.Model == "" {
		opts.Model = "llama-3.3-70b-versatile"
	}
	return NewChatService(
		session.NewStore(),
		language.NewDetector(fixedGuesser("en"), nil),
		intent.NewClassifier(client, opts.Model, nil),
		client,
		opts,
		nil,
	)
}

func replyRequests(client *llmtest.MockClient) []llm.CompletionRequest {
	var out []llm.CompletionRequest
	for _, c := range client.Calls() {
		if c.Temperature != 0 {
			out = append(out, c)
		}
	}
	return out
}

func TestHandleTurnAttractionScenario(t *testing.T) {
	client := llmtest.NewScripted(parisClassification, "Here are some ideas...", nil)
	svc := newService(t, client, Options{})
	sessionID := svc.Store().ActiveID()

	res, err := svc.HandleTurn(context.Background(), sessionID, "I want to visit Paris next week", "")
	require.NoError(t, err)

	assert.Equal(t, language.English, res.Language)
	assert.Equal(t, intent.Attraction, res.Intent.Intent)
	assert.Equal(t, "Here are some ideas...", res.Reply.Content)
	assert.Equal(t, model.RoleAssistant, res.Reply.Role)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Zero(t, calls[0].Temperature, "classification is deterministic")

	reply := calls[1]
	assert.InDelta(t, DefaultReplyTemperature, reply.Temperature, 1e-9)
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, llm.RoleSystem, reply.Messages[0].Role)
	assert.Contains(t, reply.Messages[0].Content, "tourist attractions")
	assert.Contains(t, reply.Messages[0].Content, "Respond ONLY in English.")
	assert.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: "I want to visit Paris next week"}, reply.Messages[1])

	sess, err := svc.Store().Get(sessionID)
	require.NoError(t, err)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestHandleTurnGenerationFailure(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	client := llmtest.NewScripted(parisClassification, "", netErr)
	svc := newService(t, client, Options{})
	sess := svc.Store().Active()

	sess.Append(model.RoleUser, "hello")
	sess.Append(model.RoleAssistant, "Hi! Where are you headed?")
	before := sess.Len()

	res, err := svc.HandleTurn(context.Background(), sess.ID(), "I want to visit Paris next week", "")
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, netErr)

	msgs := sess.Messages()
	require.Len(t, msgs, before+1, "only the user message lands")
	assert.Equal(t, model.RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "Hi! Where are you headed?", msgs[1].Content, "history intact")
}

func TestHandleTurnExplicitLanguage(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general","entities":{}}`, "Bonjour", nil)
	svc := newService(t, client, Options{})

	res, err := svc.HandleTurn(context.Background(), svc.Store().ActiveID(), "こんにちは", language.French)
	require.NoError(t, err)
	assert.Equal(t, language.French, res.Language)

	reqs := replyRequests(client)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Respond ONLY in French.")
}

func TestHandleTurnDetectsJapanese(t *testing.T) {
	client := llmtest.NewScripted("not json", "こんにちは！", nil)
	svc := newService(t, client, Options{})

	res, err := svc.HandleTurn(context.Background(), svc.Store().ActiveID(), "こんにちは", "")
	require.NoError(t, err)

	assert.Equal(t, language.Japanese, res.Language)
	assert.Equal(t, intent.General, res.Intent.Intent, "malformed classification falls back")
}

func TestHandleTurnSendsHistoryWithoutStoringSystemPrompt(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"weather","entities":{"location":"Rome"}}`, "Sunny", nil)
	svc := newService(t, client, Options{Temperature: 0.9})
	id := svc.Store().ActiveID()

	_, err := svc.HandleTurn(context.Background(), id, "Weather in Rome?", "")
	require.NoError(t, err)
	_, err = svc.HandleTurn(context.Background(), id, "And tomorrow?", "")
	require.NoError(t, err)

	reqs := replyRequests(client)
	require.Len(t, reqs, 2)

	second := reqs[1]
	assert.InDelta(t, 0.9, second.Temperature, 1e-9)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, llm.RoleSystem, second.Messages[0].Role)
	assert.Equal(t, "Weather in Rome?", second.Messages[1].Content)
	assert.Equal(t, llm.RoleAssistant, second.Messages[2].Role)
	assert.Equal(t, "And tomorrow?", second.Messages[3].Content)

	sess, _ := svc.Store().Get(id)
	for _, m := range sess.Messages() {
		assert.NotEqual(t, model.RoleSystem, m.Role)
	}
	assert.Equal(t, 4, sess.Len())
}

func TestHandleTurnUnknownSession(t *testing.T) {
	svc := newService(t, llmtest.NewScripted("", "", nil), Options{})

	_, err := svc.HandleTurn(context.Background(), "missing", "hello", "")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestHandleTurnTimeout(t *testing.T) {
	client := &llmtest.MockClient{
		CompleteFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if req.Temperature == 0 {
				return &llm.CompletionResponse{Content: `{"intent":"general"}`}, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := newService(t, client, Options{Timeout: 20 * time.Millisecond})
	sess := svc.Store().Active()

	_, err := svc.HandleTurn(context.Background(), sess.ID(), "hello", "")
	require.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, sess.Len())
}

func TestHandleTurnStream(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"translation"}`, "Gracias [grah-see-ahs]", nil)
	svc := newService(t, client, Options{})
	sess := svc.Store().Active()

	var tokens []string
	res, err := svc.HandleTurnStream(context.Background(), sess.ID(), "How do I say thanks in Spanish?", "", func(token string, _ int) error {
		assert.Equal(t, 1, sess.Len(), "reply not stored while streaming")
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Gracias [grah-see-ahs]", strings.Join(tokens, ""))
	assert.Equal(t, "Gracias [grah-see-ahs]", res.Reply.Content)
	assert.Equal(t, intent.Translation, res.Intent.Intent)
	assert.Equal(t, 2, sess.Len())
}

func TestHandleTurnStreamCallbackError(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "one two three", nil)
	svc := newService(t, client, Options{})
	sess := svc.Store().Active()

	_, err := svc.HandleTurnStream(context.Background(), sess.ID(), "hi", "", func(string, int) error {
		return errors.New("client went away")
	})
	require.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 1, sess.Len())
}

func TestHandleTurnPublishesTranscript(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	client := llmtest.NewScripted(parisClassification, "Louvre, Orsay, Montmartre", nil)
	svc := newService(t, client, Options{Publisher: pub})
	id := svc.Store().ActiveID()

	_, err := svc.HandleTurn(context.Background(), id, "I want to visit Paris next week", "")
	require.NoError(t, err, "publish failures never fail a turn")

	require.Len(t, pub.events, 2)
	assert.Equal(t, model.RoleUser, pub.events[0].Message.Role)
	assert.Equal(t, model.RoleAssistant, pub.events[1].Message.Role)
	assert.Equal(t, id, pub.events[1].SessionID)
	assert.Equal(t, "attraction", pub.events[1].Intent)
	assert.Equal(t, "English", pub.events[1].Language)
}

func TestConcurrentTurnsKeepAlternation(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "ok", nil)
	svc := newService(t, client, Options{})
	sess := svc.Store().Active()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleTurn(context.Background(), sess.ID(), "hello", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs := sess.Messages()
	require.Len(t, msgs, 40)
	for i, m := range msgs {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}
