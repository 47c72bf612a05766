package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/travel-concierge/internal/intent"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/llm"
	"github.com/capitalize-ai/travel-concierge/internal/llm/llmtest"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/internal/service"
	"github.com/capitalize-ai/travel-concierge/internal/session"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

type englishGuesser struct{}

func (englishGuesser) Guess(string) (string, error) { return "en", nil }

type fakeEvents bool

func (f fakeEvents) IsConnected() bool { return bool(f) }

func newTestRouter(t *testing.T, client llm.Client, events ReadinessChecker) (http.Handler, *service.ChatService) {
	t.Helper()
	return newTestRouterWithOptions(t, client, events, service.Options{Model: "test-model"})
}

func newTestRouterWithOptions(t *testing.T, client llm.Client, events ReadinessChecker, opts service.Options) (http.Handler, *service.ChatService) {
	t.Helper()

	log := logger.NewNop()
	chat := service.NewChatService(
		session.NewStore(),
		language.NewDetector(englishGuesser{}, log),
		intent.NewClassifier(client, "test-model", log),
		client,
		opts,
		log,
	)

	return NewRouter(RouterConfig{Chat: chat, Events: events, Logger: log}), chat
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"attraction","entities":{"location":"Paris"}}`, "Visit the Louvre.", nil)
	h, chat := newTestRouter(t, client, nil)
	id := chat.Store().ActiveID()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/messages", `{"content":"I want to visit Paris next week"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	var resp model.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, "Visit the Louvre.", resp.Reply.Content)
	assert.Equal(t, "English", resp.Language)
	assert.Equal(t, "attraction", resp.Intent)
	assert.Equal(t, "Paris", resp.Entities["location"])
}

func TestSendMessageExplicitLanguage(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "Hola", nil)
	h, chat := newTestRouter(t, client, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+chat.Store().ActiveID()+"/messages", `{"content":"hello","language":"spanish"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Spanish", resp.Language)
}

func TestSendMessageGenerationFailure(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "", errors.New("429 rate limited"))
	h, chat := newTestRouter(t, client, nil)
	sess := chat.Store().Active()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/messages", `{"content":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not reply")
	assert.NotContains(t, rec.Body.String(), "429", "provider errors are not leaked")
	assert.Equal(t, 1, sess.Len())

	list := do(t, h, http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusOK, list.Code, "session list survives a failed turn")
}

func TestSendMessageValidation(t *testing.T) {
	h, chat := newTestRouter(t, llmtest.NewScripted("", "", nil), nil)
	id := chat.Store().ActiveID()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/api/v1/sessions/" + id + "/messages", `{`, http.StatusBadRequest},
		{"empty content", "/api/v1/sessions/" + id + "/messages", `{"content":"  "}`, http.StatusBadRequest},
		{"unknown language", "/api/v1/sessions/" + id + "/messages", `{"content":"hi","language":"Elvish"}`, http.StatusBadRequest},
		{"malformed id", "/api/v1/sessions/abc/messages", `{"content":"hi"}`, http.StatusBadRequest},
		{"unknown session", "/api/v1/sessions/19990101_000000/messages", `{"content":"hi"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "Sure.", nil)
	h, chat := newTestRouter(t, client, nil)
	first := chat.Store().ActiveID()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+first+"/messages", `{"content":"First chat about Kyoto"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Active)
	assert.NotEqual(t, first, created.ID)
	assert.Empty(t, created.Messages)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions", "")
	var list model.ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, created.ID, list.ActiveID)
	require.Len(t, list.Sessions, 1, "empty sessions are not listed")
	assert.Equal(t, "First chat about Kyoto", list.Sessions[0].Preview)

	rec = do(t, h, http.MethodPut, "/api/v1/sessions/active", `{"id":"`+first+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var active model.SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Equal(t, first, active.ID)
	assert.Len(t, active.Messages, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), first)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetActiveUnknown(t *testing.T) {
	h, chat := newTestRouter(t, llmtest.NewScripted("", "", nil), nil)
	before := chat.Store().ActiveID()

	rec := do(t, h, http.MethodPut, "/api/v1/sessions/active", `{"id":"19990101_000000"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before, chat.Store().ActiveID())

	rec = do(t, h, http.MethodPut, "/api/v1/sessions/active", `{"id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"weather"}`, "Sunny and warm", nil)
	h, chat := newTestRouter(t, client, nil)
	sess := chat.Store().Active()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/stream", `{"content":"Weather in Rome?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: token\n")
	assert.Contains(t, body, "event: message_complete\n")
	assert.Contains(t, body, `"intent":"weather"`)
	assert.Contains(t, body, "event: done\n")
	assert.Equal(t, 2, sess.Len())
}

func TestStreamGenerationFailure(t *testing.T) {
	client := llmtest.NewScripted(`{"intent":"general"}`, "", errors.New("upstream closed"))
	h, chat := newTestRouter(t, client, nil)
	sess := chat.Store().Active()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/stream", `{"content":"hi"}`)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"code":"generation_failed"`)
	assert.NotContains(t, body, "event: message_complete")
	assert.Equal(t, 1, sess.Len())
}

func slowReplyClient() *llmtest.MockClient {
	return &llmtest.MockClient{
		CompleteFunc: func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if req.Temperature == 0 {
				return &llm.CompletionResponse{Content: `{"intent":"general"}`}, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func TestStreamTimeout(t *testing.T) {
	h, chat := newTestRouterWithOptions(t, slowReplyClient(), nil, service.Options{Model: "test-model", Timeout: 20 * time.Millisecond})
	sess := chat.Store().Active()

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/stream", `{"content":"hi"}`)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"code":"generation_timeout"`)
	assert.Contains(t, body, "took too long")
	assert.Equal(t, 1, sess.Len())
}

func TestSendMessageTimeout(t *testing.T) {
	h, chat := newTestRouterWithOptions(t, slowReplyClient(), nil, service.Options{Model: "test-model", Timeout: 20 * time.Millisecond})

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+chat.Store().ActiveID()+"/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestTurnErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{"timeout", fmt.Errorf("%w: %w", service.ErrGeneration, context.DeadlineExceeded), http.StatusGatewayTimeout, "generation_timeout"},
		{"generation", fmt.Errorf("%w: %w", service.ErrGeneration, errors.New("503")), http.StatusBadGateway, "generation_failed"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg := turnErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestLanguages(t *testing.T) {
	h, _ := newTestRouter(t, llmtest.NewScripted("", "", nil), nil)

	rec := do(t, h, http.MethodGet, "/api/v1/languages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"English", "Spanish", "French", "German", "Hindi", "Japanese", "Chinese", "Arabic"}, resp["languages"])
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestRouter(t, llmtest.NewScripted("", "", nil), nil)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ready", "").Code)

	h, _ = newTestRouter(t, llmtest.NewScripted("", "", nil), fakeEvents(false))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/ready", "").Code)
}

func TestServesUI(t *testing.T) {
	h, _ := newTestRouter(t, llmtest.NewScripted("", "", nil), nil)

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Multilingual Travel Concierge")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
