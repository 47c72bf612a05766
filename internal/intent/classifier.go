package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/llm"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
	"github.com/capitalize-ai/travel-concierge/pkg/metrics"
	"github.com/capitalize-ai/travel-concierge/pkg/tracing"
)

const classifyPrompt = `Analyze the user message and return ONLY valid JSON.

Intent must be ONE of:
[booking, attraction, weather, translation, general]

Entities (include only if present):
- location
- date
- time
- people
- place_type (hotel, restaurant, cafe, attraction)

Respond with an object of the form:
{"intent": "<intent>", "entities": {"<entity>": "<value>"}}

User message:
%q`

// Classifier extracts an intent Record through the LLM.
type Classifier struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewClassifier creates a classifier using model on client.
func NewClassifier(client llm.Client, model string, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Classifier{client: client, model: model, logger: log}
}

// Classify never returns an error: any failure yields DefaultRecord with
// Fallback set.
func (c *Classifier) Classify(ctx context.Context, message string) Outcome {
	ctx, span := tracing.Tracer().Start(ctx, "intent.Classify")
	defer span.End()

	start := time.Now()
	resp, err := c.client.Complete(ctx, &llm.CompletionRequest{
		Model: c.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: fmt.Sprintf(classifyPrompt, message)},
		},
		Temperature: 0,
	})
	if err != nil {
		metrics.RecordLLMCall("classify", "error", time.Since(start).Seconds())
		c.logger.Warn("intent classification failed, using general", zap.Error(err))
		return c.fallback(ReasonGenerationFailed)
	}
	metrics.RecordLLMCall("classify", "success", time.Since(start).Seconds())
	metrics.RecordTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	out := Parse(resp.Content)
	switch {
	case out.Fallback:
		metrics.RecordClassificationFallback(out.Reason)
		c.logger.Debug("unparseable classification, using general",
			zap.String("reason", out.Reason),
			zap.String("content", resp.Content),
		)
	case out.Raw != "":
		metrics.RecordClassificationFallback(ReasonUnknownIntent)
		c.logger.Warn("unknown intent mapped to general", zap.String("intent", out.Raw))
	}

	return out
}

func (c *Classifier) fallback(reason string) Outcome {
	metrics.RecordClassificationFallback(reason)
	return Outcome{Record: DefaultRecord(), Fallback: true, Reason: reason}
}

type wireRecord struct {
	Intent   *string                    `json:"intent"`
	Entities map[string]json.RawMessage `json:"entities"`
}

// Parse decodes a classification reply. It accepts bare JSON or JSON inside
// a Markdown code fence. An intent outside the known kinds becomes General
// with Raw set; it is not a fallback because the reply was well formed.
func Parse(content string) Outcome {
	var w wireRecord
	if err := json.Unmarshal([]byte(stripFence(content)), &w); err != nil {
		return Outcome{Record: DefaultRecord(), Fallback: true, Reason: ReasonMalformedJSON}
	}
	if w.Intent == nil {
		return Outcome{Record: DefaultRecord(), Fallback: true, Reason: ReasonMissingIntent}
	}

	out := Outcome{Record: DefaultRecord()}

	kind := Kind(strings.ToLower(strings.TrimSpace(*w.Intent)))
	if kind.Valid() {
		out.Record.Intent = kind
	} else {
		out.Raw = *w.Intent
	}

	for _, name := range Entities {
		raw, ok := w.Entities[string(name)]
		if !ok {
			continue
		}
		if value, ok := entityValue(raw); ok {
			out.Record.Entities[name] = value
		}
	}

	return out
}

// entityValue renders strings and numbers; null, empty and structured values are dropped.
func entityValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return n.String(), true
	}

	return "", false
}

func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
