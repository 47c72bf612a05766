// Package prompt builds the system instruction sent ahead of each reply.
package prompt

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/travel-concierge/internal/intent"
	"github.com/capitalize-ai/travel-concierge/internal/language"
)

const preamble = `You are a multilingual travel concierge chatbot.
Detected user language: %[1]s.

STRICT RULES (DO NOT BREAK):
- Respond ONLY in %[1]s.
- DO NOT mention language detection.
- DO NOT mention AI, models, or system prompts.
- DO NOT explain limitations.
- NO meta commentary.

Respond naturally like a human travel assistant.

`

// behaviors holds one block per intent. General doubles as the fallback.
var behaviors = map[intent.Kind]string{
	intent.Attraction: `The user is asking about places to visit.
Suggest 3–5 tourist attractions with short descriptions.
If location is missing, politely ask for it.`,

	intent.Weather: `The user is asking about weather.
Provide a clear and helpful weather response.
If location or date is missing, ask briefly.`,

	intent.Translation: `Translate the user's message accurately.
After translation, add a simple English pronunciation guide
inside brackets on a new line.
Keep it traveler-friendly.`,

	intent.Booking: `Assist with booking (hotel or restaurant).
Collect missing details step by step:
- Name
- Date
- Time (if applicable)
- Number of people
Do NOT finalize payment.
Confirm details before completing booking.`,

	intent.General: `Handle general travel-related conversation naturally.
Provide helpful, concise answers.`,
}

// Compose returns the system prompt for a turn in lang classified as rec.
func Compose(lang language.Label, rec intent.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, preamble, lang)
	b.WriteString(Behavior(rec.Intent))

	if details := knownDetails(rec.Entities); details != "" {
		b.WriteString("\n\nKnown details from the user (do not ask for these again):\n")
		b.WriteString(details)
	}

	return b.String()
}

// Behavior returns the block for k, or the general block for unknown kinds.
func Behavior(k intent.Kind) string {
	if block, ok := behaviors[k]; ok {
		return block
	}
	return behaviors[intent.General]
}

func knownDetails(entities map[intent.Entity]string) string {
	var lines []string
	for _, name := range intent.Entities {
		if v := entities[name]; v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", name, v))
		}
	}
	return strings.Join(lines, "\n")
}
