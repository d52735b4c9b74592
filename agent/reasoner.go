// Package agent forwards coaching, critique, and planning requests to a
// hosted text-generation model. The model is an external collaborator behind
// the Reasoner interface: prompt plus context in, free text out, bounded by
// a timeout. Failures surface as ErrUnavailable rather than leaking
// provider-specific errors into the transport.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable means the generation backend could not produce a response.
// The transport maps it to a service-unavailable reply.
var ErrUnavailable = errors.New("generation unavailable")

// SystemPrompt frames every request. The coach teaches paper trading; it
// never gives financial advice.
const SystemPrompt = "You are an AI trading coach for a paper-trading practice app. " +
	"Teach safely, explain indicators (RSI, EMA) when relevant, and critique trades " +
	"with actionable, risk-aware feedback. Never give financial advice; only " +
	"educational guidance for simulated trading."

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Reasoner generates text from a message list.
type Reasoner interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// flatten renders the system prompt and messages as a single prompt string,
// the lowest common denominator across backends.
func flatten(messages []Message) string {
	parts := []string{SystemPrompt}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		parts = append(parts, strings.ToUpper(role[:1])+role[1:]+": "+m.Content)
	}
	parts = append(parts, "Assistant:")
	return strings.Join(parts, "\n\n")
}

// Timeout wraps a Reasoner with a per-call deadline.
type Timeout struct {
	Inner Reasoner
	D     time.Duration
}

func (t Timeout) Generate(ctx context.Context, messages []Message) (string, error) {
	d := t.D
	if d == 0 {
		d = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return t.Inner.Generate(ctx, messages)
}
