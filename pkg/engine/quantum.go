// Package engine provides the simulated response generator. It routes on
// keywords in the latest user message and returns canned replies after a
// configurable delay, standing in for a network call to a real inference
// backend.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantumtravel/chathub/pkg/chathub"
)

// Quantum implements chathub.ResponseGenerator. Safe for concurrent use; it
// holds no mutable state.
type Quantum struct {
	latency time.Duration
}

// Option configures a Quantum engine.
type Option func(*Quantum)

// WithLatency sets the simulated per-call processing delay.
func WithLatency(d time.Duration) Option {
	return func(q *Quantum) { q.latency = d }
}

func NewQuantum(opts ...Option) *Quantum {
	q := &Quantum{latency: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ chathub.ResponseGenerator = (*Quantum)(nil)

// Generate produces a reply for the latest user turn in history. The
// simulated delay is interruptible through ctx.
func (q *Quantum) Generate(ctx context.Context, history []chathub.Turn, modelID string) (string, error) {
	model := ResolveModel(modelID)

	if q.latency > 0 {
		timer := time.NewTimer(q.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	prompt := latestUserContent(history)
	reply := routeReply(prompt, model)
	log.Debug().Str("component", "engine").Str("model", model.ID).Int("history_len", len(history)).Msg("generated reply")
	return reply, nil
}

func latestUserContent(history []chathub.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chathub.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func routeReply(prompt string, model ModelInfo) string {
	lower := strings.ToLower(prompt)
	switch {
	case containsAny(lower, "hello", "hi", "hey", "greetings"):
		return fmt.Sprintf("Hello! I'm %s, your assistant. How can I help you today? I can assist with coding, problem-solving, data analysis, and much more!", model.Name)
	case containsAny(lower, "code", "program", "function", "python", "golang", "javascript"):
		return "I can help you with coding! Tell me the language and what the code should do, and I'll sketch an implementation, explain it line by line, or help debug what you have."
	case containsAny(lower, "calculate", "math", "equation", "solve"):
		return "I can help with mathematical computations: equations, calculus, linear algebra, statistics, and more. State the problem and I'll work through it step by step."
	case containsAny(lower, "what", "how", "why", "explain"):
		return fmt.Sprintf("Great question! Based on your query %q, I can provide a detailed explanation with examples, step-by-step breakdowns, and real-world applications. Could you share more specifics so I can target the answer?", prompt)
	case containsAny(lower, "features", "capabilities", "can you", "abilities"):
		return fmt.Sprintf("Here's what %s can do: %s.", model.Name, strings.Join(model.Capabilities, "; "))
	default:
		return fmt.Sprintf("Thank you for your message! You said: %q. I can help with technical questions, problem solving, research, and creative tasks. Ask me anything specific and I'll give a detailed answer.", prompt)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
