package chathub

import (
	"context"
)

// ResponseGenerator is the external capability that produces a reply for a
// conversation. Implementations must be safe for concurrent calls across
// different conversations and should honor ctx cancellation; the hub bounds
// every call with a deadline regardless.
type ResponseGenerator interface {
	Generate(ctx context.Context, history []Turn, modelID string) (string, error)
}

// GeneratorFunc adapts a plain function to ResponseGenerator.
type GeneratorFunc func(ctx context.Context, history []Turn, modelID string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, history []Turn, modelID string) (string, error) {
	return f(ctx, history, modelID)
}
