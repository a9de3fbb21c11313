// Package summary turns a finished valuation report into a short
// narrative for humans. The engine never emits free text itself; this
// package consumes the report struct and nothing else, so the numbers
// in the narrative always trace back to the engine's output.
package summary

import "context"

// Provider is the text-generation backend. Implementations must be
// safe for concurrent use.
type Provider interface {
	GenerateText(ctx context.Context, systemPrompt string, prompt string) (string, error)
}
