// Package out declares the outbound ports of the digest core. The
// pipeline never instantiates collaborators; it receives implementations
// of these interfaces and degrades gracefully when any of them fail.
package out

import "context"

// GenerateOptions configures one text-model call. A nil Temperature
// means "use the adapter default"; zero is a valid explicit value for
// deterministic output.
type GenerateOptions struct {
	Temperature *float32
	MaxTokens   int
	JSONMode    bool // request application/json output
}

// Temp is a literal-friendly Temperature value.
func Temp(v float32) *float32 { return &v }

// TextModel is the LLM collaborator: one call, prompt in, text out.
// Implementations classify errors as retryable (deadline, 5xx, rate
// limit) or terminal and handle retries internally; callers treat any
// returned error as "no LLM contribution".
type TextModel interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
