package adapters

import (
	"context"

	"github.com/exodium/gptgate/internal/adapters/llm"
)

// LLM defines the interface for language model operations
type LLM interface {
	// WithModel switches the model used by subsequent completions
	WithModel(modelName string) LLM
	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error)
}
