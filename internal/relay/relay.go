package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"

	"github.com/exodium/gptgate/internal/adapters"
	"github.com/exodium/gptgate/internal/adapters/llm"
	"github.com/exodium/gptgate/internal/db"
	"github.com/exodium/gptgate/internal/observability"
)

const (
	DefaultTimeout = 2 * time.Minute

	// HistoryLimit bounds how many past exchanges are replayed as context.
	HistoryLimit = 5

	fallbackBusy    = "⚠️ AI service is busy. Please try again in a minute."
	fallbackTimeout = "⚠️ Response timeout. Please try again."
	fallbackGeneric = "⚠️ Error connecting to AI. Please try again."
)

const defaultSystemPrompt = "You are GPTGate, a helpful AI assistant. " +
	"Answer clearly and concisely, use formatting suited for Telegram messages, " +
	"and include complete code blocks when asked for code."

// Relay forwards a prompt plus bounded chat history to the completion API.
// Every failure path yields user-facing text; errors never reach the caller.
type Relay struct {
	llm          adapters.LLM
	systemPrompt string
	timeout      time.Duration
	logger       *log.Entry
}

func New(llmAPI adapters.LLM, systemPrompt string, timeout time.Duration) *Relay {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{
		llm:          llmAPI,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		logger:       log.WithField("context", "relay"),
	}
}

// LoadSystemPrompt reads an operator-provided system-prompt.txt from the work
// directory, falling back to the built-in default.
func LoadSystemPrompt(workDir string) string {
	data, err := os.ReadFile(filepath.Join(workDir, "system-prompt.txt"))
	if err != nil || len(data) == 0 {
		return defaultSystemPrompt
	}
	return string(data)
}

// Complete builds the ordered message list (system instruction, history pairs
// in chronological order, then the new prompt) and returns the model's text or
// a fallback string.
func (r *Relay) Complete(ctx context.Context, model string, prompt string, history []*db.Message) string {
	messages := make([]llm.ChatCompletionMessage, 0, len(history)*2+2)
	messages = append(messages, llm.ChatCompletionMessage{Role: llm.RoleSystem, Content: r.systemPrompt})
	for _, entry := range history {
		messages = append(messages,
			llm.ChatCompletionMessage{Role: llm.RoleUser, Content: entry.Prompt},
			llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: entry.Response},
		)
	}
	messages = append(messages, llm.ChatCompletionMessage{Role: llm.RoleUser, Content: prompt})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.WithModel(model).ChatCompletion(ctx, messages)
	if err != nil {
		observability.RecordRelayRequest("fallback")
		return r.fallback(err)
	}
	if len(resp.Choices) == 0 {
		observability.RecordRelayRequest("fallback")
		return fallbackGeneric
	}
	observability.RecordRelayRequest("ok")
	return resp.Choices[0].Message.Content
}

func (r *Relay) fallback(err error) string {
	r.logger.WithField("error", err.Error()).Error("chat completion failed")

	var apiErr *openai.APIError
	var googleErr *googleapi.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fallbackTimeout
	case errors.As(err, &apiErr):
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fallbackBusy
		}
		return fmt.Sprintf("⚠️ AI service error (%d). Please try again.", apiErr.HTTPStatusCode)
	case errors.As(err, &googleErr):
		if googleErr.Code == http.StatusTooManyRequests {
			return fallbackBusy
		}
		return fmt.Sprintf("⚠️ AI service error (%d). Please try again.", googleErr.Code)
	}
	return fallbackGeneric
}
