// ABOUTME: Responders that turn an authenticated user's query into the agent's reply
// ABOUTME: EchoResponder acknowledges the query; ClaudeResponder asks Anthropic with the user's history

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/2389/secure-agent/internal/store"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("agent returned no text")

// Request is one query from a verified user.
type Request struct {
	Username string
	Query    string
	// History holds the user's earlier exchanges, oldest first.
	History []*store.Exchange
}

// Responder produces the reply for a query.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// EchoResponder acknowledges queries without calling a model.
type EchoResponder struct{}

// Respond returns the acknowledgement text.
func (EchoResponder) Respond(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf("Welcome %s, we received your query: %s", req.Username, req.Query), nil
}

// ClaudeConfig configures a ClaudeResponder.
type ClaudeConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int64
	SystemPrompt string
}

// ClaudeResponder answers queries with the Anthropic Messages API.
type ClaudeResponder struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// NewClaudeResponder creates a responder. Extra request options are passed
// to the SDK client, e.g. option.WithBaseURL in tests.
func NewClaudeResponder(cfg ClaudeConfig, opts ...option.RequestOption) *ClaudeResponder {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &ClaudeResponder{
		client:    anthropic.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		system:    cfg.SystemPrompt,
	}
}

// Respond sends the user's history and query and concatenates the text blocks of the reply.
func (r *ClaudeResponder) Respond(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages:  buildMessages(req),
	}
	if r.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: r.system}}
	}

	msg, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("calling anthropic: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}

// buildMessages alternates user and assistant turns from history, then the new query.
func buildMessages(req Request) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, 2*len(req.History)+1)
	for _, e := range req.History {
		if e.Query == "" || e.Response == "" {
			continue
		}
		msgs = append(msgs,
			anthropic.NewUserMessage(anthropic.NewTextBlock(e.Query)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Response)),
		)
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Query)))
}
