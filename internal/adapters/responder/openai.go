package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"

	openai "github.com/sashabaranov/go-openai"
)

// declineToken is what the model is told to answer when it should stay quiet
const declineToken = "SKIP"

// OpenAIOptions configures the chat completion producer
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAI produces contextual replies with a chat completion. Rules that are
// not AI-contextual are answered from their static reply without a call
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
	static Static
	log    logger.Logger
}

// NewOpenAI builds the producer. An empty API key leaves the client unset so
// every contextual request reports Failed and the caller falls back
func NewOpenAI(o OpenAIOptions) *OpenAI {
	if o.Model == "" {
		o.Model = openai.GPT4oMini
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 300
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	p := &OpenAI{opts: o, log: *logger.Named("responder")}
	if o.APIKey != "" {
		cfg := openai.DefaultConfig(o.APIKey)
		if o.BaseURL != "" {
			cfg.BaseURL = o.BaseURL
		}
		p.client = openai.NewClientWithConfig(cfg)
	}
	return p
}

// Produce implements Producer
func (p *OpenAI) Produce(ctx context.Context, req Request) Result {
	if !req.AIContextual {
		return p.static.Produce(ctx, req)
	}
	if p.client == nil {
		return Failed(perr.New(perr.ErrorCodeUnavailable, "openai producer not configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       p.opts.Model,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
	})
	lat := time.Since(start)
	if err != nil {
		p.log.Warn().Err(err).Dur("latency", lat).Str("rule", req.RuleName).Msg("openai completion failed")
		return Failed(perr.Wrap(err, perr.ErrorCodeUnavailable, "openai completion"))
	}
	p.log.Debug().
		Dur("latency", lat).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("rule", req.RuleName).
		Msg("openai completion")

	if len(resp.Choices) == 0 {
		return Failed(perr.New(perr.ErrorCodeUnknown, "openai returned no choices"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" || strings.EqualFold(strings.Trim(text, ". "), declineToken) {
		return Declined("model declined")
	}
	return Produced(text)
}

func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You reply on behalf of an Instagram business account. ")
	switch req.Class {
	case ClassComment:
		b.WriteString("You are answering a comment on one of the account's posts. ")
	default:
		b.WriteString("You are answering a direct message. ")
	}
	b.WriteString("Keep the reply short, friendly, and in the language of the message. ")
	if req.SenderHandle != "" {
		fmt.Fprintf(&b, "The sender's handle is @%s. ", req.SenderHandle)
	}
	if g := strings.TrimSpace(req.Message); g != "" {
		fmt.Fprintf(&b, "Follow this guidance from the account owner: %s ", g)
	}
	fmt.Fprintf(&b, "If the message is spam, abusive, or needs no answer, reply with exactly %s.", declineToken)
	return b.String()
}
