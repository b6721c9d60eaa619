package reasoning

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"codetutor/internal/domain"
)

const (
	defaultMaxTokens = 2048
	reviewMaxTokens  = 1024
)

// AnthropicClient implements Client against the Anthropic Messages API. Every
// call carries a bounded deadline so a slow upstream cannot stall request
// handling; expiry surfaces as an ordinary error and the caller falls back to
// the heuristic path.
type AnthropicClient struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// NewAnthropicClient creates a reasoning client for the given model.
func NewAnthropicClient(apiKey, model string, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		timeout: timeout,
	}
}

// complete sends a single-turn prompt and returns the concatenated text
// blocks of the response.
func (c *AnthropicClient) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("reasoning completion: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("reasoning completion: empty response")
	}

	var text string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("reasoning completion: no text content")
	}
	return text, nil
}

func (c *AnthropicClient) Introduce(ctx context.Context, lesson *domain.Lesson) (string, error) {
	return c.complete(ctx, introducePrompt(lesson), defaultMaxTokens)
}

func (c *AnthropicClient) Teach(ctx context.Context, lesson *domain.Lesson, history []domain.Message, studentMsg string) (TeachReply, error) {
	raw, err := c.complete(ctx, teachPrompt(lesson, history, studentMsg), defaultMaxTokens)
	if err != nil {
		return TeachReply{}, err
	}
	return parseTeachReply(raw), nil
}

func (c *AnthropicClient) Guide(ctx context.Context, lesson *domain.Lesson, challenge string, history []domain.Message, studentMsg string) (string, error) {
	return c.complete(ctx, guidePrompt(lesson, challenge, history, studentMsg), defaultMaxTokens)
}

func (c *AnthropicClient) Hint(ctx context.Context, challenge string, hintsGiven int) (string, error) {
	return c.complete(ctx, hintPrompt(challenge, hintsGiven), defaultMaxTokens)
}

func (c *AnthropicClient) Walkthrough(ctx context.Context, lessonTitle, challenge string) (string, error) {
	return c.complete(ctx, walkthroughPrompt(lessonTitle, challenge), defaultMaxTokens)
}

func (c *AnthropicClient) NewChallenge(ctx context.Context, lesson *domain.Lesson, previousChallenge string) (string, error) {
	return c.complete(ctx, newChallengePrompt(lesson, previousChallenge), defaultMaxTokens)
}

func (c *AnthropicClient) Evaluate(ctx context.Context, lesson *domain.Lesson, challenge, code, output string) (Evaluation, error) {
	raw, err := c.complete(ctx, evaluatePrompt(lesson, challenge, code, output), defaultMaxTokens)
	if err != nil {
		return Evaluation{}, err
	}
	return parseEvaluation(raw), nil
}

func (c *AnthropicClient) Review(ctx context.Context, lesson *domain.Lesson, code string) (domain.Review, error) {
	raw, err := c.complete(ctx, reviewPrompt(lesson, code), reviewMaxTokens)
	if err != nil {
		return domain.Review{}, err
	}
	return parseReview(raw), nil
}
