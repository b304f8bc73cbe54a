package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// callAnthropic goes through the official SDK. SDK retries are disabled so
// a 429 reaches the caller unchanged.
func (c *Client) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(c.prov.APIKey),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	}
	if c.prov.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.prov.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.prov.Model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	c.log.Debug("calling provider", slog.String("model", c.prov.Model))

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &Failure{
				Provider:   c.prov.ID,
				StatusCode: apiErr.StatusCode,
				Message:    truncate(apiErr.Error(), 500),
			}
		}
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic returned no text content")
}
