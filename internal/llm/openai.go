package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spherical/invoice-extractor/internal/domain"
)

// openAIInvoker is the fallback path: the same model reached through its
// OpenAI-compatible chat completions endpoint.
type openAIInvoker struct {
	client *openai.Client
	model  string
}

func newOpenAIInvoker(apiKey, baseURL, model string) *openAIInvoker {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &openAIInvoker{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (o *openAIInvoker) name() string { return "fallback" }

func (o *openAIInvoker) invoke(ctx context.Context, prompt string, images []domain.EncodedImage) (Response, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(prompt, images))
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	return openAIResponse(resp)
}

func (o *openAIInvoker) close() error { return nil }

// buildRequest puts the prompt and every page, as data URIs, into one user message.
func (o *openAIInvoker) buildRequest(prompt string, images []domain.EncodedImage) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + img.MIMEType + ";base64," + img.Base64,
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}
}

// toolArguments exposes tool or function call arguments through JSONAccessor.
type toolArguments string

func (a toolArguments) JSON() ([]byte, error) {
	if strings.TrimSpace(string(a)) == "" {
		return nil, errEmptyResponse
	}
	return []byte(a), nil
}

func openAIResponse(resp openai.ChatCompletionResponse) (Response, error) {
	if len(resp.Choices) == 0 {
		return Response{}, errEmptyResponse
	}

	msg := resp.Choices[0].Message
	switch {
	case strings.TrimSpace(msg.Content) != "":
		return RawText(msg.Content), nil
	case len(msg.ToolCalls) > 0:
		return Accessor(toolArguments(msg.ToolCalls[0].Function.Arguments)), nil
	case msg.FunctionCall != nil:
		return Accessor(toolArguments(msg.FunctionCall.Arguments)), nil
	default:
		return Response{}, errEmptyResponse
	}
}
