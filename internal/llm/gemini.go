package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/spherical/invoice-extractor/internal/domain"
	"google.golang.org/api/option"
)

const mimeJSON = "application/json"

// geminiInvoker is the primary path: the Gemini SDK with a JSON response type.
type geminiInvoker struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	initErr error
}

func newGeminiInvoker(ctx context.Context, apiKey, modelName string) *geminiInvoker {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return &geminiInvoker{initErr: fmt.Errorf("failed to create gemini client: %w", err)}
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = mimeJSON
	model.SetTemperature(0)

	return &geminiInvoker{client: client, model: model}
}

func (g *geminiInvoker) name() string { return "primary" }

func (g *geminiInvoker) invoke(ctx context.Context, prompt string, images []domain.EncodedImage) (Response, error) {
	if g.initErr != nil {
		return Response{}, g.initErr
	}

	parts := make([]genai.Part, 0, len(images)+1)
	parts = append(parts, genai.Text(prompt))
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return geminiResponse(resp)
}

func (g *geminiInvoker) close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// geminiResponse picks the first usable variant out of the first candidate:
// a function call's arguments are structured, text parts are raw JSON text.
func geminiResponse(resp *genai.GenerateContentResponse) (Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, errEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			sb.WriteString(string(p))
		case genai.FunctionCall:
			return Structured(p.Args), nil
		case *genai.FunctionCall:
			return Structured(p.Args), nil
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return Response{}, errEmptyResponse
	}
	return RawText(sb.String()), nil
}
