package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/observability"
)

type fakeInvoker struct {
	label string
	resp  Response
	err   error
	calls int
}

func (f *fakeInvoker) name() string { return f.label }

func (f *fakeInvoker) invoke(_ context.Context, _ string, _ []domain.EncodedImage) (Response, error) {
	f.calls++
	return f.resp, f.err
}

func (f *fakeInvoker) close() error { return nil }

func newTestClient(primary, fallback invoker) *Client {
	return &Client{
		available: true,
		primary:   primary,
		fallback:  fallback,
		logger:    observability.Nop(),
	}
}

var testImages = []domain.EncodedImage{{PageNumber: 1, MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}, Base64: "/9g="}}

func TestNewClient_Unavailable(t *testing.T) {
	client := NewClient(context.Background(), config.ExtractionConfig{}, nil)
	require.NotNil(t, client)
	assert.False(t, client.Available())

	result := client.Extract(context.Background(), testImages)
	assert.Empty(t, result.Pages)
	assert.NotNil(t, result.Pages)
	assert.Equal(t, []string{IssueUnavailable}, result.Issues)
	assert.NoError(t, client.Close())
}

func TestExtract_PrimarySucceeds(t *testing.T) {
	primary := &fakeInvoker{label: "primary", resp: RawText(`{"pages":[{"page_no":"1","line_items":[{"item_name":"Widget","item_amount":10}]}],"issues":[]}`)}
	fallback := &fakeInvoker{label: "fallback"}

	result := newTestClient(primary, fallback).Extract(context.Background(), testImages)

	require.Len(t, result.Pages, 1)
	assert.Equal(t, "1", result.Pages[0].PageNo)
	require.Len(t, result.Pages[0].LineItems, 1)
	assert.Equal(t, "Widget", result.Pages[0].LineItems[0]["item_name"])
	assert.Empty(t, result.Issues)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestExtract_FallbackOnce(t *testing.T) {
	tests := []struct {
		name    string
		primary *fakeInvoker
	}{
		{
			name:    "transport error",
			primary: &fakeInvoker{label: "primary", err: errors.New("connection reset")},
		},
		{
			name:    "malformed text",
			primary: &fakeInvoker{label: "primary", resp: RawText("sorry, I cannot help")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &fakeInvoker{label: "fallback", resp: Structured(map[string]any{
				"pages": []any{map[string]any{"page_no": 2, "line_items": []any{}}},
			})}

			result := newTestClient(tt.primary, fallback).Extract(context.Background(), testImages)

			require.Len(t, result.Pages, 1)
			assert.Equal(t, "2", result.Pages[0].PageNo)
			assert.Equal(t, 1, tt.primary.calls)
			assert.Equal(t, 1, fallback.calls)
		})
	}
}

func TestExtract_BothFail(t *testing.T) {
	primary := &fakeInvoker{label: "primary", err: errors.New("quota exceeded")}
	fallback := &fakeInvoker{label: "fallback", err: errors.New("service unavailable")}

	result := newTestClient(primary, fallback).Extract(context.Background(), testImages)

	assert.Empty(t, result.Pages)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "LLM call failed: service unavailable", result.Issues[0])
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		resp       Response
		wantPages  []string
		wantItems  []int
		wantIssues int
		wantErr    bool
	}{
		{
			name:      "raw text object",
			resp:      RawText(`{"pages":[{"page_no":"1","line_items":[{"item_name":"A"}]},{"page_no":"2","line_items":[]}],"issues":[]}`),
			wantPages: []string{"1", "2"},
			wantItems: []int{1, 0},
		},
		{
			name:      "fenced text",
			resp:      RawText("```json\n{\"pages\":[{\"page_no\":\"3\",\"line_items\":[]}]}\n```"),
			wantPages: []string{"3"},
			wantItems: []int{0},
		},
		{
			name:      "prose around json",
			resp:      RawText(`Here you go: {"pages":[{"page_no":"1","line_items":[]}]} hope it helps`),
			wantPages: []string{"1"},
			wantItems: []int{0},
		},
		{
			name:      "top level list",
			resp:      RawText(`[{"page_no":1,"line_items":[{"item_name":"A"},{"item_name":"B"}]}]`),
			wantPages: []string{"1"},
			wantItems: []int{2},
		},
		{
			name:      "missing page_no defaults to 1",
			resp:      RawText(`{"pages":[{"line_items":[]}]}`),
			wantPages: []string{"1"},
			wantItems: []int{0},
		},
		{
			name:      "float page_no",
			resp:      RawText(`{"pages":[{"page_no":2.0,"line_items":[]}]}`),
			wantPages: []string{"2"},
			wantItems: []int{0},
		},
		{
			name:       "non object entries are skipped",
			resp:       RawText(`{"pages":[{"page_no":"1","line_items":["junk",{"item_name":"A"}]},"junk"],"issues":["blurry"]}`),
			wantPages:  []string{"1"},
			wantItems:  []int{1},
			wantIssues: 3,
		},
		{
			name: "structured value",
			resp: Structured(map[string]any{
				"pages": []map[string]any{{"page_no": "1", "line_items": []map[string]any{{"item_name": "A"}}}},
			}),
			wantPages: []string{"1"},
			wantItems: []int{1},
		},
		{
			name:      "accessor",
			resp:      Accessor(toolArguments(`{"pages":[{"page_no":"4","line_items":[]}]}`)),
			wantPages: []string{"4"},
			wantItems: []int{0},
		},
		{
			name:    "not json",
			resp:    RawText("no data"),
			wantErr: true,
		},
		{
			name:    "empty text",
			resp:    RawText("   "),
			wantErr: true,
		},
		{
			name:    "scalar json",
			resp:    RawText("42"),
			wantErr: true,
		},
		{
			name:    "empty accessor",
			resp:    Accessor(toolArguments("")),
			wantErr: true,
		},
		{
			name:    "nil structured",
			resp:    Structured(nil),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Pages, len(tt.wantPages))
			for i, p := range result.Pages {
				assert.Equal(t, tt.wantPages[i], p.PageNo)
				assert.Len(t, p.LineItems, tt.wantItems[i])
			}
			assert.Len(t, result.Issues, tt.wantIssues)
		})
	}
}

func TestPageNoString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "1"},
		{"2", "2"},
		{" 3 ", " 3 "},
		{json.Number("4"), "4"},
		{json.Number("5.0"), "5"},
		{json.Number("1.5"), "1.5"},
		{float64(6), "6"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pageNoString(tt.in))
	}
}

func TestGeminiResponse(t *testing.T) {
	withParts := func(parts ...genai.Part) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
		}
	}

	resp, err := geminiResponse(withParts(genai.Text(`{"pages":`), genai.Text(`[]}`)))
	require.NoError(t, err)
	assert.Equal(t, KindRawText, resp.Kind)
	assert.Equal(t, `{"pages":[]}`, resp.Text)

	resp, err = geminiResponse(withParts(genai.FunctionCall{Name: "report", Args: map[string]any{"pages": []any{}}}))
	require.NoError(t, err)
	assert.Equal(t, KindStructured, resp.Kind)

	_, err = geminiResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, errEmptyResponse)

	_, err = geminiResponse(withParts(genai.Text("  ")))
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestOpenAIResponse(t *testing.T) {
	resp, err := openAIResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"pages":[]}`}}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindRawText, resp.Kind)

	resp, err = openAIResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ToolCall{{Function: openai.FunctionCall{Name: "report", Arguments: `{"pages":[]}`}}},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindAccessor, resp.Kind)

	_, err = openAIResponse(openai.ChatCompletionResponse{})
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestOpenAIInvoker_SendsAllPagesInOneRequest(t *testing.T) {
	var got openai.ChatCompletionRequest
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"pages\":[{\"page_no\":\"1\",\"line_items\":[]}]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	inv := newOpenAIInvoker("test-key", srv.URL+"/v1/", "gemini-test")
	images := []domain.EncodedImage{
		{PageNumber: 1, MIMEType: "image/jpeg", Base64: "AAAA"},
		{PageNumber: 2, MIMEType: "image/jpeg", Base64: "BBBB"},
	}

	resp, err := inv.invoke(context.Background(), buildPrompt(), images)
	require.NoError(t, err)
	assert.Equal(t, KindRawText, resp.Kind)
	assert.Equal(t, 1, requests)

	assert.Equal(t, "gemini-test", got.Model)
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].MultiContent
	require.Len(t, parts, 3)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,AAAA"))
	assert.True(t, strings.HasPrefix(parts[2].ImageURL.URL, "data:image/jpeg;base64,BBBB"))
}

func TestOpenAIInvoker_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	inv := newOpenAIInvoker("test-key", srv.URL+"/v1", "gemini-test")
	_, err := inv.invoke(context.Background(), buildPrompt(), testImages)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt()
	for _, field := range []string{"page_no", "line_items", "item_name", "item_quantity", "item_rate", "item_amount", "issues"} {
		assert.Contains(t, prompt, field)
	}
}
