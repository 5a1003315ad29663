package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	calls     int
	responses []fakeModelResponse
	lastCfg   *genai.GenerateContentConfig
	lastText  string
}

type fakeModelResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastCfg = cfg
	for _, content := range contents {
		for _, part := range content.Parts {
			f.lastText = part.Text
		}
	}
	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected call")
	}
	res := f.responses[f.calls]
	f.calls++
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testGenerator(models modelCaller, maxRetries int) *Generator {
	return &Generator{
		models:     models,
		modelName:  "gemini-test",
		maxRetries: maxRetries,
		baseDelay:  time.Millisecond,
		logger:     zap.NewNop(),
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), "  ", "", 0, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestGenerateJSONReturnsFirstSuccess(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{
		{resp: textResponse(`{"ok": true}`)},
	}}
	g := testGenerator(models, 2)

	output, err := g.GenerateJSON(context.Background(), "system", "user payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != `{"ok": true}` {
		t.Fatalf("unexpected output: %q", output)
	}
	if models.lastText != "user payload" {
		t.Fatalf("unexpected prompt: %q", models.lastText)
	}
	if models.lastCfg == nil || models.lastCfg.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json response mime type, got %+v", models.lastCfg)
	}
	if models.lastCfg.SystemInstruction == nil || models.lastCfg.SystemInstruction.Parts[0].Text != "system" {
		t.Fatal("expected system instruction to be set")
	}
}

func TestGenerateJSONRetriesOnError(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{
		{err: errors.New("transient")},
		{resp: textResponse("retry ok")},
	}}
	g := testGenerator(models, 2)

	output, err := g.GenerateJSON(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if models.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls)
	}
}

func TestGenerateJSONRetriesOnEmptyResponse(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{
		{resp: textResponse("  ")},
		{resp: textResponse("filled")},
	}}
	g := testGenerator(models, 1)

	output, err := g.GenerateJSON(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "filled" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestGenerateJSONStopsAfterRetriesExhausted(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{
		{err: errors.New("transient")},
		{err: errors.New("transient")},
	}}
	g := testGenerator(models, 1)

	_, err := g.GenerateJSON(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
	if models.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls)
	}
}

func TestGenerateJSONDoesNotRetryOnCanceledContext(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{
		{err: context.Canceled},
	}}
	g := testGenerator(models, 3)

	_, err := g.GenerateJSON(context.Background(), "sys", "msg")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if models.calls != 1 {
		t.Fatalf("expected single call, got %d", models.calls)
	}
}

func TestGenerateJSONRejectsEmptyPrompt(t *testing.T) {
	g := testGenerator(&fakeModels{}, 0)
	if _, err := g.GenerateJSON(context.Background(), "sys", "  "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
