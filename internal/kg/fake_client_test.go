package kg

import (
	"context"

	"github.com/yungbote/kgbridge-backend/internal/kg/prompts"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
)

// fakeGenClient scripts GenerateJSON responses in call order.
type fakeGenClient struct {
	responses []map[string]any
	errs      []error
	calls     int

	lastSystem string
	lastUser   string
}

func (f *fakeGenClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, maxOutputTokens int) (map[string]any, openai.Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, openai.Meta{Provider: "openai"}, err
	}
	i := f.calls
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	meta := openai.Meta{Provider: "openai", Model: "gpt-5.2", RequestID: "req_test", FinishReason: "stop", InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, meta, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], meta, nil
	}
	return map[string]any{}, meta, nil
}

func (f *fakeGenClient) GenerateText(ctx context.Context, system, user string) (string, openai.Meta, error) {
	return "", openai.Meta{Provider: "openai"}, nil
}

func (f *fakeGenClient) Model() string { return "gpt-5.2" }

func testPromptsConfig() prompts.Config {
	return prompts.Config{
		ModelKey:         "openai:gpt-5.2",
		MaxOutputTokens:  1024,
		ChunkSystem:      "chunk system",
		ExtractSystem:    "extract system",
		MaxChunkChars:    1200,
		MaxEntities:      50,
		MaxRelationships: 100,
	}
}

func testLogger() *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	return log
}
