package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseModelKey(t *testing.T) {
	cases := []struct {
		in       string
		provider string
		model    string
		wantErr  bool
	}{
		{"openai:gpt-5.2", "openai", "gpt-5.2", false},
		{"OpenAI:gpt-5.2", "openai", "gpt-5.2", false},
		{" openai : gpt-5.2 ", "openai", "gpt-5.2", false},
		{"gpt-5.2", "", "", true},
		{":gpt-5.2", "", "", true},
		{"openai:", "", "", true},
		{"", "", "", true},
	}
	for _, c := range cases {
		provider, model, err := ParseModelKey(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseModelKey(%q) expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseModelKey(%q) unexpected error: %v", c.in, err)
		}
		if provider != c.provider || model != c.model {
			t.Fatalf("ParseModelKey(%q) = %q/%q, want %q/%q", c.in, provider, model, c.provider, c.model)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(nil)
	if cfg.ModelKey != "openai:gpt-5.2" {
		t.Fatalf("unexpected default model key %q", cfg.ModelKey)
	}
	if cfg.MaxOutputTokens != 4096 {
		t.Fatalf("unexpected default max output tokens %d", cfg.MaxOutputTokens)
	}
	if cfg.ChunkSystem == "" || cfg.ExtractSystem == "" {
		t.Fatalf("default prompts must be non-empty")
	}
	if cfg.MaxChunkChars != 1200 || cfg.MaxEntities != 50 || cfg.MaxRelationships != 100 {
		t.Fatalf("unexpected default limits: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KG_MODEL_KEY", "openai:gpt-5.2-mini")
	t.Setenv("KG_MAX_OUTPUT_TOKENS", "2048")
	t.Setenv("KG_CHUNK_SYSTEM_PROMPT", "custom chunker")

	cfg := Load(nil)
	if cfg.ModelKey != "openai:gpt-5.2-mini" {
		t.Fatalf("env model key not applied: %q", cfg.ModelKey)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Fatalf("env max tokens not applied: %d", cfg.MaxOutputTokens)
	}
	if cfg.ChunkSystem != "custom chunker" {
		t.Fatalf("env chunk prompt not applied")
	}
	if cfg.ExtractSystem == "" {
		t.Fatalf("untouched fields keep defaults")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	raw := "model_key: openai:gpt-5.2-pro\nmax_entities: 10\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	t.Setenv("KG_PROMPTS_FILE", path)

	cfg := Load(nil)
	if cfg.ModelKey != "openai:gpt-5.2-pro" {
		t.Fatalf("yaml model key not applied: %q", cfg.ModelKey)
	}
	if cfg.MaxEntities != 10 {
		t.Fatalf("yaml max entities not applied: %d", cfg.MaxEntities)
	}
	if cfg.MaxRelationships != 100 {
		t.Fatalf("fields absent from yaml keep defaults: %d", cfg.MaxRelationships)
	}
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("model_key: openai:from-yaml\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	t.Setenv("KG_PROMPTS_FILE", path)
	t.Setenv("KG_MODEL_KEY", "openai:from-env")

	if cfg := Load(nil); cfg.ModelKey != "openai:from-env" {
		t.Fatalf("env should win over yaml, got %q", cfg.ModelKey)
	}
}

func TestBuildPrompts(t *testing.T) {
	cfg := Load(nil)
	p := BuildChunking(cfg, "hello world")
	if p.System != cfg.ChunkSystem || p.SchemaName != SchemaNameChunking {
		t.Fatalf("unexpected chunking prompt: %+v", p)
	}
	if p.Schema == nil {
		t.Fatalf("chunking schema missing")
	}

	x := BuildExtraction(cfg, "[c1] hello\n")
	if x.System != cfg.ExtractSystem || x.SchemaName != SchemaNameExtraction {
		t.Fatalf("unexpected extraction prompt: %+v", x)
	}
}
