package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/kgbridge-backend/internal/platform/envutil"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
)

// Config carries everything the pipeline needs to issue its two generation
// calls. ModelKey uses the "provider:model" form, e.g. "openai:gpt-5.2".
type Config struct {
	ModelKey        string `yaml:"model_key"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`

	ChunkSystem   string `yaml:"chunk_system"`
	ExtractSystem string `yaml:"extract_system"`

	MaxChunkChars    int `yaml:"max_chunk_chars"`
	MaxEntities      int `yaml:"max_entities"`
	MaxRelationships int `yaml:"max_relationships"`
}

// Load layers: built-in defaults, then the optional YAML file at
// KG_PROMPTS_FILE, then env overrides. Validation happens per attempt in the
// pipeline, not here, so a misconfigured deployment still boots and audits.
func Load(log *logger.Logger) Config {
	cfg := Config{
		ModelKey:         "openai:gpt-5.2",
		MaxOutputTokens:  4096,
		ChunkSystem:      defaultChunkSystem,
		ExtractSystem:    defaultExtractSystem,
		MaxChunkChars:    1200,
		MaxEntities:      50,
		MaxRelationships: 100,
	}

	if path := strings.TrimSpace(os.Getenv("KG_PROMPTS_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if log != nil {
				log.Warn("prompts file unreadable, using defaults", "path", path, "error", err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			if log != nil {
				log.Warn("prompts file invalid YAML, using defaults", "path", path, "error", err)
			}
		}
	}

	cfg.ModelKey = envutil.Str("KG_MODEL_KEY", cfg.ModelKey)
	cfg.MaxOutputTokens = envutil.Int("KG_MAX_OUTPUT_TOKENS", cfg.MaxOutputTokens)
	cfg.ChunkSystem = envutil.Str("KG_CHUNK_SYSTEM_PROMPT", cfg.ChunkSystem)
	cfg.ExtractSystem = envutil.Str("KG_EXTRACT_SYSTEM_PROMPT", cfg.ExtractSystem)
	cfg.MaxChunkChars = envutil.Int("KG_MAX_CHUNK_CHARS", cfg.MaxChunkChars)
	cfg.MaxEntities = envutil.Int("KG_MAX_ENTITIES", cfg.MaxEntities)
	cfg.MaxRelationships = envutil.Int("KG_MAX_RELATIONSHIPS", cfg.MaxRelationships)

	return cfg
}

// ParseModelKey splits "provider:model". A bare model name is rejected so a
// misconfigured key is caught before any call is made.
func ParseModelKey(key string) (provider string, model string, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", fmt.Errorf("model key empty")
	}
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("model key %q not in provider:model form", key)
	}
	return strings.ToLower(strings.TrimSpace(key[:idx])), strings.TrimSpace(key[idx+1:]), nil
}

const defaultChunkSystem = `You split raw conversation text into small, self-contained segments for knowledge extraction.
Return JSON only, matching the provided schema exactly.
Rules:
- Each chunk is one coherent statement or topic, at most a few sentences.
- Preserve the original wording; never paraphrase or summarize.
- start and end are character offsets into the original text; use 0 for both if unsure.
- Give each chunk a short id like "c1", "c2", ... in order.`

const defaultExtractSystem = `You extract entities and relationships from pre-chunked conversation text.
Return JSON only, matching the provided schema exactly.
Rules:
- Only extract facts stated in the chunks; never invent.
- Every entity and relationship must cite the chunk ids that support it in evidence_chunk_ids.
- Relationship from/to must reference an extracted entity by its id or exact name.
- confidence is in [0,1].`
