package prompts

import "fmt"

type Prompt struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

func BuildChunking(cfg Config, text string) Prompt {
	return Prompt{
		System:     cfg.ChunkSystem,
		User:       fmt.Sprintf("Split the following conversation turn into chunks.\n\n%s", text),
		SchemaName: SchemaNameChunking,
		Schema:     ChunkingSchema(),
	}
}

func BuildExtraction(cfg Config, chunksBlock string) Prompt {
	return Prompt{
		System:     cfg.ExtractSystem,
		User:       fmt.Sprintf("Extract entities and relations from these chunks. Each line is [chunk_id] text.\n\n%s", chunksBlock),
		SchemaName: SchemaNameExtraction,
		Schema:     ExtractionSchema(),
	}
}
