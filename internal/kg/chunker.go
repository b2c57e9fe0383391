package kg

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/kgbridge-backend/internal/kg/prompts"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
)

// ChunkText issues one constrained generation call and validates the returned
// chunk set. All failures are terminal for the attempt.
func ChunkText(ctx context.Context, log *logger.Logger, ai openai.Client, cfg prompts.Config, text string) ([]Chunk, openai.Meta, error) {
	p := prompts.BuildChunking(cfg, text)

	obj, meta, err := ai.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema, cfg.MaxOutputTokens)
	if err != nil {
		return nil, meta, classifyGenerationError("chunking", err)
	}

	rawChunks, ok := obj["chunks"].([]any)
	if !ok {
		return nil, meta, NewIngestError(CodeChunkingInvalidJSON, "chunking output missing chunks array")
	}

	maxChars := cfg.MaxChunkChars
	if maxChars <= 0 {
		maxChars = 1200
	}

	chunks := make([]Chunk, 0, len(rawChunks))
	seen := map[string]bool{}
	offset := 0
	for i, ca := range rawChunks {
		m, _ := ca.(map[string]any)
		txt := asString(m["text"])
		if txt == "" {
			continue
		}
		if len(txt) > maxChars {
			txt = txt[:maxChars]
		}

		id := asString(m["chunk_id"])
		if id == "" || seen[id] {
			id = fmt.Sprintf("c%d", i+1)
		}
		seen[id] = true

		start := intFromAny(m["start"], -1)
		end := intFromAny(m["end"], -1)
		if start < 0 || end < start {
			// Model offsets are unreliable; fall back to a running offset.
			start = offset
			end = offset + len(txt)
		}
		offset = end

		chunks = append(chunks, Chunk{ChunkID: id, Text: txt, Start: start, End: end})
	}

	if len(chunks) == 0 {
		return nil, meta, NewIngestError(CodeChunkingInvalidJSON, "chunking produced zero chunks")
	}

	if log != nil {
		log.Debug("chunking complete", "chunks", len(chunks), "raw_len", len(text))
	}
	return chunks, meta, nil
}

// ChunkIDSet returns the evidence-id membership set for a run.
func ChunkIDSet(chunks []Chunk) map[string]bool {
	out := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		out[c.ChunkID] = true
	}
	return out
}

// ChunksBlock renders chunks in the "[chunk_id] text" form the extraction
// prompt expects.
func ChunksBlock(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("[")
		b.WriteString(c.ChunkID)
		b.WriteString("] ")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}
