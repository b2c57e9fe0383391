package prompts

const (
	SchemaNameChunking   = "chat_turn_chunking_v1"
	SchemaNameExtraction = "kg_extraction_v1"
)

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func NumberSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func IntegerSchema() map[string]any {
	return map[string]any{"type": "integer"}
}

func StringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func ObjectSchema(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func ChunkingSchema() map[string]any {
	chunk := ObjectSchema(map[string]any{
		"chunk_id": StringSchema(),
		"text":     StringSchema(),
		"start":    IntegerSchema(),
		"end":      IntegerSchema(),
	}, []string{"chunk_id", "text", "start", "end"})

	return ObjectSchema(map[string]any{
		"chunks": map[string]any{"type": "array", "items": chunk},
	}, []string{"chunks"})
}

func ExtractionSchema() map[string]any {
	entity := ObjectSchema(map[string]any{
		"id":                 StringSchema(),
		"name":               StringSchema(),
		"type":               StringSchema(),
		"confidence":         NumberSchema(),
		"aliases":            StringArraySchema(),
		"evidence_chunk_ids": StringArraySchema(),
	}, []string{"id", "name", "type", "confidence", "aliases", "evidence_chunk_ids"})

	relation := ObjectSchema(map[string]any{
		"from":               StringSchema(),
		"to":                 StringSchema(),
		"type":               StringSchema(),
		"confidence":         NumberSchema(),
		"evidence_chunk_ids": StringArraySchema(),
	}, []string{"from", "to", "type", "confidence", "evidence_chunk_ids"})

	return ObjectSchema(map[string]any{
		"entities":  map[string]any{"type": "array", "items": entity},
		"relations": map[string]any{"type": "array", "items": relation},
	}, []string{"entities", "relations"})
}
