package kg

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/kgbridge-backend/internal/kg/prompts"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
)

// ExtractGraph issues one generation call over the whole chunk set and
// post-validates the result regardless of what the model returned:
// entities need a real name and evidence from the run's chunk set (falling
// back to the first chunk, never an invented id); relationships need both
// endpoints resolving to kept entities and at least one valid evidence id.
// Invalid records are dropped individually; zero kept records is not an error.
func ExtractGraph(ctx context.Context, log *logger.Logger, ai openai.Client, cfg prompts.Config, chunks []Chunk) ([]ExtractedEntity, []ExtractedRelationship, openai.Meta, error) {
	p := prompts.BuildExtraction(cfg, ChunksBlock(chunks))

	obj, meta, err := ai.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema, cfg.MaxOutputTokens)
	if err != nil {
		return nil, nil, meta, classifyGenerationError("extract", err)
	}

	rawEntities, rawRelations := normalizeExtractionPayload(obj)

	allowed := ChunkIDSet(chunks)
	firstChunkID := ""
	if len(chunks) > 0 {
		firstChunkID = chunks[0].ChunkID
	}

	maxEntities := cfg.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 50
	}
	maxRels := cfg.MaxRelationships
	if maxRels <= 0 {
		maxRels = 100
	}

	entities := make([]ExtractedEntity, 0, len(rawEntities))
	keptRefs := map[string]bool{}
	dropped := 0
	for i, m := range rawEntities {
		if len(entities) >= maxEntities {
			break
		}
		name := asString(m["name"])
		if name == "" {
			dropped++
			continue
		}
		ev := filterAllowedChunkIDs(stringSliceFromAny(m["evidence_chunk_ids"]), allowed)
		if len(ev) == 0 {
			if firstChunkID == "" {
				dropped++
				continue
			}
			ev = []string{firstChunkID}
		}
		id := asString(m["id"])
		if id == "" {
			id = fmt.Sprintf("e%d", i+1)
		}
		etype := asString(m["type"])
		if etype == "" {
			etype = "unknown"
		}
		entities = append(entities, ExtractedEntity{
			ID:               id,
			Type:             etype,
			Name:             name,
			Confidence:       clamp01(floatFromAny(m["confidence"], 0.7)),
			Aliases:          dedupeStrings(stringSliceFromAny(m["aliases"])),
			EvidenceChunkIDs: ev,
		})
		keptRefs[strings.ToLower(id)] = true
		keptRefs[CanonicalName(name)] = true
	}

	relations := make([]ExtractedRelationship, 0, len(rawRelations))
	droppedRels := 0
	for _, m := range rawRelations {
		if len(relations) >= maxRels {
			break
		}
		from := asString(m["from"])
		to := asString(m["to"])
		rtype := asString(m["type"])
		if from == "" || to == "" || rtype == "" {
			droppedRels++
			continue
		}
		if !keptRefs[strings.ToLower(from)] && !keptRefs[CanonicalName(from)] {
			droppedRels++
			continue
		}
		if !keptRefs[strings.ToLower(to)] && !keptRefs[CanonicalName(to)] {
			droppedRels++
			continue
		}
		ev := filterAllowedChunkIDs(stringSliceFromAny(m["evidence_chunk_ids"]), allowed)
		if len(ev) == 0 {
			droppedRels++
			continue
		}
		relations = append(relations, ExtractedRelationship{
			From:             from,
			To:               to,
			Type:             rtype,
			Confidence:       clamp01(floatFromAny(m["confidence"], 0.7)),
			EvidenceChunkIDs: ev,
		})
	}

	if log != nil {
		log.Debug("extraction complete",
			"entities", len(entities),
			"relations", len(relations),
			"dropped_entities", dropped,
			"dropped_relations", droppedRels,
		)
	}
	return entities, relations, meta, nil
}
