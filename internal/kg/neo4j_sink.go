package kg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/neo4jdb"
)

// Neo4jSink is the concrete GraphSink over a Neo4j property graph. Entity
// nodes are :KGEntity keyed on (project_id, uid); relationships are a single
// :RELATES_TO edge type (Cypher cannot parameterize relationship types) with
// the semantic type carried as a property, keyed the same way.
type Neo4jSink struct {
	client *neo4jdb.Client
	log    *logger.Logger

	schemaOnce sync.Once
}

func NewNeo4jSink(client *neo4jdb.Client, log *logger.Logger) *Neo4jSink {
	return &Neo4jSink{
		client: client,
		log:    log.With("component", "Neo4jSink"),
	}
}

func (s *Neo4jSink) ensureSchema(ctx context.Context) {
	s.schemaOnce.Do(func() {
		session := s.client.WriteSession(ctx)
		defer session.Close(ctx)
		stmts := []string{
			`CREATE CONSTRAINT kg_entity_identity IF NOT EXISTS FOR (e:KGEntity) REQUIRE (e.project_id, e.uid) IS UNIQUE`,
			`CREATE INDEX kg_entity_project IF NOT EXISTS FOR (e:KGEntity) ON (e.project_id)`,
		}
		for _, q := range stmts {
			if res, err := session.Run(ctx, q, nil); err != nil {
				s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	})
}

func (s *Neo4jSink) MergeGraph(ctx context.Context, projectID string, entities []CanonicalEntity, rels []CanonicalRelationship, prov Provenance) (MergeResult, error) {
	out := MergeResult{}
	if s == nil || s.client == nil || s.client.Driver == nil {
		return out, fmt.Errorf("neo4j sink not initialized")
	}
	if projectID == "" {
		return out, fmt.Errorf("project id required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(entities) == 0 && len(rels) == 0 {
		return out, nil
	}

	s.ensureSchema(ctx)

	now := time.Now().UTC().Format(time.RFC3339Nano)

	entityRows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		if e.UID == "" {
			continue
		}
		entityRows = append(entityRows, map[string]any{
			"uid":                e.UID,
			"canonical_name":     e.CanonicalName,
			"display_name":       e.DisplayName,
			"type":               e.Type,
			"confidence":         e.Confidence,
			"aliases":            e.Aliases,
			"evidence_chunk_ids": e.EvidenceChunkIDs,
			"source_doc_id":      prov.DocID,
		})
	}

	relRows := make([]map[string]any, 0, len(rels))
	for _, r := range rels {
		if r.UID == "" || r.FromUID == "" || r.ToUID == "" {
			continue
		}
		relRows = append(relRows, map[string]any{
			"uid":                r.UID,
			"type":               r.Type,
			"from_uid":           r.FromUID,
			"to_uid":             r.ToUID,
			"confidence":         r.Confidence,
			"weight":             r.Weight,
			"evidence_doc_id":    prov.DocID,
			"evidence_chunk_ids": r.EvidenceChunkIDs,
		})
	}

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(entityRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $entities AS e
MERGE (n:KGEntity {project_id: $project_id, uid: e.uid})
ON CREATE SET n.created_at = $now
SET n.canonical_name = e.canonical_name,
    n.display_name = e.display_name,
    n.type = e.type,
    n.confidence = e.confidence,
    n.aliases = e.aliases,
    n.evidence_chunk_ids = e.evidence_chunk_ids,
    n.source_doc_id = e.source_doc_id,
    n.updated_at = $now
`, map[string]any{"project_id": projectID, "entities": entityRows, "now": now})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(relRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:KGEntity {project_id: $project_id, uid: r.from_uid})
MATCH (b:KGEntity {project_id: $project_id, uid: r.to_uid})
MERGE (a)-[e:RELATES_TO {project_id: $project_id, uid: r.uid}]->(b)
ON CREATE SET e.created_at = $now
SET e.type = r.type,
    e.confidence = r.confidence,
    e.weight = r.weight,
    e.evidence_doc_id = r.evidence_doc_id,
    e.evidence_chunk_ids = r.evidence_chunk_ids,
    e.updated_at = $now
`, map[string]any{"project_id": projectID, "rels": relRows, "now": now})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return out, fmt.Errorf("neo4j merge: %w", err)
	}

	out.EntitiesWritten = len(entityRows)
	out.RelsWritten = len(relRows)
	return out, nil
}

func (s *Neo4jSink) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if s == nil || s.client == nil || s.client.Driver == nil {
		return nil, fmt.Errorf("neo4j sink not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var out []map[string]any
		for res.Next(ctx) {
			rec := res.Record()
			row := make(map[string]any, len(rec.Keys))
			for _, k := range rec.Keys {
				v, _ := rec.Get(k)
				row[k] = v
			}
			out = append(out, row)
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j query: %w", err)
	}
	result, _ := rows.([]map[string]any)
	return result, nil
}
