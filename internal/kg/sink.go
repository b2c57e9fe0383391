package kg

import "context"

// GraphSink merges canonical entities and relationships into a property
// graph, scoped by project. Merges are idempotent and never destructive: a
// crash mid-batch leaves a partial update that a retry converges over.
type GraphSink interface {
	// MergeGraph upserts the batch keyed on (project_id, uid). created_at is
	// set only on create; updated_at always refreshes.
	MergeGraph(ctx context.Context, projectID string, entities []CanonicalEntity, rels []CanonicalRelationship, prov Provenance) (MergeResult, error)

	// Query runs a read-only Cypher statement and returns row maps. Callers
	// are responsible for project scoping the query text.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}
