package kg

import "time"

// Chunk is one evidence-addressable segment of a conversation turn. Chunk ids
// are scoped to a single extraction run; chunks are persisted only as the flat
// document corpus plus evidence references, never as graph nodes.
type Chunk struct {
	ChunkID string
	Text    string
	Start   int
	End     int
}

// ExtractedEntity is the pre-canonical entity shape returned by the model,
// after validation against the run's chunk set.
type ExtractedEntity struct {
	ID               string
	Type             string
	Name             string
	Confidence       float64
	Aliases          []string
	EvidenceChunkIDs []string
}

// ExtractedRelationship is the pre-canonical relationship shape. From/To have
// already been resolved to kept entity ids during validation.
type ExtractedRelationship struct {
	From             string
	To               string
	Type             string
	Confidence       float64
	EvidenceChunkIDs []string
}

// CanonicalEntity carries the content-addressed identity merged into the
// graph. UID is deterministic across extraction runs.
type CanonicalEntity struct {
	UID              string
	CanonicalName    string
	DisplayName      string
	Type             string
	Confidence       float64
	Aliases          []string
	EvidenceChunkIDs []string
}

// CanonicalRelationship identity is scoped to the evidence document: the same
// fact re-extracted from the same document merges, while the same fact from a
// different document gets its own edge with its own evidence.
type CanonicalRelationship struct {
	UID              string
	Type             string
	FromUID          string
	ToUID            string
	Confidence       float64
	Weight           float64
	EvidenceChunkIDs []string
}

// Provenance ties a merge batch back to its source document.
type Provenance struct {
	DocID string
	Src   string
}

type MergeResult struct {
	EntitiesWritten int
	RelsWritten     int
}

// Job is one unit of ingestion work, keyed by (ProjectID, DocID).
type Job struct {
	ProjectID     string
	DocID         string
	Src           string
	Mode          string
	UserText      string
	AssistantText string
	EnqueuedAt    time.Time
}

func (j Job) Key() string {
	return j.ProjectID + "|" + j.DocID
}

// Text returns the combined turn text the pipeline chunks and extracts from.
func (j Job) Text() string {
	return "User: " + j.UserText + "\nAssistant: " + j.AssistantText
}
