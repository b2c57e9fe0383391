package kg

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// CanonicalName lower-cases and whitespace-normalizes a display name so the
// same entity spelled differently across runs lands on one identity.
func CanonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), " ")
}

// EntityUID is the content-addressed merge key for an entity: the pair
// (project_id, uid) is unique in the graph.
func EntityUID(projectID, entityType, name string) string {
	return hashUID("ent|" + projectID + "|" + CanonicalName(entityType) + "|" + CanonicalName(name))
}

// RelUID scopes relationship identity to the evidence document. The same fact
// found in two different documents produces two edges, each with its own
// evidence; that is deliberate provenance, not a dedup miss.
func RelUID(projectID, relType, fromUID, toUID, evidenceDocID string) string {
	return hashUID("rel|" + projectID + "|" + CanonicalName(relType) + "|" + fromUID + "|" + toUID + "|" + evidenceDocID)
}

func hashUID(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Canonicalize maps validated extraction output to canonical identities.
// Entities that collapse to the same (type, canonical name) within one run are
// merged here: aliases and evidence union, max confidence wins.
func Canonicalize(projectID string, ents []ExtractedEntity, rels []ExtractedRelationship, docID string) ([]CanonicalEntity, []CanonicalRelationship) {
	canonical := make([]CanonicalEntity, 0, len(ents))
	byUID := map[string]int{}

	// Run-local lookup so relationship endpoints (id or name) resolve to uids.
	uidByRef := map[string]string{}

	for _, e := range ents {
		uid := EntityUID(projectID, e.Type, e.Name)
		if idx, ok := byUID[uid]; ok {
			merged := &canonical[idx]
			merged.Aliases = dedupeStrings(append(merged.Aliases, e.Aliases...))
			merged.EvidenceChunkIDs = dedupeStrings(append(merged.EvidenceChunkIDs, e.EvidenceChunkIDs...))
			if e.Confidence > merged.Confidence {
				merged.Confidence = e.Confidence
			}
		} else {
			byUID[uid] = len(canonical)
			canonical = append(canonical, CanonicalEntity{
				UID:              uid,
				CanonicalName:    CanonicalName(e.Name),
				DisplayName:      strings.TrimSpace(e.Name),
				Type:             strings.TrimSpace(e.Type),
				Confidence:       e.Confidence,
				Aliases:          dedupeStrings(e.Aliases),
				EvidenceChunkIDs: dedupeStrings(e.EvidenceChunkIDs),
			})
		}
		if e.ID != "" {
			uidByRef[strings.ToLower(strings.TrimSpace(e.ID))] = uid
		}
		uidByRef[CanonicalName(e.Name)] = uid
	}

	canonicalRels := make([]CanonicalRelationship, 0, len(rels))
	relSeen := map[string]bool{}
	for _, r := range rels {
		fromUID := uidByRef[strings.ToLower(strings.TrimSpace(r.From))]
		toUID := uidByRef[strings.ToLower(strings.TrimSpace(r.To))]
		if fromUID == "" || toUID == "" {
			continue
		}
		uid := RelUID(projectID, r.Type, fromUID, toUID, docID)
		if relSeen[uid] {
			continue
		}
		relSeen[uid] = true
		canonicalRels = append(canonicalRels, CanonicalRelationship{
			UID:              uid,
			Type:             strings.TrimSpace(r.Type),
			FromUID:          fromUID,
			ToUID:            toUID,
			Confidence:       r.Confidence,
			Weight:           1,
			EvidenceChunkIDs: dedupeStrings(r.EvidenceChunkIDs),
		})
	}

	return canonical, canonicalRels
}
