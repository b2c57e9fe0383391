package kg

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// DeriveDocID gives every submitted turn a stable document key. With an
// explicit turn id the key follows the turn; without one, identical content
// collapses to the same key via a content hash.
func DeriveDocID(projectID, turnID, userText, assistantText string) string {
	turnID = strings.TrimSpace(turnID)
	if turnID != "" {
		return "chat:" + projectID + ":" + turnID
	}
	sum := sha1.Sum([]byte(userText + assistantText))
	return "chat:" + projectID + ":" + hex.EncodeToString(sum[:])[:12]
}
