package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key returns the chunk's identity for deduplication. Ingestion assigns
// explicit ids (<document_id>:<chunk_index>), so the content hash is only a
// fallback for chunks that arrived from the index without one. The hash is
// sha256 over whitespace-normalized content, which is stable across runs and
// processes. Distinct chunks with identical content collide; accepted.
func (c Chunk) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return ContentHash(c.Content)
}

// ContentHash hashes whitespace-normalized content into a hex chunk identity.
func ContentHash(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
