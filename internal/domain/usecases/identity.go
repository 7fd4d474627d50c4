package usecases

import "strconv"

// ChunkIDSeparator joins a document id and a chunk ordinal.
// Document ids must not contain it if cross-document uniqueness matters.
const ChunkIDSeparator = "__"

// ChunkID derives the stable index id of a chunk.
func ChunkID(docID string, ordinal int) string {
	return docID + ChunkIDSeparator + strconv.Itoa(ordinal)
}
