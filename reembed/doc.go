// Package reembed regenerates the embeddings of already indexed chunks,
// typically after switching embedding models.
//
// Chunk text and section boundaries are left alone. Each chunk is embedded
// again in batches with retry and exponential backoff, normalized, and
// written to both the chunk store and the vector store. Progress is reported
// as the run advances.
package reembed
