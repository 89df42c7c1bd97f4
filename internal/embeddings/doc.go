// Package embeddings generates issue-signature embeddings for strategy
// memory. The fastembed provider runs local ONNX models and needs CGO; the
// hash provider is a deterministic, dependency-free fallback that preserves
// cosine similarity for identical and near-identical texts.
package embeddings
