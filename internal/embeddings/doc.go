// Package embeddings generates vector embeddings for document chunks and
// queries. The default provider talks to an Ollama server; a local ONNX
// provider is available in CGO builds, and a deterministic hash provider
// serves tests and offline development.
package embeddings
