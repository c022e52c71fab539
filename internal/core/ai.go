package core

import "context"

// EmbeddingProvider turns texts into fixed-dimension vectors. The same
// provider must serve indexing and querying for a corpus.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// Transcriber is the OCR fallback used when a document has no usable text
// layer. data is the raw document, or decoded text when mimeType is text/*.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}
