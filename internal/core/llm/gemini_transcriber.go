package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Procura/internal/core"
)

const transcribePrompt = "Transcreva integralmente o texto deste documento, na ordem de leitura. " +
	"Responda apenas com o texto transcrito, sem comentários."

// GeminiTranscriber reads scanned documents with a multimodal model.
type GeminiTranscriber struct {
	client    *genai.Client
	modelName string
}

func NewGeminiTranscriber(ctx context.Context, apiKey, modelName string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTranscriber{client: cl, modelName: modelName}, nil
}

func (g *GeminiTranscriber) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Transcribe sends text/* payloads inline as text and everything else as
// a blob.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)

	parts := []genai.Part{genai.Text(transcribePrompt)}
	if strings.HasPrefix(mimeType, "text/") {
		parts = append(parts, genai.Text(string(data)))
	} else {
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}

var _ core.Transcriber = (*GeminiTranscriber)(nil)
