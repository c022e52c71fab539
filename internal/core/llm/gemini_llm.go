package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
)

// GenerationOptions tune answer generation. Zero values fall back to
// DefaultGeneration.
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultGeneration keeps answers close to the retrieved excerpts.
var DefaultGeneration = GenerationOptions{Temperature: 0.2, MaxOutputTokens: 1024}

// GeminiLLM answers prompts with one candidate per call.
type GeminiLLM struct {
	client    *genai.Client
	modelName string
	opts      GenerationOptions
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string, opts GenerationOptions) (*GeminiLLM, error) {
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
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultGeneration.Temperature
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = DefaultGeneration.MaxOutputTokens
	}
	return &GeminiLLM{client: cl, modelName: modelName, opts: opts}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) model(systemPrompt string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	m.SetCandidateCount(1)
	m.SetTemperature(g.opts.Temperature)
	m.SetMaxOutputTokens(g.opts.MaxOutputTokens)
	if systemPrompt != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	return m
}

// Generate returns the model's answer. Safety blocks and empty answers are
// reported as errors rather than as blank text.
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.model(systemPrompt).GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", generateError(err)
	}
	return answerFrom(resp)
}

func generateError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return apperr.Wrap(apperr.InvalidRequest, err, "answer blocked by safety filters")
	}
	if code := apperr.CodeOf(err); code != apperr.Unknown {
		return apperr.Wrap(code, err, "gemini generate")
	}
	return apperr.Wrap(apperr.NetworkFailure, err, "gemini generate")
}

func answerFrom(resp *genai.GenerateContentResponse) (string, error) {
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", apperr.New(apperr.InvalidRequest, "answer blocked by safety filters")
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", apperr.New(apperr.Internal, "model returned an empty answer")
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
