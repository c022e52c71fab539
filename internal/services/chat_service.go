package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/retriever"
	"github.com/markdave123-py/Procura/internal/core/scraper"
	"github.com/markdave123-py/Procura/internal/models"
)

// NoContextAnswer is returned, without calling the model, when nothing
// indexed for the process relates to the question.
const NoContextAnswer = "Informação indisponível: não encontrei essa informação nos documentos indexados deste processo."

const chatSystemPrompt = "Você é um assistente de gestão de compras públicas. Responda em português, " +
	"usando somente os trechos de documentos fornecidos no contexto. Cite os trechos pelo número entre colchetes. " +
	"Se o contexto não contiver a resposta, diga exatamente: \"" + NoContextAnswer + "\""

// maxHistory bounds how many prior turns go into the prompt.
const maxHistory = 10

// ChunkRetriever finds grounding chunks for a question.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, processID, query string, k int) ([]models.ScoredChunk, error)
}

type ChatService struct {
	retriever ChunkRetriever
	llm       core.LLMProvider
	topK      int
}

func NewChatService(r ChunkRetriever, llm core.LLMProvider, topK int) *ChatService {
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	return &ChatService{retriever: r, llm: llm, topK: topK}
}

// Source points at a chunk an answer was grounded on.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
}

type Answer struct {
	Answer   string   `json:"answer"`
	Grounded bool     `json:"grounded"`
	Sources  []Source `json:"sources"`
}

// Ask answers question from the indexed documents of protocol.
func (s *ChatService) Ask(ctx context.Context, protocol, question string, history []models.ChatMessage) (*Answer, error) {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "empty question")
	}

	hits, err := s.retriever.Retrieve(ctx, p.String(), question, s.topK)
	if err != nil {
		return nil, err
	}
	grounding := retriever.BuildContext(hits)
	if grounding == "" {
		zap.S().Infow("no grounding context, refusing", "process", p.String())
		return &Answer{Answer: NoContextAnswer, Sources: []Source{}}, nil
	}

	answer, err := s.llm.Generate(ctx, chatSystemPrompt, buildPrompt(grounding, question, history))
	if err != nil {
		if apperr.CodeOf(err) != apperr.Unknown {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.Internal, err, "generate answer")
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{DocumentID: h.DocumentID, ChunkIndex: h.ChunkIndex, Distance: h.Distance}
	}
	return &Answer{Answer: strings.TrimSpace(answer), Grounded: true, Sources: sources}, nil
}

func buildPrompt(grounding, question string, history []models.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contexto:\n%s\n\n", grounding)

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	if len(history) > 0 {
		b.WriteString("Conversa anterior:\n")
		for _, m := range history {
			role := "Usuário"
			if m.Role == "assistant" {
				role = "Assistente"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(m.Content))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Pergunta: %s", strings.TrimSpace(question))
	return b.String()
}
