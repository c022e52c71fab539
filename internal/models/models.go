package models

import (
	"strings"
	"time"
)

// User represents an authenticated API user.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StatusScrapingError is the ProcessRecord status reported when a scrape fails.
const StatusScrapingError = "scraping error"

// ProcessRecord is one case as read from the portal detail page.
// A new record is built on every scrape.
type ProcessRecord struct {
	Number         string                 `json:"numeroProcesso"`
	Status         string                 `json:"status"`
	CurrentUnit    string                 `json:"unidadeAtual"`
	OriginUnit     string                 `json:"unidadeOrigem"`
	Classification Classification         `json:"classificacao"`
	Subject        string                 `json:"assuntoDetalhado"`
	Notes          string                 `json:"observacao"`
	OpenedAt       string                 `json:"dataAutuacao"`
	Interested     []InterestedParty      `json:"interessados"`
	Documents      []DocumentRef          `json:"documentos"`
	Movements      []MovementEvent        `json:"movimentacoes"`
	Incidents      []CancellationIncident `json:"incidentes"`
	Fingerprint    string                 `json:"fingerprint"`
	ScrapeError    *ScrapeError           `json:"scraping_last_error"`
	ScrapedAt      time.Time              `json:"scrapedAt"`
}

// Classification is the archival code of a process.
type Classification struct {
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
}

// ScrapeError carries the category code and a readable message.
type ScrapeError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type InterestedParty struct {
	Type string `json:"tipo"`
	Name string `json:"nome"`
}

// DocumentRef is one row of the documents table. URL is absolute or empty
// when the portal restricts access.
type DocumentRef struct {
	Order      int    `json:"ordem"`
	Type       string `json:"tipo"`
	Date       string `json:"data"`
	OriginUnit string `json:"unidadeOrigem"`
	Nature     string `json:"natureza"`
	URL        string `json:"url"`
}

// MovementEvent is one hop between units. The last one in a record points
// at the unit currently holding the process.
type MovementEvent struct {
	OriginUnit      string `json:"unidadeOrigem"`
	DestinationUnit string `json:"unidadeDestino"`
	Sender          string `json:"usuarioRemetente"`
	Receiver        string `json:"usuarioRecebedor"`
	SentAt          string `json:"dataEnvio"`
	ReceivedAt      string `json:"dataRecebimento"`
	Urgent          bool   `json:"urgente"`
}

type CancellationIncident struct {
	Document      string `json:"documento"`
	RequestedBy   string `json:"solicitante"`
	RequestedAt   string `json:"dataSolicitacao"`
	CancelledBy   string `json:"cancelador"`
	CancelledAt   string `json:"dataCancelamento"`
	Justification string `json:"justificativa"`
}

// ContentKind classifies an acquired buffer.
type ContentKind int

const (
	KindBinary ContentKind = iota
	KindHTML
	KindPDF
)

func (k ContentKind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindPDF:
		return "pdf"
	default:
		return "binary"
	}
}

// Acquisition sources.
const (
	SourceDirect  = "direct"
	SourceBrowser = "browser"
)

// AcquiredDocument is a downloaded document held in memory.
type AcquiredDocument struct {
	Data        []byte
	ContentType string
	Filename    string
	Hash        string // MD5 hex of Data
	Size        int
	Source      string
}

// Kind derives the content kind from the content type.
func (d *AcquiredDocument) Kind() ContentKind {
	return KindOf(d.ContentType)
}

// KindOf maps a MIME type (parameters allowed) to a ContentKind.
func KindOf(contentType string) ContentKind {
	ct, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "text/html", "application/xhtml+xml":
		return KindHTML
	case "application/pdf", "application/x-pdf":
		return KindPDF
	default:
		return KindBinary
	}
}

// Chunk is one embedded text segment of a document.
type Chunk struct {
	ID         string    `db:"id" json:"id"`
	ProcessID  string    `db:"process_id" json:"process_id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ScoredChunk is a retrieval hit. Distance is cosine distance, lower is closer.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Ingestion states.
const (
	StatePending    = "PENDING"
	StateProcessing = "PROCESSING"
	StateCompleted  = "COMPLETED"
	StateError      = "ERROR"
)

// IngestionStatus tracks one document through the pipeline.
type IngestionStatus struct {
	DocumentID  string    `db:"document_id" json:"document_id"`
	ProcessID   string    `db:"process_id" json:"process_id"`
	State       string    `db:"state" json:"state"`
	Error       string    `db:"error" json:"error,omitempty"`
	ChunkCount  int       `db:"chunk_count" json:"chunk_count"`
	ContentHash string    `db:"content_hash" json:"content_hash,omitempty"`
	ArchiveKey  string    `db:"archive_key" json:"archive_key,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage is a prior conversation turn ("user" or "assistant").
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
