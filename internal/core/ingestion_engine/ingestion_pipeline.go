package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	objectclient "github.com/markdave123-py/Procura/internal/core/object-client"
	"github.com/markdave123-py/Procura/internal/models"
)

// Document outcomes in a Report.
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// DocumentOutcome is what happened to one document of a process.
type DocumentOutcome struct {
	DocumentID string      `json:"document_id"`
	Order      int         `json:"order"`
	Type       string      `json:"type"`
	Outcome    string      `json:"outcome"`
	Chunks     int         `json:"chunks"`
	Code       apperr.Code `json:"code,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Report summarises one process ingestion.
type Report struct {
	ProcessID string            `json:"process_id"`
	Indexed   int               `json:"indexed"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Chunks    int               `json:"chunks"`
	Documents []DocumentOutcome `json:"documents"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// DocumentID identifies a document by its process and its order on the
// process page.
func DocumentID(processID string, order int) string {
	return fmt.Sprintf("%s#%d", processID, order)
}

// Pipeline acquires, extracts, chunks and indexes every document of a
// process.
type Pipeline struct {
	db        core.DbClient
	obj       core.ObjectClient
	acquirer  core.DocumentAcquirer
	extractor core.TextExtractor
	chunker   core.Chunker
	indexer   *Indexer
	cfg       *IngestConfig
	now       func() time.Time
}

// NewPipeline wires the stages. obj may be nil to skip archiving.
func NewPipeline(
	db core.DbClient,
	obj core.ObjectClient,
	acquirer core.DocumentAcquirer,
	extractor core.TextExtractor,
	chunker core.Chunker,
	indexer *Indexer,
	cfg *IngestConfig,
) *Pipeline {
	return &Pipeline{
		db: db, obj: obj, acquirer: acquirer, extractor: extractor,
		chunker: chunker, indexer: indexer, cfg: cfg, now: time.Now,
	}
}

// IngestProcess handles every document of rec with at most cfg.Workers in
// flight. A failing document never stops the others; its error lands in
// its status record and in the report. Documents already COMPLETED are
// skipped unless force is set.
func (p *Pipeline) IngestProcess(ctx context.Context, rec *models.ProcessRecord, force bool) (*Report, error) {
	if rec == nil {
		return nil, apperr.New(apperr.InvalidRequest, "nil process record")
	}
	if rec.ScrapeError != nil {
		return nil, apperr.Newf(apperr.Code(rec.ScrapeError.Category), "process was not scraped: %s", rec.ScrapeError.Message)
	}

	start := p.now()
	processID := rec.Number
	outcomes := make([]DocumentOutcome, len(rec.Documents))

	var g errgroup.Group
	g.SetLimit(p.cfg.workers())
	for i, ref := range rec.Documents {
		g.Go(func() error {
			outcomes[i] = p.ingestDocument(ctx, processID, ref, force)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{ProcessID: processID, Documents: outcomes, Elapsed: time.Since(start)}
	for _, o := range outcomes {
		switch o.Outcome {
		case OutcomeIndexed:
			report.Indexed++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
		report.Chunks += o.Chunks
	}

	zap.S().Infow("process ingested",
		"process", processID,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"elapsed", report.Elapsed)
	return report, ctx.Err()
}

func (p *Pipeline) ingestDocument(ctx context.Context, processID string, ref models.DocumentRef, force bool) DocumentOutcome {
	docID := DocumentID(processID, ref.Order)
	out := DocumentOutcome{DocumentID: docID, Order: ref.Order, Type: ref.Type}
	log := zap.S().With("process", processID, "document", docID)

	if ref.URL == "" {
		out.Outcome = OutcomeSkipped
		out.Error = "document is restricted"
		return out
	}
	if !force {
		if st, err := p.db.GetIngestionStatus(ctx, docID); err == nil && st != nil && st.State == models.StateCompleted {
			out.Outcome = OutcomeSkipped
			out.Error = "already indexed"
			return out
		}
	}

	status := &models.IngestionStatus{DocumentID: docID, ProcessID: processID, State: models.StatePending}
	fail := func(err error) DocumentOutcome {
		status.State = models.StateError
		status.Error = err.Error()
		status.UpdatedAt = p.now()
		if serr := p.db.SetIngestionStatus(ctx, status); serr != nil {
			log.Errorw("record document failure", "error", serr)
		}
		out.Outcome = OutcomeFailed
		out.Code = apperr.CodeOf(err)
		out.Error = err.Error()
		log.Warnw("document failed", "code", out.Code, "error", err)
		return out
	}
	if err := p.setStatus(ctx, status); err != nil {
		return fail(err)
	}

	doc, err := p.acquirer.Acquire(ctx, ref.URL)
	if err != nil {
		return fail(err)
	}
	status.ContentHash = doc.Hash
	if p.obj != nil {
		status.ArchiveKey = p.archive(ctx, doc)
	}
	if err := p.setStatus(ctx, status); err != nil {
		return fail(err)
	}

	text, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return fail(err)
	}
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return fail(apperr.New(apperr.ExtractionError, "document produced no chunks"))
	}

	if force {
		if _, err := p.db.DeleteChunksByDocument(ctx, docID); err != nil {
			return fail(fmt.Errorf("clear previous chunks: %w", err))
		}
	}

	// Index owns the status from here on.
	n, err := p.indexer.Index(ctx, processID, docID, chunks)
	out.Chunks = n
	if err != nil {
		out.Outcome = OutcomeFailed
		out.Code = apperr.CodeOf(err)
		out.Error = err.Error()
		return out
	}
	out.Outcome = OutcomeIndexed
	return out
}

// archive uploads the raw document. A failed upload only costs the
// archive copy.
func (p *Pipeline) archive(ctx context.Context, doc *models.AcquiredDocument) string {
	key := objectclient.ArchiveKey(doc.Hash, doc.Filename)
	if _, err := p.obj.UploadFile(ctx, key, doc.Data, doc.ContentType); err != nil {
		zap.S().Warnw("archive upload failed", "key", key, "error", err)
		return ""
	}
	return key
}

func (p *Pipeline) setStatus(ctx context.Context, st *models.IngestionStatus) error {
	st.UpdatedAt = p.now()
	if err := p.db.SetIngestionStatus(ctx, st); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}
