package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/models"
)

var _ core.TextExtractor = (*DocumentExtractor)(nil)

// DocumentExtractor reads the native text layer of a document and falls
// back to transcription when that layer is missing or too thin.
type DocumentExtractor struct {
	transcriber    core.Transcriber
	minChars       int
	useReadability bool
}

// NewDocumentExtractor builds an extractor. transcriber may be nil, in
// which case documents without a text layer fail.
func NewDocumentExtractor(transcriber core.Transcriber, minChars int, useReadability bool) *DocumentExtractor {
	return &DocumentExtractor{
		transcriber:    transcriber,
		minChars:       minChars,
		useReadability: useReadability,
	}
}

func (e *DocumentExtractor) Extract(ctx context.Context, doc *models.AcquiredDocument) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", apperr.ErrEmptyBuffer
	}
	log := zap.S().With("filename", doc.Filename, "kind", doc.Kind().String())

	text, err := e.native(doc)
	if err == nil && e.usable(text) {
		return text, nil
	}
	if err != nil {
		log.Warnw("native extraction failed", "error", err)
	} else {
		log.Infow("text layer too thin, transcribing", "chars", utf8.RuneCountInString(text))
	}

	if e.transcriber == nil {
		return "", e.failure(err, text)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	mimeType := doc.ContentType
	if doc.Kind() == models.KindHTML {
		mimeType = "text/html"
	}
	ocr, ocrErr := e.transcriber.Transcribe(ctx, doc.Data, mimeType)
	if ocrErr == nil && strings.TrimSpace(ocr) != "" {
		return strings.TrimSpace(ocr), nil
	}
	if ocrErr != nil {
		log.Warnw("transcription failed", "error", ocrErr)
	}

	// A thin native text still beats nothing.
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	return "", e.failure(err, text)
}

func (e *DocumentExtractor) native(doc *models.AcquiredDocument) (string, error) {
	switch doc.Kind() {
	case models.KindPDF:
		return pdfText(doc.Data)
	case models.KindHTML:
		body, _, err := docconv.ConvertHTML(bytes.NewReader(doc.Data), e.useReadability)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(body), nil
	default:
		res, err := docconv.Convert(bytes.NewReader(doc.Data), doc.ContentType, e.useReadability)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(res.Body), nil
	}
}

func (e *DocumentExtractor) usable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= max(e.minChars, 1)
}

func (e *DocumentExtractor) failure(err error, text string) error {
	if err != nil {
		return apperr.Wrap(apperr.ExtractionError, err, "no usable text")
	}
	return apperr.Newf(apperr.ExtractionError, "no usable text (%d chars)", utf8.RuneCountInString(text))
}

// pdfText joins the text layer of every readable page. The PDF parser
// panics on some malformed files, so panics become errors.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}
