package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/models"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, mimeType string) (string, error) {
	f.calls = append(f.calls, mimeType)
	return f.text, f.err
}

func htmlDoc(body string) *models.AcquiredDocument {
	return &models.AcquiredDocument{
		Data:        []byte("<html><body>" + body + "</body></html>"),
		ContentType: "text/html; charset=utf-8",
		Filename:    "page.html",
	}
}

func TestExtractHTMLTextLayer(t *testing.T) {
	ocr := &fakeTranscriber{text: "ocr"}
	e := NewDocumentExtractor(ocr, 20, false)

	text, err := e.Extract(context.Background(), htmlDoc("<p>Despacho autorizando a abertura do pregão eletrônico.</p>"))
	require.NoError(t, err)
	assert.Contains(t, text, "Despacho autorizando")
	assert.Empty(t, ocr.calls)
}

func TestExtractThinHTMLIsTranscribed(t *testing.T) {
	ocr := &fakeTranscriber{text: "  texto transcrito  "}
	e := NewDocumentExtractor(ocr, 50, false)

	text, err := e.Extract(context.Background(), htmlDoc("<p>curto</p>"))
	require.NoError(t, err)
	assert.Equal(t, "texto transcrito", text)
	assert.Equal(t, []string{"text/html"}, ocr.calls)
}

func TestExtractBrokenPDFFallsBackToTranscription(t *testing.T) {
	ocr := &fakeTranscriber{text: "conteúdo escaneado"}
	e := NewDocumentExtractor(ocr, 10, false)

	doc := &models.AcquiredDocument{Data: []byte("%PDF-1.4 not really"), ContentType: "application/pdf"}
	text, err := e.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "conteúdo escaneado", text)
	assert.Equal(t, []string{"application/pdf"}, ocr.calls)
}

func TestExtractFailsWhenNothingUsable(t *testing.T) {
	pdfDoc := &models.AcquiredDocument{Data: []byte("garbage"), ContentType: "application/pdf"}

	_, err := NewDocumentExtractor(&fakeTranscriber{err: errors.New("quota")}, 10, false).
		Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, apperr.ErrExtraction)

	_, err = NewDocumentExtractor(nil, 10, false).Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, apperr.ErrExtraction)

	_, err = NewDocumentExtractor(nil, 10, false).Extract(context.Background(), &models.AcquiredDocument{})
	assert.ErrorIs(t, err, apperr.ErrEmptyBuffer)
}

func TestExtractKeepsThinTextWhenTranscriptionFails(t *testing.T) {
	ocr := &fakeTranscriber{err: errors.New("unavailable")}
	e := NewDocumentExtractor(ocr, 500, false)

	text, err := e.Extract(context.Background(), htmlDoc("<p>Ofício 12/2024</p>"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "Ofício 12/2024"))
}
