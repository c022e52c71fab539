package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/services"
)

// ProcessHandler serves process lookups and their ingestion.
type ProcessHandler struct {
	processes *services.ProcessService
	documents *services.DocumentService
}

func NewProcessHandler(processes *services.ProcessService, documents *services.DocumentService) *ProcessHandler {
	return &ProcessHandler{processes: processes, documents: documents}
}

// GetProcess scrapes (or reads from cache) the process named by ?protocol=.
// A failed scrape still returns the record, with the status of its category.
func (h *ProcessHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	rec, err := h.processes.Get(r.Context(), r.URL.Query().Get("protocol"), refresh)
	if err != nil {
		var ae *apperr.Error
		if rec != nil && errors.As(err, &ae) {
			writeJSON(w, apperr.HTTPStatus(ae.Code), rec)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type ingestRequest struct {
	Protocol string `json:"protocol"`
	Force    bool   `json:"force"`
}

// IngestProcess queues the process for background ingestion.
func (h *ProcessHandler) IngestProcess(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.documents.Enqueue(req.Protocol, req.Force); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"protocol": req.Protocol, "queued": true})
}

func (h *ProcessHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.documents.Statuses(r.Context(), r.URL.Query().Get("protocol"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// PurgeChunks drops everything indexed for ?protocol=.
func (h *ProcessHandler) PurgeChunks(w http.ResponseWriter, r *http.Request) {
	protocol := r.URL.Query().Get("protocol")
	res, err := h.documents.Purge(r.Context(), protocol)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.processes.Forget(r.Context(), protocol)
	writeJSON(w, http.StatusOK, res)
}
