package handlers

import (
	"net/http"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/Procura/internal/api/middlewares"
	"github.com/markdave123-py/Procura/internal/models"
	"github.com/markdave123-py/Procura/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type ChatRequest struct {
	Protocol string               `json:"protocol"`
	Query    string               `json:"query"`
	History  []models.ChatMessage `json:"history"`
}

// QueryProcess answers a question from the indexed documents of a process.
func (h *ChatHandler) QueryProcess(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := middleware.UserIDFrom(r.Context())
	zap.S().Debugw("chat query", "user", userID, "protocol", req.Protocol, "history", len(req.History))

	ans, err := h.chat.Ask(r.Context(), req.Protocol, req.Query, req.History)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
