package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/beatline/beatline/internal/chat"
	"github.com/beatline/beatline/internal/middleware"
	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/store"
)

type ConversationHandler struct {
	Store  store.Store
	Router *chat.Router
}

// pagination mirrors the shape the web client already consumes.
type pagination struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Count   int `json:"count"`
}

func paginate(page, limit, total int) pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return pagination{Current: page, Total: pages, Count: total}
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

func (h *ConversationHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	page, limit := parsePagination(r, 20)

	conversations, total, err := h.Store.GetUserConversations(userID, page, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"conversations": conversations,
		"pagination":    paginate(page, limit, total),
	})
}

func (h *ConversationHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req struct {
		RecipientID int `json:"recipientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conv, err := h.Router.StartConversation(userID, req.RecipientID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Recipient not found", http.StatusNotFound)
		case errors.Is(err, chat.ErrSelfConversation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conv)
}

func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	conversationID, _ := strconv.Atoi(mux.Vars(r)["id"])

	conv, err := h.Store.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !conv.HasParticipant(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	page, limit := parsePagination(r, 50)
	messages, total, err := h.Store.GetConversationMessages(conversationID, page, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"messages":   messages,
		"pagination": paginate(page, limit, total),
	})
}

func (h *ConversationHandler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req struct {
		MessageIDs []int `json:"messageIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Router.MarkRead(userID, req.MessageIDs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
