package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/beatline/beatline/internal/middleware"
	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/notify"
	"github.com/beatline/beatline/internal/store"
)

type NotificationHandler struct {
	Dispatcher *notify.Dispatcher
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	page, limit := parsePagination(r, 20)
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	notifications, total, err := h.Dispatcher.List(userID, page, limit, unreadOnly)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"notifications": notifications,
		"pagination":    paginate(page, limit, total),
	})
}

// CreateNotification is the entry point external collaborators (the purchase
// flow, comment and follow handlers) call to raise a notification.
func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID int                `json:"recipientId"`
		Type        string             `json:"type"`
		Title       string             `json:"title"`
		Message     string             `json:"message"`
		RelatedTo   *models.RelatedRef `json:"relatedTo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RecipientID == 0 || req.Title == "" {
		http.Error(w, "recipientId and title are required", http.StatusBadRequest)
		return
	}

	n, err := h.Dispatcher.Create(req.RecipientID, req.Type, req.Title, req.Message, req.RelatedTo)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidType) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(n)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	notificationID, _ := strconv.Atoi(mux.Vars(r)["id"])

	err := h.Dispatcher.MarkAsRead(userID, notificationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Notification not found", http.StatusNotFound)
	case errors.Is(err, notify.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
