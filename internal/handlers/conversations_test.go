package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"

	"github.com/beatline/beatline/internal/auth"
	"github.com/beatline/beatline/internal/chat"
	"github.com/beatline/beatline/internal/middleware"
	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/notify"
	"github.com/beatline/beatline/internal/store"
	"github.com/beatline/beatline/internal/store/sqlstore"
	"github.com/beatline/beatline/internal/ws"
)

func newTestEnv(t *testing.T) (store.Store, *chat.Router, *notify.Dispatcher) {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	registry := ws.NewRegistry()
	dispatcher := notify.NewDispatcher(st, registry, nil)
	return st, chat.NewRouter(st, registry, dispatcher), dispatcher
}

func createTestUser(t *testing.T, st store.Store, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "pass"}
	if err := st.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func bearer(t *testing.T, userID int) string {
	t.Helper()
	token, err := auth.IssueToken(userID)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return "Bearer " + token
}

func TestStartConversationHandler(t *testing.T) {
	st, router, _ := newTestEnv(t)
	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")

	handler := &ConversationHandler{Store: st, Router: router}

	body, _ := json.Marshal(map[string]int{"recipientId": bob.ID})
	req := httptest.NewRequest("POST", "/conversations", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, alice.ID))

	rr := httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.StartConversation)).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}

	var conv models.Conversation
	json.NewDecoder(rr.Body).Decode(&conv)
	if !conv.HasParticipant(alice.ID) || !conv.HasParticipant(bob.ID) {
		t.Errorf("Unexpected conversation participants: %+v", conv)
	}

	// Unknown recipient
	body, _ = json.Marshal(map[string]int{"recipientId": 9999})
	req = httptest.NewRequest("POST", "/conversations", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, alice.ID))
	rr = httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.StartConversation)).ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
}

func TestGetConversationsHandler(t *testing.T) {
	st, router, _ := newTestEnv(t)
	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")

	if _, err := router.StartConversation(alice.ID, bob.ID); err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	handler := &ConversationHandler{Store: st, Router: router}

	req := httptest.NewRequest("GET", "/conversations", nil)
	req.Header.Set("Authorization", bearer(t, alice.ID))
	rr := httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.GetConversations)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
		Pagination    struct {
			Count int `json:"count"`
		} `json:"pagination"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Conversations) != 1 || resp.Pagination.Count != 1 {
		t.Errorf("Expected 1 conversation, got %+v", resp)
	}
}

func TestGetMessagesHandler(t *testing.T) {
	st, router, _ := newTestEnv(t)
	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")
	eve := createTestUser(t, st, "eve")

	conv, _ := router.StartConversation(alice.ID, bob.ID)
	router.SendMessage(alice.ID, conv.ID, "hello")

	handler := &ConversationHandler{Store: st, Router: router}
	path := "/conversations/" + strconv.Itoa(conv.ID) + "/messages"

	req := httptest.NewRequest("GET", path, nil)
	req = mux.SetURLVars(req, map[string]string{"id": strconv.Itoa(conv.ID)})
	req.Header.Set("Authorization", bearer(t, bob.ID))
	rr := httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.GetMessages)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "hello" {
		t.Errorf("Unexpected messages: %+v", resp.Messages)
	}

	// Non-participants are rejected
	req = httptest.NewRequest("GET", path, nil)
	req = mux.SetURLVars(req, map[string]string{"id": strconv.Itoa(conv.ID)})
	req.Header.Set("Authorization", bearer(t, eve.ID))
	rr = httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.GetMessages)).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}

func TestMarkMessagesReadHandler(t *testing.T) {
	st, router, _ := newTestEnv(t)
	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")

	conv, _ := router.StartConversation(alice.ID, bob.ID)
	msg, _ := router.SendMessage(alice.ID, conv.ID, "hello")

	handler := &ConversationHandler{Store: st, Router: router}

	body, _ := json.Marshal(map[string][]int{"messageIds": {msg.ID}})
	req := httptest.NewRequest("POST", "/messages/read", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, bob.ID))
	rr := httptest.NewRecorder()
	middleware.AuthMiddleware(http.HandlerFunc(handler.MarkMessagesRead)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	messages, _, _ := st.GetConversationMessages(conv.ID, 1, 50)
	if len(messages[0].ReadBy) != 1 || messages[0].ReadBy[0] != bob.ID {
		t.Errorf("Expected bob in reader set, got %v", messages[0].ReadBy)
	}
}
