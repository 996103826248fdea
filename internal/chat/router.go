package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/notify"
	"github.com/beatline/beatline/internal/store"
	"github.com/beatline/beatline/internal/ws"
)

// previewLength bounds the content excerpt carried by a fallback
// notification.
const previewLength = 50

var (
	ErrNotParticipant   = errors.New("not a conversation participant")
	ErrEmptyContent     = errors.New("message content is empty")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
)

// Router validates and persists chat traffic, then fans it out to connected
// participants. The router itself is stateless; conversation state lives in
// the store.
type Router struct {
	store    store.Store
	registry *ws.Registry
	notifier *notify.Dispatcher
}

func NewRouter(st store.Store, registry *ws.Registry, notifier *notify.Dispatcher) *Router {
	return &Router{store: st, registry: registry, notifier: notifier}
}

// HandleEvent dispatches one inbound envelope from a connection's read loop.
// Errors are logged, never echoed to the socket: a sender only learns about
// failures of their own durable write through the HTTP surface.
func (r *Router) HandleEvent(senderID int, env ws.Envelope) {
	var err error
	switch env.Type {
	case ws.TypeMessage:
		_, err = r.SendMessage(senderID, env.ConversationID, env.Content)
	case ws.TypeStartConversation:
		_, err = r.StartConversation(senderID, env.RecipientID)
	case ws.TypeTyping:
		err = r.SetTypingStatus(env.ConversationID, senderID, true)
	case ws.TypeStopTyping:
		err = r.SetTypingStatus(env.ConversationID, senderID, false)
	default:
		err = fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		log.Printf("Error handling %q from user %d: %v", env.Type, senderID, err)
	}
}

// SendMessage persists the message, advances the conversation summary, and
// fans out to the other participant. Persistence happens-before any push: a
// failure to store aborts the call, while every delivery-side failure is
// absorbed here and converted into a fallback notification when the recipient
// has no reachable session.
func (r *Router) SendMessage(senderID, conversationID int, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	conv, err := r.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	msg, err := r.store.CreateMessage(conv.ID, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// The message is durable from here on. A failed summary update loses only
	// the conversation-list ordering, never the message itself.
	if err := r.store.TouchConversation(conv.ID, msg.ID, msg.SentAt); err != nil {
		log.Printf("Error updating conversation %d summary: %v", conv.ID, err)
	}

	data := r.formatMessage(msg)
	payload, err := json.Marshal(models.Event{Type: models.EventNewMessage, Data: data})
	if err != nil {
		return msg, fmt.Errorf("encode message event: %w", err)
	}

	recipientID := conv.Other(senderID)
	if r.registry.Send(recipientID, payload) == 0 {
		title := fmt.Sprintf("New message from %s", data.Sender.Name)
		related := &models.RelatedRef{Model: "User", ID: senderID}
		if _, err := r.notifier.Create(recipientID, models.NotificationMessage, title, preview(content), related); err != nil {
			log.Printf("Error creating fallback notification for user %d: %v", recipientID, err)
		}
	}
	return msg, nil
}

// StartConversation lazily creates the conversation for the pair. Both sides
// racing on first contact converge on one conversation through the store's
// pair uniqueness constraint.
func (r *Router) StartConversation(senderID, recipientID int) (*models.Conversation, error) {
	if senderID == recipientID {
		return nil, ErrSelfConversation
	}
	if _, err := r.store.GetUserByID(recipientID); err != nil {
		return nil, fmt.Errorf("recipient %d: %w", recipientID, err)
	}

	conv, created, err := r.store.GetOrCreateConversation(senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	if created {
		payload, err := json.Marshal(models.Event{Type: models.EventConversationCreated, Data: conv})
		if err != nil {
			return conv, fmt.Errorf("encode conversation event: %w", err)
		}
		r.registry.Send(conv.UserA, payload)
		r.registry.Send(conv.UserB, payload)
	}
	return conv, nil
}

// SetTypingStatus relays an ephemeral typing signal to the other participant.
// Nothing is persisted and an unreachable recipient drops the signal.
func (r *Router) SetTypingStatus(conversationID, senderID int, isTyping bool) error {
	conv, err := r.store.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("conversation %d: %w", conversationID, err)
	}
	if !conv.HasParticipant(senderID) {
		return ErrNotParticipant
	}

	data := models.TypingData{ConversationID: conv.ID, UserID: senderID, IsTyping: isTyping}
	payload, err := json.Marshal(models.Event{Type: models.EventTypingStatus, Data: data})
	if err != nil {
		return fmt.Errorf("encode typing event: %w", err)
	}
	r.registry.Send(conv.Other(senderID), payload)
	return nil
}

// MarkRead adds the user to each message's reader set. Re-marking is a no-op.
func (r *Router) MarkRead(userID int, messageIDs []int) error {
	return r.store.MarkMessagesRead(userID, messageIDs)
}

func (r *Router) formatMessage(msg *models.Message) models.MessageData {
	sender := models.Sender{ID: msg.SenderID}
	if user, err := r.store.GetUserByID(msg.SenderID); err == nil {
		sender.Name = user.DisplayName()
		sender.Picture = user.ProfilePicture
	} else {
		log.Printf("Error looking up sender %d: %v", msg.SenderID, err)
	}
	return models.MessageData{
		ID:             msg.ID,
		Content:        msg.Content,
		Sender:         sender,
		ConversationID: msg.ConversationID,
		SentAt:         msg.SentAt,
		ReadBy:         msg.ReadBy,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
