package store

import (
	"errors"
	"time"

	"github.com/beatline/beatline/internal/models"
)

// ErrNotFound is returned when the requested row does not exist (or, for
// notifications, has aged out of the retention window).
var ErrNotFound = errors.New("not found")

type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id int) (*models.User, error)
	SearchUsers(query string) ([]models.User, error)

	// Conversation operations
	GetOrCreateConversation(userA, userB int) (*models.Conversation, bool, error)
	GetConversation(id int) (*models.Conversation, error)
	GetUserConversations(userID, page, limit int) ([]models.Conversation, int, error)
	TouchConversation(conversationID, lastMessageID int, at time.Time) error

	// Message operations
	CreateMessage(conversationID, senderID int, content string) (*models.Message, error)
	GetConversationMessages(conversationID, page, limit int) ([]models.Message, int, error)
	MarkMessagesRead(userID int, messageIDs []int) error

	// Notification operations
	CreateNotification(n *models.Notification) error
	GetNotification(id int) (*models.Notification, error)
	GetUserNotifications(recipientID, page, limit int, unreadOnly bool) ([]models.Notification, int, error)
	MarkNotificationRead(id int) error
	PurgeExpiredNotifications() (int64, error)
}
