package models

import "time"

type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	ArtistName     string    `json:"artistName,omitempty"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DisplayName is what other participants see: the artist name when the user
// has set one, the plain username otherwise.
func (u *User) DisplayName() string {
	if u.ArtistName != "" {
		return u.ArtistName
	}
	return u.Username
}

// Conversation is the unordered pair {UserA, UserB}. The store keeps
// UserA < UserB so a pair maps to at most one row.
type Conversation struct {
	ID            int       `json:"id"`
	UserA         int       `json:"userA"`
	UserB         int       `json:"userB"`
	LastMessageID int       `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID int) bool {
	return userID == c.UserA || userID == c.UserB
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int) int {
	if userID == c.UserA {
		return c.UserB
	}
	return c.UserA
}

type Message struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"conversation"`
	SenderID       int       `json:"senderId"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
	ReadBy         []int     `json:"readBy"`
}

// Notification types.
const (
	NotificationSale    = "sale"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationLike    = "like"
	NotificationMessage = "message"
	NotificationSystem  = "system"
)

var notificationTypes = map[string]bool{
	NotificationSale:    true,
	NotificationComment: true,
	NotificationFollow:  true,
	NotificationLike:    true,
	NotificationMessage: true,
	NotificationSystem:  true,
}

func ValidNotificationType(t string) bool {
	return notificationTypes[t]
}

// RelatedRef points a notification at the entity it is about.
type RelatedRef struct {
	Model string `json:"model"`
	ID    int    `json:"id"`
}

type Notification struct {
	ID          int         `json:"id"`
	RecipientID int         `json:"recipient"`
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	RelatedTo   *RelatedRef `json:"relatedTo,omitempty"`
	IsRead      bool        `json:"isRead"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Event is the outbound envelope pushed over a live connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Outbound event types.
const (
	EventNewMessage          = "new_message"
	EventConversationCreated = "conversation_created"
	EventTypingStatus        = "typing_status"
	EventNotification        = "notification"
)

// Sender is the author block embedded in a formatted message.
type Sender struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// MessageData is the new_message payload.
type MessageData struct {
	ID             int       `json:"id"`
	Content        string    `json:"content"`
	Sender         Sender    `json:"sender"`
	ConversationID int       `json:"conversation"`
	SentAt         time.Time `json:"sentAt"`
	ReadBy         []int     `json:"readBy"`
}

// TypingData is the typing_status payload.
type TypingData struct {
	ConversationID int  `json:"conversationId"`
	UserID         int  `json:"userId"`
	IsTyping       bool `json:"isTyping"`
}
