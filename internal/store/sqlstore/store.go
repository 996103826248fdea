package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/store"
)

// notificationTTL is the retention window. Rows older than this are invisible
// to reads and removed by PurgeExpiredNotifications.
const notificationTTL = 30 * 24 * time.Hour

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	s.createTables()
	return s, nil
}

func (s *SQLStore) createTables() {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		artist_name TEXT,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		profile_picture TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_a INTEGER NOT NULL,
		user_b INTEGER NOT NULL,
		last_message_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_a, user_b),
		FOREIGN KEY (user_a) REFERENCES users(id),
		FOREIGN KEY (user_b) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		sender_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		sent_at DATETIME NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id),
		FOREIGN KEY (sender_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS message_reads (
		message_id INTEGER,
		user_id INTEGER,
		PRIMARY KEY (message_id, user_id),
		FOREIGN KEY (message_id) REFERENCES messages(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		related_model TEXT,
		related_id INTEGER,
		is_read BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (recipient_id) REFERENCES users(id)
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP")
	}

	_, err := s.db.Exec(query)
	if err != nil {
		panic(err)
	}
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (s *SQLStore) CreateUser(user *models.User) error {
	user.CreatedAt = time.Now().UTC()
	var id int
	query := s.rebind("INSERT INTO users (username, artist_name, email, password, profile_picture, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id")
	err := s.db.QueryRow(query, user.Username, user.ArtistName, user.Email, user.Password, user.ProfilePicture, user.CreatedAt).Scan(&id)
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

const userColumns = "id, username, COALESCE(artist_name, ''), email, password, COALESCE(profile_picture, ''), created_at"

func (s *SQLStore) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.ArtistName, &user.Email, &user.Password, &user.ProfilePicture, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByUsername(username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return s.scanUser(s.db.QueryRow(query, username))
}

func (s *SQLStore) GetUserByID(id int) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return s.scanUser(s.db.QueryRow(query, id))
}

func (s *SQLStore) SearchUsers(queryStr string) ([]models.User, error) {
	query := s.rebind("SELECT id, username, COALESCE(artist_name, ''), email, COALESCE(profile_picture, '') FROM users WHERE username LIKE ? OR artist_name LIKE ? LIMIT 10")
	pattern := "%" + queryStr + "%"
	rows, err := s.db.Query(query, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.ArtistName, &user.Email, &user.ProfilePicture); err != nil {
			return nil, err
		}
		user.Email = maskEmail(user.Email)
		users = append(users, user)
	}
	return users, rows.Err()
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local, domain := parts[0], parts[1]
	visible := len(local) / 2
	if visible > 3 {
		visible = 3
	}
	if visible < 1 {
		visible = 1
	}
	return local[:visible] + strings.Repeat("*", len(local)-visible) + "@" + domain
}

// GetOrCreateConversation resolves the conversation for the unordered pair,
// creating it if absent. Concurrent first-contact from both sides converges on
// one row through the UNIQUE (user_a, user_b) constraint: the insert is
// conflict-ignored and both callers fetch whichever row won.
func (s *SQLStore) GetOrCreateConversation(userA, userB int) (*models.Conversation, bool, error) {
	if userA > userB {
		userA, userB = userB, userA
	}

	now := time.Now().UTC()
	query := s.rebind("INSERT INTO conversations (user_a, user_b, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (user_a, user_b) DO NOTHING")
	result, err := s.db.Exec(query, userA, userB, now, now)
	if err != nil {
		return nil, false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	query = s.rebind("SELECT " + conversationColumns + " FROM conversations WHERE user_a = ? AND user_b = ?")
	conv, err := s.scanConversation(s.db.QueryRow(query, userA, userB))
	if err != nil {
		return nil, false, err
	}
	return conv, inserted > 0, nil
}

const conversationColumns = "id, user_a, user_b, COALESCE(last_message_id, 0), created_at, updated_at"

func (s *SQLStore) scanConversation(row *sql.Row) (*models.Conversation, error) {
	var conv models.Conversation
	err := row.Scan(&conv.ID, &conv.UserA, &conv.UserB, &conv.LastMessageID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLStore) GetConversation(id int) (*models.Conversation, error) {
	query := s.rebind("SELECT " + conversationColumns + " FROM conversations WHERE id = ?")
	return s.scanConversation(s.db.QueryRow(query, id))
}

func (s *SQLStore) GetUserConversations(userID, page, limit int) ([]models.Conversation, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	query := s.rebind("SELECT COUNT(*) FROM conversations WHERE user_a = ? OR user_b = ?")
	if err := s.db.QueryRow(query, userID, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query = s.rebind("SELECT " + conversationColumns + " FROM conversations WHERE user_a = ? OR user_b = ? ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?")
	rows, err := s.db.Query(query, userID, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserA, &conv.UserB, &conv.LastMessageID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, total, rows.Err()
}

// TouchConversation advances the last-message pointer. The updated_at guard
// keeps concurrent sends from moving the pointer backwards: last write wins by
// timestamp ordering.
func (s *SQLStore) TouchConversation(conversationID, lastMessageID int, at time.Time) error {
	query := s.rebind("UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE id = ? AND updated_at <= ?")
	_, err := s.db.Exec(query, lastMessageID, at, conversationID, at)
	return err
}

func (s *SQLStore) CreateMessage(conversationID, senderID int, content string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		SentAt:         time.Now().UTC(),
		ReadBy:         []int{},
	}
	query := s.rebind("INSERT INTO messages (conversation_id, sender_id, content, sent_at) VALUES (?, ?, ?, ?) RETURNING id")
	if err := s.db.QueryRow(query, conversationID, senderID, content, msg.SentAt).Scan(&msg.ID); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetConversationMessages returns one page of history in ascending order,
// where page 1 is the most recent page.
func (s *SQLStore) GetConversationMessages(conversationID, page, limit int) ([]models.Message, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	var total int
	query := s.rebind("SELECT COUNT(*) FROM messages WHERE conversation_id = ?")
	if err := s.db.QueryRow(query, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query = s.rebind("SELECT id, conversation_id, sender_id, content, sent_at FROM messages WHERE conversation_id = ? ORDER BY sent_at DESC, id DESC LIMIT ? OFFSET ?")
	rows, err := s.db.Query(query, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Oldest first within the page
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	for i := range messages {
		readers, err := s.getMessageReaders(messages[i].ID)
		if err != nil {
			return nil, 0, err
		}
		messages[i].ReadBy = readers
	}
	return messages, total, nil
}

func (s *SQLStore) getMessageReaders(messageID int) ([]int, error) {
	query := s.rebind("SELECT user_id FROM message_reads WHERE message_id = ? ORDER BY user_id")
	rows, err := s.db.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readers := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		readers = append(readers, id)
	}
	return readers, rows.Err()
}

// MarkMessagesRead grows each message's reader set. Re-adding an existing
// reader is a no-op.
func (s *SQLStore) MarkMessagesRead(userID int, messageIDs []int) error {
	query := s.rebind("INSERT INTO message_reads (message_id, user_id) VALUES (?, ?) ON CONFLICT (message_id, user_id) DO NOTHING")
	for _, id := range messageIDs {
		if _, err := s.db.Exec(query, id, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) CreateNotification(n *models.Notification) error {
	n.CreatedAt = time.Now().UTC()
	var relatedModel string
	var relatedID int
	if n.RelatedTo != nil {
		relatedModel = n.RelatedTo.Model
		relatedID = n.RelatedTo.ID
	}
	query := s.rebind("INSERT INTO notifications (recipient_id, type, title, message, related_model, related_id, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id")
	return s.db.QueryRow(query, n.RecipientID, n.Type, n.Title, n.Message, relatedModel, relatedID, n.IsRead, n.CreatedAt).Scan(&n.ID)
}

const notificationColumns = "id, recipient_id, type, title, message, COALESCE(related_model, ''), COALESCE(related_id, 0), is_read, created_at"

func scanNotification(scan func(dest ...any) error) (*models.Notification, error) {
	var n models.Notification
	var relatedModel string
	var relatedID int
	err := scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &relatedModel, &relatedID, &n.IsRead, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if relatedModel != "" {
		n.RelatedTo = &models.RelatedRef{Model: relatedModel, ID: relatedID}
	}
	return &n, nil
}

func (s *SQLStore) retentionCutoff() time.Time {
	return time.Now().UTC().Add(-notificationTTL)
}

func (s *SQLStore) GetNotification(id int) (*models.Notification, error) {
	query := s.rebind("SELECT " + notificationColumns + " FROM notifications WHERE id = ? AND created_at > ?")
	return scanNotification(s.db.QueryRow(query, id, s.retentionCutoff()).Scan)
}

func (s *SQLStore) GetUserNotifications(recipientID, page, limit int, unreadOnly bool) ([]models.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	filter := "WHERE recipient_id = ? AND created_at > ?"
	if unreadOnly {
		filter += " AND is_read = FALSE"
	}
	cutoff := s.retentionCutoff()

	var total int
	query := s.rebind("SELECT COUNT(*) FROM notifications " + filter)
	if err := s.db.QueryRow(query, recipientID, cutoff).Scan(&total); err != nil {
		return nil, 0, err
	}

	query = s.rebind("SELECT " + notificationColumns + " FROM notifications " + filter + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	rows, err := s.db.Query(query, recipientID, cutoff, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, total, rows.Err()
}

// MarkNotificationRead flips the read flag. Flipping an already-read row is a
// no-op, not an error.
func (s *SQLStore) MarkNotificationRead(id int) error {
	query := s.rebind("UPDATE notifications SET is_read = TRUE WHERE id = ?")
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) PurgeExpiredNotifications() (int64, error) {
	query := s.rebind("DELETE FROM notifications WHERE created_at <= ?")
	result, err := s.db.Exec(query, s.retentionCutoff())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
