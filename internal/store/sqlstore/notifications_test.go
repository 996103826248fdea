package sqlstore

import (
	"errors"
	"testing"
	"time"

	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/store"
)

func TestCreateNotification(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	ids := createTestUsers(t, "alice")

	n := &models.Notification{
		RecipientID: ids[0],
		Type:        models.NotificationSale,
		Title:       "Beat sold",
		Message:     "Your beat 'Midnight' was purchased",
		RelatedTo:   &models.RelatedRef{Model: "Transaction", ID: 42},
	}
	if err := testStore.CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if n.ID == 0 {
		t.Error("Expected non-zero notification ID")
	}

	got, err := testStore.GetNotification(n.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if got.Type != models.NotificationSale || got.Title != "Beat sold" {
		t.Errorf("Unexpected notification: %+v", got)
	}
	if got.RelatedTo == nil || got.RelatedTo.Model != "Transaction" || got.RelatedTo.ID != 42 {
		t.Errorf("Unexpected related ref: %+v", got.RelatedTo)
	}
	if got.IsRead {
		t.Error("New notification should be unread")
	}
}

func TestGetUserNotifications(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	ids := createTestUsers(t, "alice", "bob")

	first := &models.Notification{RecipientID: ids[0], Type: models.NotificationFollow, Title: "New follower", Message: "bob follows you"}
	second := &models.Notification{RecipientID: ids[0], Type: models.NotificationLike, Title: "New like", Message: "bob liked your beat"}
	other := &models.Notification{RecipientID: ids[1], Type: models.NotificationSystem, Title: "Maintenance", Message: "tonight"}
	for _, n := range []*models.Notification{first, second, other} {
		if err := testStore.CreateNotification(n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	notifications, total, err := testStore.GetUserNotifications(ids[0], 1, 20, false)
	if err != nil {
		t.Fatalf("GetUserNotifications failed: %v", err)
	}
	if total != 2 || len(notifications) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(notifications))
	}

	// Unread-only filter
	if err := testStore.MarkNotificationRead(first.ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	notifications, total, err = testStore.GetUserNotifications(ids[0], 1, 20, true)
	if err != nil {
		t.Fatalf("GetUserNotifications failed: %v", err)
	}
	if total != 1 || len(notifications) != 1 {
		t.Fatalf("Expected 1 unread notification, got %d", len(notifications))
	}
	if notifications[0].ID != second.ID {
		t.Errorf("Expected notification %d, got %d", second.ID, notifications[0].ID)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	ids := createTestUsers(t, "alice")
	n := &models.Notification{RecipientID: ids[0], Type: models.NotificationMessage, Title: "New message", Message: "hello"}
	testStore.CreateNotification(n)

	if err := testStore.MarkNotificationRead(n.ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	// Idempotent
	if err := testStore.MarkNotificationRead(n.ID); err != nil {
		t.Fatalf("Second MarkNotificationRead failed: %v", err)
	}
	got, _ := testStore.GetNotification(n.ID)
	if !got.IsRead {
		t.Error("Expected notification to be read")
	}

	if err := testStore.MarkNotificationRead(99999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNotificationRetention(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	ids := createTestUsers(t, "alice")

	fresh := &models.Notification{RecipientID: ids[0], Type: models.NotificationSystem, Title: "Fresh", Message: "new"}
	testStore.CreateNotification(fresh)

	// Plant a row past the retention window
	stale := time.Now().UTC().Add(-31 * 24 * time.Hour)
	var staleID int
	err := testStore.db.QueryRow(
		testStore.rebind("INSERT INTO notifications (recipient_id, type, title, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id"),
		ids[0], models.NotificationSystem, "Stale", "old", false, stale,
	).Scan(&staleID)
	if err != nil {
		t.Fatalf("Failed to insert stale notification: %v", err)
	}

	// Expired rows are invisible to reads
	if _, err := testStore.GetNotification(staleID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for expired notification, got %v", err)
	}
	notifications, total, _ := testStore.GetUserNotifications(ids[0], 1, 20, false)
	if total != 1 || len(notifications) != 1 || notifications[0].Title != "Fresh" {
		t.Errorf("Expected only the fresh notification, got %+v", notifications)
	}

	purged, err := testStore.PurgeExpiredNotifications()
	if err != nil {
		t.Fatalf("PurgeExpiredNotifications failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged row, got %d", purged)
	}
}
