package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/beatline/beatline/internal/email"
	"github.com/beatline/beatline/internal/models"
	"github.com/beatline/beatline/internal/store"
	"github.com/beatline/beatline/internal/ws"
)

var (
	ErrInvalidType = errors.New("invalid notification type")
	ErrForbidden   = errors.New("notification belongs to another user")
)

// Dispatcher persists notifications and pushes them to connected recipients.
// Persistence always comes first: a push is only ever attempted for a record
// the store has already accepted, so delivery can always be retried by
// re-reading the store.
type Dispatcher struct {
	store    store.Store
	registry *ws.Registry
	emailer  *email.Sender
}

// NewDispatcher constructs a Dispatcher. emailer may be nil to disable the
// offline digest.
func NewDispatcher(st store.Store, registry *ws.Registry, emailer *email.Sender) *Dispatcher {
	return &Dispatcher{store: st, registry: registry, emailer: emailer}
}

// Create persists the notification, then best-effort pushes it to the
// recipient's live sessions. Push failure never rolls back persistence; a
// store failure aborts the call before any push is attempted.
func (d *Dispatcher) Create(recipientID int, typ, title, message string, relatedTo *models.RelatedRef) (*models.Notification, error) {
	if !models.ValidNotificationType(typ) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	n := &models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		RelatedTo:   relatedTo,
	}
	if err := d.store.CreateNotification(n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	payload, err := json.Marshal(models.Event{Type: models.EventNotification, Data: n})
	if err != nil {
		log.Printf("Error encoding notification %d: %v", n.ID, err)
		return n, nil
	}
	if d.registry.Send(recipientID, payload) == 0 {
		d.sendDigest(n)
	}
	return n, nil
}

// MarkAsRead flips the read flag. Already-read is a no-op; a notification
// owned by someone else is an error rather than a silent no-op.
func (d *Dispatcher) MarkAsRead(userID, notificationID int) error {
	n, err := d.store.GetNotification(notificationID)
	if err != nil {
		return err
	}
	if n.RecipientID != userID {
		return ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	return d.store.MarkNotificationRead(notificationID)
}

// List returns one page of the recipient's notifications, newest first.
func (d *Dispatcher) List(recipientID, page, limit int, unreadOnly bool) ([]models.Notification, int, error) {
	return d.store.GetUserNotifications(recipientID, page, limit, unreadOnly)
}

// sendDigest emails an unreachable recipient about the notification. Strictly
// best-effort: the record is already durable.
func (d *Dispatcher) sendDigest(n *models.Notification) {
	if d.emailer == nil {
		return
	}
	user, err := d.store.GetUserByID(n.RecipientID)
	if err != nil {
		log.Printf("Error looking up digest recipient %d: %v", n.RecipientID, err)
		return
	}
	go func() {
		if err := d.emailer.SendNotificationEmail(user.Email, user.DisplayName(), n); err != nil {
			log.Printf("Error sending digest to user %d: %v", n.RecipientID, err)
		}
	}()
}
