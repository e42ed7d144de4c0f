package store

import (
	"time"

	"github.com/forwardsflow/be-cc-workflow/internal/errors"
)

// NotificationType names the workflow milestone that produced a notification.
type NotificationType string

const (
	NotificationCapitalCallPublished NotificationType = "capital_call_published"
	NotificationInvestorResponded    NotificationType = "investor_responded"
	NotificationResponseAccepted     NotificationType = "response_accepted"
	NotificationKYCReviewRequired    NotificationType = "kyc_review_required"
	NotificationKYCApproved          NotificationType = "kyc_approved"
	NotificationSettlementReceived   NotificationType = "settlement_received"
	NotificationTransactionCompleted NotificationType = "transaction_completed"
	NotificationCallCancelled        NotificationType = "capital_call_cancelled"
	NotificationCallExpired          NotificationType = "capital_call_expired"
)

// Notification is a workflow-generated message targeted at a role or a
// specific user. An empty RecipientID means broadcast to every holder of
// RecipientRole; resolving the broadcast to concrete users is left to the
// consuming query layer.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	TxnRef        string           `json:"txn_ref"`
	RecipientRole string           `json:"recipient_role"`
	RecipientID   string           `json:"recipient_id,omitempty"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Data          map[string]any   `json:"data,omitempty"`
	Read          bool             `json:"read"`
	CreatedAt     time.Time        `json:"created_at"`
}

// AddNotification appends a notification to the global list.
func (s *Store) AddNotification(n *Notification) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	s.notifications = append(s.notifications, n)
}

// ListNotifications returns notifications visible to a recipient: those
// addressed to them directly, plus role broadcasts for their role. Empty
// filter arguments match everything on that axis.
func (s *Store) ListNotifications(role, recipientID string, unreadOnly bool) []*Notification {
	s.notifMu.RLock()
	defer s.notifMu.RUnlock()

	out := make([]*Notification, 0)
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		if role != "" && n.RecipientRole != role {
			continue
		}
		if recipientID != "" && n.RecipientID != "" && n.RecipientID != recipientID {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	return out
}

// ListNotificationsByRef returns every notification tied to a transaction ref.
func (s *Store) ListNotificationsByRef(txnRef string) []*Notification {
	s.notifMu.RLock()
	defer s.notifMu.RUnlock()

	out := make([]*Notification, 0)
	for _, n := range s.notifications {
		if n.TxnRef == txnRef {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

// MarkNotificationRead flips a notification's read flag. The only permitted
// mutation of a stored notification.
func (s *Store) MarkNotificationRead(id string) error {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return errors.NotFound("notification", id)
}
