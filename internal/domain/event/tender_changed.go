package event

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is one follower eligible for a change notification.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TenderChanged signals that an existing tender's global update date moved.
// The reconciler emits it after a successful update; the notifier consumes
// it asynchronously. Delivery is best-effort and independent of the
// reconciliation that produced the event.
type TenderChanged struct {
	TenderID         uuid.UUID   `json:"tender_id"`
	ControlNumber    string      `json:"control_number"`
	PurchaseObject   string      `json:"purchase_object"`
	ModalityName     string      `json:"modality_name"`
	GlobalUpdateDate time.Time   `json:"global_update_date"`
	Followers        []Recipient `json:"followers"`
}
