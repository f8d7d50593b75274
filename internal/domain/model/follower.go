package model

import (
	"time"

	"github.com/google/uuid"
)

// TenderFollower links a user to a tender they track. Only followers with
// Notify set receive change notifications.
type TenderFollower struct {
	ID            uuid.UUID
	ControlNumber string
	Name          string
	Email         string
	Notify        bool
	CreatedAt     time.Time
}
