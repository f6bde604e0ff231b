package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus defines the state of a connection request.
type RequestStatus string

const (
	// StatusPending means the receiver has not answered yet.
	StatusPending RequestStatus = "pending"

	// StatusAccepted means the receiver accepted and a chat exists for the pair.
	StatusAccepted RequestStatus = "accepted"

	// StatusDeclined is terminal.
	StatusDeclined RequestStatus = "declined"
)

// ConnectionRequest is a one-directional intent to connect.
// At most one exists per ordered (RequesterID, ReceiverID) pair, whatever its status.
type ConnectionRequest struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	RequesterID string        `gorm:"size:64;not null;uniqueIndex:idx_request_pair,priority:1" json:"requester_id"`
	ReceiverID  string        `gorm:"size:64;not null;uniqueIndex:idx_request_pair,priority:2;index" json:"receiver_id"`
	Status      RequestStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
