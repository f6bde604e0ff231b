package models

import (
	"strings"
	"time"
)

// Chat is a conversation between exactly two users. ID is ChatID(a, b).
type Chat struct {
	ID           string  `gorm:"primaryKey;size:140" json:"id"`
	ParticipantA string  `gorm:"size:64;not null;index" json:"participant_a"`
	ParticipantB string  `gorm:"size:64;not null;index" json:"participant_b"`
	MatchID      *string `gorm:"size:36" json:"match_id,omitempty"`

	LastMessageText     string     `json:"last_message_text,omitempty"`
	LastMessageSenderID string     `gorm:"size:64" json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChatID derives the deterministic key for a pair: min_max.
func ChatID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b
}

func (c *Chat) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Partner returns the other participant.
func (c *Chat) Partner(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}
