package models

import "time"

// Message is an append-only entry of a chat, ordered by (CreatedAt, ID).
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"size:140;not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	SenderID  string    `gorm:"size:64;not null" json:"sender_id"`
	Text      string    `gorm:"not null" json:"text"`
	CreatedAt time.Time `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}
