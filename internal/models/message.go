package models

import "time"

// Message kinds persisted in the message log.
const (
	KindGlobal  = "global"
	KindPrivate = "private"
)

// ChatMessage is one row of the append-only message log. Receiver is empty
// for global messages.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sender    string    `gorm:"index;not null" json:"sender"`
	Receiver  string    `gorm:"index" json:"receiver"`
	Content   string    `gorm:"not null" json:"content"`
	Kind      string    `gorm:"not null" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}
