package models

import (
	"time"
)

// Participant - денормализованный снимок участника переписки.
// Хранится прямо в строке сообщения, чтобы не делать join при чтении.
type Participant struct {
	ID    int64   `gorm:"-" json:"id"`
	Email string  `gorm:"size:255" json:"email"`
	Name  *string `gorm:"size:255" json:"name"`
}

// Message представляет одно сообщение в командной переписке.
// ParentMessageID всегда указывает на КОРЕНЬ треда (см. MessagingService),
// nil означает начало нового треда.
type Message struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID        int64       `gorm:"column:sender_id;index" json:"sender_id"`
	RecipientID     int64       `gorm:"column:recipient_id;index" json:"recipient_id"`
	Body            string      `gorm:"type:text;not null" json:"body"`
	ParentMessageID *int64      `gorm:"column:parent_message_id;index" json:"parent_message_id"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	ReadAt          *time.Time  `gorm:"column:read_at" json:"read_at"`
	Sender          Participant `gorm:"embedded;embeddedPrefix:sender_" json:"sender"`
	Recipient       Participant `gorm:"embedded;embeddedPrefix:recipient_" json:"recipient"`
}

func (Message) TableName() string {
	return "messages"
}

// ThreadID возвращает идентификатор треда, к которому относится сообщение.
func (m *Message) ThreadID() int64 {
	if m.ParentMessageID != nil {
		return *m.ParentMessageID
	}
	return m.ID
}

// Thread - производная проекция над плоскими сообщениями.
// Никогда не сохраняется в БД, пересчитывается на каждый запрос списка.
type Thread struct {
	ThreadID      int64         `json:"thread_id"`
	Members       []Participant `json:"members"`
	Messages      []Message     `json:"messages"`
	UnreadCount   int           `json:"unread_count"`
	LastMessageAt time.Time     `json:"last_message_at"`
}
