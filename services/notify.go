package services

import (
	"encoding/json"
	"log"

	"teamhub/models"
)

const NOTIFY_BODY_PREVIEW_LENGTH = 100

// WsNotification - конверт push-уведомления для открытых сокетов.
type WsNotification struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type newMessagePayload struct {
	MessageID int64  `json:"message_id"`
	ThreadID  int64  `json:"thread_id"`
	SenderID  int64  `json:"sender_id"`
	Preview   string `json:"preview"`
}

// NotifyNewMessage пушит получателю событие о новом сообщении.
// Доставка best-effort: если сокетов нет, клиент увидит сообщение
// при следующей загрузке тредов.
func NotifyNewMessage(msg *models.Message) {
	preview := msg.Body
	if len(preview) > NOTIFY_BODY_PREVIEW_LENGTH {
		preview = preview[:NOTIFY_BODY_PREVIEW_LENGTH] + "..."
	}
	notify := WsNotification{
		Type: "new_message",
		Payload: newMessagePayload{
			MessageID: msg.ID,
			ThreadID:  msg.ThreadID(),
			SenderID:  msg.SenderID,
			Preview:   preview,
		},
	}
	jsonData, err := json.Marshal(notify)
	if err != nil {
		log.Printf("Failed to marshal ws notification: %v", err)
		return
	}
	GlobalWSConnManager.Send(msg.RecipientID, jsonData)
}
