package services

import "errors"

// Коды доменных ошибок мессенджера. Строки стабильны: по ним
// API-слой выбирает HTTP-статус, а клиенты - текст для пользователя.
const (
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeRecipientNotInTeam = "recipient_not_in_team"
	ErrCodeParentNotFound     = "parent_message_not_found"
	ErrCodeNotParticipant     = "not_participant"
	ErrCodeSelfMessage        = "self_message_not_allowed"
	ErrCodeMessageNotFound    = "message_not_found"
	ErrCodeNotMessageOwner    = "not_message_owner"
)

// MessagingError - единственный тип ошибки, который бросает MessagingService.
type MessagingError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *MessagingError) Error() string {
	return e.Message
}

func NewMessagingError(code, message string) *MessagingError {
	return &MessagingError{Code: code, Message: message}
}

// MessagingCode возвращает код доменной ошибки или пустую строку.
func MessagingCode(err error) string {
	var me *MessagingError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}
