package services

import (
	"context"
	"sort"
	"unicode/utf8"

	"teamhub/models"
)

const MAX_MESSAGE_BODY_LENGTH = 2000

// SendMessageInput - входные данные отправки сообщения.
// Для ответа (ParentMessageID != nil) RecipientID игнорируется:
// фактический получатель вычисляется как вторая сторона родителя.
type SendMessageInput struct {
	SenderID        int64  `json:"-"`
	RecipientID     int64  `json:"recipient_id"`
	Body            string `json:"body" binding:"required"`
	ParentMessageID *int64 `json:"parent_message_id"`
}

// MessagingService - серверная бизнес-логика командной переписки:
// сборка тредов из плоских строк, валидация отправки, отметка о
// прочтении и авторизация удаления.
type MessagingService struct {
	repo MessageRepository
	tree TreeService
}

func NewMessagingService(repo MessageRepository, tree TreeService) *MessagingService {
	return &MessagingService{repo: repo, tree: tree}
}

// MessagingInstance - глобальный экземпляр для API-слоя.
var MessagingInstance *MessagingService

func InitMessagingService() {
	MessagingInstance = NewMessagingService(NewGormMessageRepository(), NewGormTreeService())
}

// ListThreadsForUser собирает треды пользователя из плоских сообщений.
// Тред - чистая проекция: ключ группировки parent_message_id ?? id,
// ничего не сохраняется и не кешируется.
func (s *MessagingService) ListThreadsForUser(ctx context.Context, userID int64) ([]models.Thread, error) {
	messages, err := s.repo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	byRoot := make(map[int64]*models.Thread)
	order := make([]int64, 0)

	for i := range messages {
		msg := messages[i]
		root := msg.ThreadID()

		thread, ok := byRoot[root]
		if !ok {
			thread = &models.Thread{ThreadID: root, Members: []models.Participant{}}
			byRoot[root] = thread
			order = append(order, root)
		}

		sender := msg.Sender
		sender.ID = msg.SenderID
		recipient := msg.Recipient
		recipient.ID = msg.RecipientID
		addMember(thread, sender)
		addMember(thread, recipient)

		thread.Messages = append(thread.Messages, msg)
		if msg.RecipientID == userID && msg.ReadAt == nil {
			thread.UnreadCount++
		}
		if msg.CreatedAt.After(thread.LastMessageAt) {
			thread.LastMessageAt = msg.CreatedAt
		}
	}

	threads := make([]models.Thread, 0, len(byRoot))
	for _, root := range order {
		thread := byRoot[root]
		sort.SliceStable(thread.Messages, func(i, j int) bool {
			a, b := thread.Messages[i], thread.Messages[j]
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
		threads = append(threads, *thread)
	}

	// Самый активный тред первым
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastMessageAt.After(threads[j].LastMessageAt)
	})

	return threads, nil
}

// addMember добавляет участника в тред без дублей, сохраняя порядок
// первого появления.
func addMember(thread *models.Thread, p models.Participant) {
	for _, m := range thread.Members {
		if m.ID == p.ID {
			return
		}
	}
	thread.Members = append(thread.Members, p)
}

// SendMessage валидирует и сохраняет сообщение.
// Новый тред разрешен только адресатам из двухуровневого окружения
// отправителя; ответ - любому участнику родительского сообщения,
// дерево на ответах не перепроверяется.
func (s *MessagingService) SendMessage(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	if err := validateSendInput(input); err != nil {
		return nil, err
	}

	msg := models.Message{
		SenderID:    input.SenderID,
		RecipientID: input.RecipientID,
		Body:        input.Body,
	}

	if input.ParentMessageID != nil {
		parent, err := s.repo.FindByID(ctx, *input.ParentMessageID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, NewMessagingError(ErrCodeParentNotFound, "parent message not found")
		}
		if parent.SenderID != input.SenderID && parent.RecipientID != input.SenderID {
			return nil, NewMessagingError(ErrCodeNotParticipant, "sender is not a participant of the thread")
		}

		// Получатель - вторая сторона родителя, а корень треда
		// переносится с родителя. Так цепочка любой глубины остается
		// приклеенной к исходному сообщению.
		if parent.SenderID == input.SenderID {
			msg.RecipientID = parent.RecipientID
		} else {
			msg.RecipientID = parent.SenderID
		}
		root := parent.ThreadID()
		msg.ParentMessageID = &root
	} else {
		tree, err := s.tree.FetchTwoLevelTree(ctx, input.SenderID)
		if err != nil {
			return nil, err
		}
		if !tree.Contains(input.RecipientID) {
			return nil, NewMessagingError(ErrCodeRecipientNotInTeam, "recipient is not in your team")
		}
	}

	if err := s.repo.CreateMessage(ctx, &msg); err != nil {
		return nil, err
	}

	NotifyNewMessage(&msg)
	PublishMessagingEvent("message.sent", MessagingEvent{
		MessageID:   msg.ID,
		ThreadID:    msg.ThreadID(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
	})

	return &msg, nil
}

// MarkMessagesAsRead помечает сообщения прочитанными.
// Пустой список - no-op без похода в хранилище.
func (s *MessagingService) MarkMessagesAsRead(ctx context.Context, userID int64, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	updated, err := s.repo.MarkMessagesAsRead(ctx, messageIDs, userID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		PublishMessagingEvent("messages.read", MessagingEvent{
			RecipientID: userID,
			MessageIDs:  messageIDs,
		})
	}
	return updated, nil
}

// DeleteMessage удаляет сообщение. Удалять может только автор,
// удаление жесткое и безвозвратное.
func (s *MessagingService) DeleteMessage(ctx context.Context, messageID, userID int64) error {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return NewMessagingError(ErrCodeMessageNotFound, "message not found")
	}
	if msg.SenderID != userID {
		return NewMessagingError(ErrCodeNotMessageOwner, "only the sender can delete a message")
	}

	if err := s.repo.DeleteMessage(ctx, messageID, userID); err != nil {
		return err
	}

	PublishMessagingEvent("message.deleted", MessagingEvent{
		MessageID:   messageID,
		ThreadID:    msg.ThreadID(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
	})
	return nil
}

func validateSendInput(input SendMessageInput) error {
	if input.SenderID <= 0 {
		return NewMessagingError(ErrCodeInvalidMessage, "invalid sender id")
	}
	bodyLen := utf8.RuneCountInString(input.Body)
	if bodyLen == 0 {
		return NewMessagingError(ErrCodeInvalidMessage, "message body must not be empty")
	}
	if bodyLen > MAX_MESSAGE_BODY_LENGTH {
		return NewMessagingError(ErrCodeInvalidMessage, "message body is too long")
	}
	if input.ParentMessageID == nil {
		if input.RecipientID <= 0 {
			return NewMessagingError(ErrCodeInvalidMessage, "invalid recipient id")
		}
		// Новый тред с самим собой бессмысленен; ответы не ограничиваем,
		// т.к. получатель ответа вычисляется из родителя.
		if input.RecipientID == input.SenderID {
			return NewMessagingError(ErrCodeSelfMessage, "cannot start a thread with yourself")
		}
	}
	return nil
}
