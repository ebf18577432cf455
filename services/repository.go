package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamhub/db"
	"teamhub/models"

	"gorm.io/gorm"
)

// MessageRepository - контракт хранилища плоских строк сообщений.
// MessagingService работает только через него, поэтому бизнес-логика
// тестируется без базы.
type MessageRepository interface {
	// ListByParticipant возвращает все сообщения, где пользователь
	// отправитель или получатель, по возрастанию created_at.
	ListByParticipant(ctx context.Context, userID int64) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	// FindByID возвращает (nil, nil), если сообщение не найдено.
	FindByID(ctx context.Context, id int64) (*models.Message, error)
	// MarkMessagesAsRead помечает прочитанными только строки, адресованные
	// recipientID и еще не прочитанные. Возвращает число обновленных строк.
	MarkMessagesAsRead(ctx context.Context, ids []int64, recipientID int64) (int64, error)
	// DeleteMessage удаляет сообщение, только если senderID - его автор.
	DeleteMessage(ctx context.Context, id, senderID int64) error
}

type gormMessageRepository struct{}

func NewGormMessageRepository() MessageRepository {
	return &gormMessageRepository{}
}

func (r *gormMessageRepository) ListByParticipant(ctx context.Context, userID int64) ([]models.Message, error) {
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for i := range messages {
		messages[i].Sender.ID = messages[i].SenderID
		messages[i].Recipient.ID = messages[i].RecipientID
	}
	return messages, nil
}

func (r *gormMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	// Денормализуем участников в строку сообщения, чтобы листинг
	// тредов не делал join на users.
	if msg.Sender.Email == "" || msg.Recipient.Email == "" {
		var users []models.User
		err := db.GetReadOnlyDB(ctx).
			Where("id IN ?", []int64{msg.SenderID, msg.RecipientID}).
			Find(&users).Error
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		for i := range users {
			snapshot := users[i].Snapshot()
			if users[i].ID == msg.SenderID {
				msg.Sender = snapshot
			}
			if users[i].ID == msg.RecipientID {
				msg.Recipient = snapshot
			}
		}
	}

	if err := db.GetWriteDB(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.Sender.ID = msg.SenderID
	msg.Recipient.ID = msg.RecipientID
	return nil
}

func (r *gormMessageRepository) FindByID(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	err := db.GetReadOnlyDB(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message %d: %w", id, err)
	}
	msg.Sender.ID = msg.SenderID
	msg.Recipient.ID = msg.RecipientID
	return &msg, nil
}

func (r *gormMessageRepository) MarkMessagesAsRead(ctx context.Context, ids []int64, recipientID int64) (int64, error) {
	// Граница авторизации: WHERE не дает пометить чужие сообщения.
	result := db.GetWriteDB(ctx).
		Model(&models.Message{}).
		Where("id IN ? AND recipient_id = ? AND read_at IS NULL", ids, recipientID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormMessageRepository) DeleteMessage(ctx context.Context, id, senderID int64) error {
	result := db.GetWriteDB(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&models.Message{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete message %d: %w", id, result.Error)
	}
	return nil
}
