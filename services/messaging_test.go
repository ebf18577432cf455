package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"teamhub/models"

	"github.com/stretchr/testify/assert"
)

// fakeMessageRepo - хранилище в памяти для тестов бизнес-логики.
type fakeMessageRepo struct {
	messages  []models.Message
	nextID    int64
	baseTime  time.Time
	markCalls int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{baseTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *fakeMessageRepo) ListByParticipant(ctx context.Context, userID int64) ([]models.Message, error) {
	var out []models.Message
	for _, m := range r.messages {
		if m.SenderID == userID || m.RecipientID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = r.baseTime.Add(time.Duration(r.nextID) * time.Minute)
	msg.Sender.ID = msg.SenderID
	msg.Recipient.ID = msg.RecipientID
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) FindByID(ctx context.Context, id int64) (*models.Message, error) {
	for i := range r.messages {
		if r.messages[i].ID == id {
			msg := r.messages[i]
			return &msg, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) MarkMessagesAsRead(ctx context.Context, ids []int64, recipientID int64) (int64, error) {
	r.markCalls++
	now := time.Now()
	var updated int64
	for i := range r.messages {
		if r.messages[i].ReadAt != nil || r.messages[i].RecipientID != recipientID {
			continue
		}
		for _, id := range ids {
			if r.messages[i].ID == id {
				r.messages[i].ReadAt = &now
				updated++
				break
			}
		}
	}
	return updated, nil
}

func (r *fakeMessageRepo) DeleteMessage(ctx context.Context, id, senderID int64) error {
	for i := range r.messages {
		if r.messages[i].ID == id && r.messages[i].SenderID == senderID {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeTreeService отдает заранее заданные окружения.
type fakeTreeService struct {
	trees map[int64]*models.TwoLevelTree
}

func (s *fakeTreeService) FetchTwoLevelTree(ctx context.Context, userID int64) (*models.TwoLevelTree, error) {
	if tree, ok := s.trees[userID]; ok {
		return tree, nil
	}
	return &models.TwoLevelTree{Level1: []models.Participant{}, Level2: []models.Participant{}}, nil
}

func participant(id int64, email string) models.Participant {
	return models.Participant{ID: id, Email: email}
}

// newTestService: пользователь 1 видит 2 на первом уровне и 3 на втором.
func newTestService() (*MessagingService, *fakeMessageRepo) {
	repo := newFakeMessageRepo()
	tree := &fakeTreeService{trees: map[int64]*models.TwoLevelTree{
		1: {
			Level1: []models.Participant{participant(2, "bob@team.io")},
			Level2: []models.Participant{participant(3, "carol@team.io")},
		},
		2: {
			Level1: []models.Participant{participant(1, "alice@team.io")},
			Level2: []models.Participant{},
		},
	}}
	return NewMessagingService(repo, tree), repo
}

func TestSendMessageFirstContact(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Уровень 1
	msg, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})
	assert.NoError(t, err)
	assert.Nil(t, msg.ParentMessageID)
	assert.Equal(t, int64(2), msg.RecipientID)

	// Уровень 2 тоже разрешен
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 3, Body: "Hello"})
	assert.NoError(t, err)

	// Вне окружения - отказ
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 99, Body: "Hey"})
	assert.Error(t, err)
	assert.Equal(t, ErrCodeRecipientNotInTeam, MessagingCode(err))
}

func TestThreadRootingIsTransitive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "A"})
	assert.NoError(t, err)

	m2, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 2, Body: "B", ParentMessageID: &m1.ID})
	assert.NoError(t, err)

	// Ответ на ответ все равно приклеивается к корню
	m3, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, Body: "C", ParentMessageID: &m2.ID})
	assert.NoError(t, err)

	assert.Equal(t, m1.ID, m1.ThreadID())
	assert.Equal(t, m1.ID, m2.ThreadID())
	assert.Equal(t, m1.ID, m3.ThreadID())
	assert.Equal(t, m1.ID, *m3.ParentMessageID)
}

func TestReplyResolvesOtherParty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})

	// Отвечает получатель - адресат вычисляется, RecipientID из входа игнорируется
	m2, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 2, RecipientID: 77, Body: "Hello", ParentMessageID: &m1.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), m2.RecipientID)

	// Отвечает автор - адресат снова вторая сторона
	m3, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, Body: "Again", ParentMessageID: &m1.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), m3.RecipientID)
}

func TestReplyErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	missing := int64(404)
	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, Body: "X", ParentMessageID: &missing})
	assert.Equal(t, ErrCodeParentNotFound, MessagingCode(err))

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})

	// Посторонний не может отвечать в чужой тред
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 3, Body: "Intrude", ParentMessageID: &m1.ID})
	assert.Equal(t, ErrCodeNotParticipant, MessagingCode(err))
}

func TestSelfMessageRejectedOnlyForNewThreads(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 1, Body: "Note to self"})
	assert.Equal(t, ErrCodeSelfMessage, MessagingCode(err))

	// Ответ в существующий тред проходит даже при совпадающем RecipientID на входе
	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 1, Body: "Follow-up", ParentMessageID: &m1.ID})
	assert.NoError(t, err)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: ""})
	assert.Equal(t, ErrCodeInvalidMessage, MessagingCode(err))

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: strings.Repeat("a", 2001)})
	assert.Equal(t, ErrCodeInvalidMessage, MessagingCode(err))

	// Ровно 2000 символов - верхняя граница включительно
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: strings.Repeat("a", 2000)})
	assert.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 0, Body: "Hi"})
	assert.Equal(t, ErrCodeInvalidMessage, MessagingCode(err))
}

func TestListThreadsBasicExchange(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})
	m2, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 2, Body: "Hello", ParentMessageID: &m1.ID})

	threads, err := svc.ListThreadsForUser(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, threads, 1)

	thread := threads[0]
	assert.Equal(t, m1.ID, thread.ThreadID)
	assert.Len(t, thread.Messages, 2)
	assert.Equal(t, m1.ID, thread.Messages[0].ID)
	assert.Equal(t, m2.ID, thread.Messages[1].ID)
	assert.Len(t, thread.Members, 2)
	assert.Equal(t, int64(1), thread.Members[0].ID)
	assert.Equal(t, int64(2), thread.Members[1].ID)
	assert.Equal(t, m2.CreatedAt, thread.LastMessageAt)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "One"})
	m2, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, Body: "Two", ParentMessageID: &m1.ID})
	svc.SendMessage(ctx, SendMessageInput{SenderID: 2, Body: "Reply", ParentMessageID: &m1.ID})

	// У получателя два непрочитанных, у отправителя одно (ответ)
	threads, _ := svc.ListThreadsForUser(ctx, 2)
	assert.Equal(t, 2, threads[0].UnreadCount)
	threads, _ = svc.ListThreadsForUser(ctx, 1)
	assert.Equal(t, 1, threads[0].UnreadCount)

	updated, err := svc.MarkMessagesAsRead(ctx, 2, []int64{m1.ID, m2.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	threads, _ = svc.ListThreadsForUser(ctx, 2)
	assert.Equal(t, 0, threads[0].UnreadCount)
}

func TestMarkReadOnlyTouchesOwnInbox(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})

	// Отправитель не может пометить прочитанным сообщение из чужого инбокса
	updated, err := svc.MarkMessagesAsRead(ctx, 1, []int64{m1.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}

func TestMarkReadEmptyListSkipsRepository(t *testing.T) {
	svc, repo := newTestService()

	updated, err := svc.MarkMessagesAsRead(context.Background(), 2, []int64{})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	assert.Equal(t, 0, repo.markCalls)
}

func TestDeleteMessageOwnership(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "Hi"})

	err := svc.DeleteMessage(ctx, m1.ID, 2)
	assert.Equal(t, ErrCodeNotMessageOwner, MessagingCode(err))

	err = svc.DeleteMessage(ctx, m1.ID, 1)
	assert.NoError(t, err)
	assert.Empty(t, repo.messages)

	err = svc.DeleteMessage(ctx, m1.ID, 1)
	assert.Equal(t, ErrCodeMessageNotFound, MessagingCode(err))
}

func TestThreadsOrderedByLastActivity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 2, Body: "First thread"})
	svc.SendMessage(ctx, SendMessageInput{SenderID: 1, RecipientID: 3, Body: "Second thread"})

	threads, _ := svc.ListThreadsForUser(ctx, 1)
	assert.Len(t, threads, 2)
	assert.NotEqual(t, m1.ID, threads[0].ThreadID)

	// Ответ в первый тред поднимает его наверх
	svc.SendMessage(ctx, SendMessageInput{SenderID: 2, Body: "Bump", ParentMessageID: &m1.ID})
	threads, _ = svc.ListThreadsForUser(ctx, 1)
	assert.Equal(t, m1.ID, threads[0].ThreadID)
}
