package client

import (
	"sync"

	"teamhub/models"
)

type EventType string

const (
	EventThreadsLoading EventType = "threads_loading"
	EventThreadsLoaded  EventType = "threads_loaded"
	EventThreadsError   EventType = "threads_error"

	EventMessageSending    EventType = "message_sending"
	EventMessageSent       EventType = "message_sent"
	EventMessageSendFailed EventType = "message_send_failed"

	EventMessagesMarkingRead    EventType = "messages_marking_read"
	EventMessagesMarkedRead     EventType = "messages_marked_read"
	EventMessagesMarkReadFailed EventType = "messages_mark_read_failed"

	EventMessageDeleting     EventType = "message_deleting"
	EventMessageDeleted      EventType = "message_deleted"
	EventMessageDeleteFailed EventType = "message_delete_failed"
)

// Event - событие жизненного цикла клиента. Заполнены только поля,
// относящиеся к типу события.
type Event struct {
	Type       EventType
	Threads    []models.Thread
	Message    *models.Message
	MessageID  int64
	MessageIDs []int64
	Err        error
}

type Observer func(Event)

type observerEntry struct {
	id int64
	fn Observer
}

// EventBus - минимальный синхронный реестр наблюдателей.
// Emit вызывает подписчиков в порядке регистрации, без буферизации
// и без повтора событий поздним подписчикам.
type EventBus struct {
	mu        sync.Mutex
	nextID    int64
	observers []observerEntry
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe регистрирует наблюдателя и возвращает функцию отписки.
func (b *EventBus) Subscribe(fn Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, observerEntry{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.observers {
			if entry.id == id {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// Emit синхронно доставляет событие всем текущим подписчикам.
func (b *EventBus) Emit(event Event) {
	b.mu.Lock()
	observers := make([]observerEntry, len(b.observers))
	copy(observers, b.observers)
	b.mu.Unlock()

	for _, entry := range observers {
		entry.fn(event)
	}
}
