package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"teamhub/models"

	"github.com/stretchr/testify/assert"
)

func sampleThreads(threadID int64, body string) []models.Thread {
	return []models.Thread{
		{
			ThreadID: threadID,
			Members: []models.Participant{
				{ID: 1, Email: "alice@team.io"},
				{ID: 2, Email: "bob@team.io"},
			},
			Messages: []models.Message{
				{ID: threadID, SenderID: 1, RecipientID: 2, Body: body},
			},
			LastMessageAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// collectEvents подписывает наблюдателя, складывающего типы событий.
func collectEvents(bus *EventBus) *[]EventType {
	var mu sync.Mutex
	events := &[]EventType{}
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, e.Type)
	})
	return events
}

func TestLoadThreadsSingleFlight(t *testing.T) {
	var requests int64
	arrived := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) == 1 {
			close(arrived)
		}
		<-release
		json.NewEncoder(w).Encode(sampleThreads(1, "hello"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)

	type result struct {
		threads []models.Thread
		err     error
	}
	results := make(chan result, 2)
	go func() {
		threads, err := c.LoadThreads(context.Background())
		results <- result{threads, err}
	}()

	// Второй вызов стартует, когда первый уже в полете,
	// и присоединяется к нему
	<-arrived
	go func() {
		threads, err := c.LoadThreads(context.Background())
		results <- result{threads, err}
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	r1 := <-results
	r2 := <-results
	assert.NoError(t, r1.err)
	assert.NoError(t, r2.err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))

	// Оба вызова получают один и тот же результат
	assert.Len(t, r1.threads, 1)
	assert.True(t, &r1.threads[0] == &r2.threads[0])
}

func TestRefreshCancelsStaleLoad(t *testing.T) {
	var requests int64
	firstArrived := make(chan struct{})
	holdFirst := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			close(firstArrived)
			select {
			case <-holdFirst:
			case <-r.Context().Done():
				return
			}
			json.NewEncoder(w).Encode(sampleThreads(1, "stale"))
			return
		}
		json.NewEncoder(w).Encode(sampleThreads(2, "fresh"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	events := collectEvents(c.bus)

	var staleThreads []models.Thread
	var staleErr error
	done := make(chan struct{})
	go func() {
		staleThreads, staleErr = c.LoadThreads(context.Background())
		close(done)
	}()

	<-firstArrived
	fresh, err := c.RefreshThreads(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), fresh[0].ThreadID)

	<-done
	close(holdFirst)

	// Отмененная загрузка не ошибка и не перетирает свежий снапшот
	assert.NoError(t, staleErr)
	snapshot := c.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, int64(2), snapshot[0].ThreadID)

	for _, e := range *events {
		assert.NotEqual(t, EventThreadsError, e)
	}
	_ = staleThreads
}

func TestLoadThreadsErrorEmitsEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	events := collectEvents(c.bus)

	_, err := c.LoadThreads(context.Background())
	assert.Error(t, err)

	// Пустое тело - сообщение подставляется из HTTP-статуса
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Internal Server Error", apiErr.Message)

	assert.Equal(t, []EventType{EventThreadsLoading, EventThreadsError}, *events)
}

func TestSendMessageFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var input SendMessageInput
			json.NewDecoder(r.Body).Decode(&input)
			assert.Equal(t, "Hi Bob", input.Body)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Message{ID: 10, SenderID: 1, RecipientID: 2, Body: input.Body})
			return
		}
		json.NewEncoder(w).Encode(sampleThreads(10, "Hi Bob"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	events := collectEvents(c.bus)

	msg, err := c.SendMessage(context.Background(), SendMessageInput{RecipientID: 2, Body: "  Hi Bob  "})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), msg.ID)

	// После успеха - полная ресинхронизация
	assert.Equal(t, []EventType{
		EventMessageSending,
		EventMessageSent,
		EventThreadsLoading,
		EventThreadsLoaded,
	}, *events)
	assert.Len(t, c.Snapshot(), 1)
}

func TestSendMessageServerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "recipient is not in your team"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	events := collectEvents(c.bus)

	_, err := c.SendMessage(context.Background(), SendMessageInput{RecipientID: 99, Body: "Hi"})
	assert.Error(t, err)
	assert.Equal(t, "recipient is not in your team", err.Error())
	assert.Equal(t, []EventType{EventMessageSending, EventMessageSendFailed}, *events)
}

func TestSendMessageClientValidation(t *testing.T) {
	c := NewClient("http://unused", "", nil)
	events := collectEvents(c.bus)

	_, err := c.SendMessage(context.Background(), SendMessageInput{RecipientID: 2, Body: "   "})
	assert.Error(t, err)
	// Невалидный ввод отбрасывается до сетевого вызова
	assert.Equal(t, []EventType{EventMessageSendFailed}, *events)
}

func TestMarkMessagesAsReadEmptyIsNoop(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	updated, err := c.MarkMessagesAsRead(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	assert.Equal(t, int64(0), atomic.LoadInt64(&requests))
}

func TestDeleteMessageFetchesCSRFToken(t *testing.T) {
	const issued = "token-123"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/csrf-token":
			json.NewEncoder(w).Encode(map[string]string{"token": issued})
		case r.Method == http.MethodDelete:
			assert.Equal(t, issued, r.Header.Get("X-CSRF-Token"))
			json.NewEncoder(w).Encode(map[string]string{})
		default:
			json.NewEncoder(w).Encode([]models.Thread{})
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "", nil)
	events := collectEvents(c.bus)

	err := c.DeleteMessage(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, []EventType{
		EventMessageDeleting,
		EventMessageDeleted,
		EventThreadsLoading,
		EventThreadsLoaded,
	}, *events)
}

func TestAuthorizationHeaderIsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]models.Thread{})
	}))
	defer server.Close()

	c := NewClient(server.URL, "session-token", nil)
	_, err := c.LoadThreads(context.Background())
	assert.NoError(t, err)
}
