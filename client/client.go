package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"teamhub/models"
)

const maxMessageBodyLength = 2000

// APIError - ошибка HTTP-уровня. Message берется из поля message
// тела ответа, при нечитаемом теле - из статуса ответа.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// SendMessageInput - входные данные отправки с клиента.
type SendMessageInput struct {
	RecipientID     int64  `json:"recipient_id"`
	Body            string `json:"body"`
	ParentMessageID *int64 `json:"parent_message_id,omitempty"`
}

type loadCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	threads []models.Thread
	err     error
}

// Client - клиентская оркестрация инбокса: ходит в HTTP API, держит
// локальный снапшот тредов и публикует события жизненного цикла в шину.
// Один экземпляр на сессию; все видимое состояние - проекция событий.
//
// LoadThreads дедуплицирует конкурентные вызовы (single-flight),
// RefreshThreads отменяет вытесненную загрузку, чтобы устаревший ответ
// никогда не перетер более свежий снапшот.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	bus     *EventBus

	mu      sync.Mutex
	threads []models.Thread
	current *loadCall
}

func NewClient(baseURL, token string, bus *EventBus) *Client {
	if bus == nil {
		bus = NewEventBus()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   http.DefaultClient,
		bus:     bus,
	}
}

// SetHTTPClient подменяет транспорт (таймауты, тесты).
func (c *Client) SetHTTPClient(httpc *http.Client) {
	c.httpc = httpc
}

func (c *Client) Bus() *EventBus {
	return c.bus
}

// Snapshot возвращает последний известный список тредов.
func (c *Client) Snapshot() []models.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threads
}

// LoadThreads загружает треды. Если загрузка уже идет, вызов
// присоединяется к ней и получает тот же результат - дублирующий
// сетевой запрос не создается.
func (c *Client) LoadThreads(ctx context.Context) ([]models.Thread, error) {
	c.mu.Lock()
	if call := c.current; call != nil {
		c.mu.Unlock()
		<-call.done
		return call.threads, call.err
	}
	call := c.newLoadLocked(ctx)
	c.mu.Unlock()

	c.bus.Emit(Event{Type: EventThreadsLoading})
	go c.runLoad(call)

	<-call.done
	return call.threads, call.err
}

// RefreshThreads принудительно перезагружает треды, отменяя
// незавершенную загрузку. Отмененная загрузка разрешается прежним
// снапшотом и не считается ошибкой.
func (c *Client) RefreshThreads(ctx context.Context) ([]models.Thread, error) {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	call := c.newLoadLocked(ctx)
	c.mu.Unlock()

	c.bus.Emit(Event{Type: EventThreadsLoading})
	go c.runLoad(call)

	<-call.done
	return call.threads, call.err
}

func (c *Client) newLoadLocked(ctx context.Context) *loadCall {
	loadCtx, cancel := context.WithCancel(ctx)
	call := &loadCall{ctx: loadCtx, cancel: cancel, done: make(chan struct{})}
	c.current = call
	return call
}

func (c *Client) runLoad(call *loadCall) {
	var threads []models.Thread
	err := c.doJSON(call.ctx, http.MethodGet, "/api/team-messages", nil, &threads, nil)

	c.mu.Lock()
	if err != nil && (errors.Is(err, context.Canceled) || call.ctx.Err() != nil) {
		// Отмена - не ошибка: разрешаемся последним известным снапшотом
		call.threads = c.threads
		if c.current == call {
			c.current = nil
		}
		c.mu.Unlock()
		close(call.done)
		return
	}

	if err != nil {
		call.err = err
		if c.current == call {
			c.current = nil
		}
		c.mu.Unlock()
		c.bus.Emit(Event{Type: EventThreadsError, Err: err})
		close(call.done)
		return
	}

	if c.current != call {
		// Вытеснены более свежей загрузкой: устаревший ответ
		// не применяется к снапшоту
		call.threads = c.threads
		c.mu.Unlock()
		close(call.done)
		return
	}

	c.threads = threads
	c.current = nil
	call.threads = threads
	c.mu.Unlock()

	c.bus.Emit(Event{Type: EventThreadsLoaded, Threads: threads})
	close(call.done)
}

// SendMessage отправляет сообщение и после успеха полностью
// ресинхронизирует треды - структура тредов пересчитывается сервером,
// локально она не патчится.
func (c *Client) SendMessage(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	input.Body = strings.TrimSpace(input.Body)
	if err := validateSendInput(input); err != nil {
		c.bus.Emit(Event{Type: EventMessageSendFailed, Err: err})
		return nil, err
	}

	c.bus.Emit(Event{Type: EventMessageSending})

	var msg models.Message
	err := c.doJSON(ctx, http.MethodPost, "/api/team-messages", input, &msg, nil)
	if err != nil {
		c.bus.Emit(Event{Type: EventMessageSendFailed, Err: err})
		return nil, err
	}

	c.bus.Emit(Event{Type: EventMessageSent, Message: &msg})
	_, _ = c.RefreshThreads(ctx)
	return &msg, nil
}

// MarkMessagesAsRead помечает сообщения прочитанными и ресинхронизирует
// треды. Пустой список - no-op без сетевого запроса.
func (c *Client) MarkMessagesAsRead(ctx context.Context, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	c.bus.Emit(Event{Type: EventMessagesMarkingRead, MessageIDs: messageIDs})

	var resp struct {
		Updated int64 `json:"updated"`
	}
	body := map[string][]int64{"message_ids": messageIDs}
	err := c.doJSON(ctx, http.MethodPost, "/api/team-messages/mark-read", body, &resp, nil)
	if err != nil {
		c.bus.Emit(Event{Type: EventMessagesMarkReadFailed, MessageIDs: messageIDs, Err: err})
		return 0, err
	}

	c.bus.Emit(Event{Type: EventMessagesMarkedRead, MessageIDs: messageIDs})
	_, _ = c.RefreshThreads(ctx)
	return resp.Updated, nil
}

// DeleteMessage удаляет сообщение. Перед запросом получает одноразовый
// анти-CSRF токен и передает его в заголовке.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	c.bus.Emit(Event{Type: EventMessageDeleting, MessageID: messageID})

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/csrf-token", nil, &tokenResp, nil); err != nil {
		c.bus.Emit(Event{Type: EventMessageDeleteFailed, MessageID: messageID, Err: err})
		return err
	}

	path := fmt.Sprintf("/api/team-messages/%d", messageID)
	headers := map[string]string{"X-CSRF-Token": tokenResp.Token}
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, headers); err != nil {
		c.bus.Emit(Event{Type: EventMessageDeleteFailed, MessageID: messageID, Err: err})
		return err
	}

	c.bus.Emit(Event{Type: EventMessageDeleted, MessageID: messageID})
	_, _ = c.RefreshThreads(ctx)
	return nil
}

func validateSendInput(input SendMessageInput) error {
	bodyLen := utf8.RuneCountInString(input.Body)
	if bodyLen == 0 {
		return errors.New("message body must not be empty")
	}
	if bodyLen > maxMessageBodyLength {
		return errors.New("message body is too long")
	}
	if input.ParentMessageID == nil && input.RecipientID <= 0 {
		return errors.New("invalid recipient id")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// parseAPIError достает message из тела ответа; при отсутствующем или
// нечитаемом теле подставляет текст HTTP-статуса.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
	}
	return apiErr
}
