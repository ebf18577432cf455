package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	CSRF_TOKEN_TTL        = 10 * time.Minute
	CSRF_TOKEN_KEY_PREFIX = "csrf:"
)

// Запасное хранилище на случай, когда Redis не поднят (тесты,
// локальный запуск). Токены одноразовые в обоих вариантах.
var (
	csrfFallbackMu sync.Mutex
	csrfFallback   = map[string]time.Time{}
)

func csrfKey(userID int64, token string) string {
	return fmt.Sprintf("%s%d:%s", CSRF_TOKEN_KEY_PREFIX, userID, token)
}

// IssueCSRFToken выдает одноразовый анти-CSRF токен для state-changing
// запросов (сейчас - удаление сообщения).
func IssueCSRFToken(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	key := csrfKey(userID, token)

	if RedisClient != nil {
		if err := RedisClient.Set(ctx, key, "1", CSRF_TOKEN_TTL).Err(); err != nil {
			return "", fmt.Errorf("failed to store csrf token: %w", err)
		}
		return token, nil
	}

	csrfFallbackMu.Lock()
	defer csrfFallbackMu.Unlock()
	csrfFallback[key] = time.Now().Add(CSRF_TOKEN_TTL)
	return token, nil
}

// ValidateCSRFToken проверяет и сжигает токен.
func ValidateCSRFToken(ctx context.Context, userID int64, token string) bool {
	if token == "" {
		return false
	}
	key := csrfKey(userID, token)

	if RedisClient != nil {
		deleted, err := RedisClient.Del(ctx, key).Result()
		return err == nil && deleted > 0
	}

	csrfFallbackMu.Lock()
	defer csrfFallbackMu.Unlock()
	expires, ok := csrfFallback[key]
	if !ok {
		return false
	}
	delete(csrfFallback, key)
	return time.Now().Before(expires)
}
