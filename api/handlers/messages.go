package handlers

import (
	"net/http"
	"strconv"
	"time"

	"teamhub/api/middleware"
	"teamhub/services"

	"github.com/gin-gonic/gin"
)

// statusForError переводит код доменной ошибки в HTTP-статус.
// Тело ошибки всегда {"message": ...} - клиент парсит это поле.
func statusForError(err error) int {
	switch services.MessagingCode(err) {
	case services.ErrCodeInvalidMessage, services.ErrCodeSelfMessage:
		return http.StatusBadRequest
	case services.ErrCodeRecipientNotInTeam, services.ErrCodeNotParticipant, services.ErrCodeNotMessageOwner:
		return http.StatusForbidden
	case services.ErrCodeParentNotFound, services.ErrCodeMessageNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	body := gin.H{"message": err.Error()}
	if code := services.MessagingCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(statusForError(err), body)
}

// ListThreadsHandler - все треды аутентифицированного пользователя,
// самый активный первым.
func ListThreadsHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	start := time.Now()
	threads, err := services.MessagingInstance.ListThreadsForUser(c.Request.Context(), userID.(int64))
	recordOp("list_threads", start, err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, threads)
}

// SendMessageHandler - отправка нового сообщения или ответа.
func SendMessageHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var input services.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request", "details": err.Error()})
		return
	}
	input.SenderID = userID.(int64)

	start := time.Now()
	msg, err := services.MessagingInstance.SendMessage(c.Request.Context(), input)
	recordOp("send_message", start, err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids" binding:"required,min=1"`
}

// MarkMessagesAsReadHandler помечает сообщения прочитанными.
func MarkMessagesAsReadHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request", "details": err.Error()})
		return
	}

	start := time.Now()
	updated, err := services.MessagingInstance.MarkMessagesAsRead(c.Request.Context(), userID.(int64), req.MessageIDs)
	recordOp("mark_read", start, err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteMessageHandler удаляет сообщение. Только автор, только с
// анти-CSRF токеном (проверяется в middleware).
func DeleteMessageHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid message id"})
		return
	}

	start := time.Now()
	err = services.MessagingInstance.DeleteMessage(c.Request.Context(), messageID, userID.(int64))
	recordOp("delete_message", start, err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// CSRFTokenHandler выдает одноразовый токен для state-changing запросов.
func CSRFTokenHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	token, err := services.IssueCSRFToken(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func recordOp(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	middleware.RecordMessagingOperation(operation, status, "teamhub", time.Since(start), services.MessagingCode(err))
}
