package handlers

import (
	"net/http"

	"teamhub/services"

	"github.com/gin-gonic/gin"
)

type addTeamMemberRequest struct {
	MemberID int64 `json:"member_id" binding:"required"`
}

// AddTeamMember добавляет прямого реферала текущему пользователю.
func AddTeamMember(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var req addTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request", "details": err.Error()})
		return
	}

	if err := services.NewTeamService().AddMember(c.Request.Context(), userID.(int64), req.MemberID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

// GetTeamTree возвращает двухуровневое окружение текущего пользователя.
func GetTeamTree(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	tree, err := services.NewGormTreeService().FetchTwoLevelTree(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch team tree"})
		return
	}
	c.JSON(http.StatusOK, tree)
}
