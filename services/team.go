package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamhub/db"
	"teamhub/models"
)

// TeamService управляет ребрами организационного дерева.
type TeamService struct{}

func NewTeamService() *TeamService {
	return &TeamService{}
}

// AddMember добавляет прямого реферала спонсору.
func (s *TeamService) AddMember(ctx context.Context, sponsorID, memberID int64) error {
	if sponsorID <= 0 || memberID <= 0 {
		return errors.New("invalid user ID")
	}
	if sponsorID == memberID {
		return errors.New("cannot add yourself to your team")
	}

	// Проверяем, что оба пользователя существуют
	var userCount int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).
		Where("id IN ?", []int64{sponsorID, memberID}).
		Count(&userCount).Error
	if err != nil {
		return fmt.Errorf("error checking users: %w", err)
	}
	if userCount != 2 {
		return errors.New("one or both users do not exist")
	}

	var existing models.TeamMember
	err = db.GetReadOnlyDB(ctx).Where(
		"sponsor_id = ? AND member_id = ?", sponsorID, memberID,
	).First(&existing).Error
	if err == nil {
		return errors.New("team member already exists")
	}

	edge := models.TeamMember{
		SponsorID: sponsorID,
		MemberID:  memberID,
		CreatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(&edge).Error; err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	// Дерево поменялось - сбрасываем кеш обеим сторонам
	InvalidateTreeCache(ctx, sponsorID, memberID)
	return nil
}

// RemoveMember удаляет ребро. Существующие треды при этом остаются
// доступными: принадлежность дереву проверяется только при первом
// контакте.
func (s *TeamService) RemoveMember(ctx context.Context, sponsorID, memberID int64) error {
	result := db.GetWriteDB(ctx).Where(
		"sponsor_id = ? AND member_id = ?", sponsorID, memberID,
	).Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove team member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("team member not found")
	}
	InvalidateTreeCache(ctx, sponsorID, memberID)
	return nil
}
