package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"teamhub/db"
	"teamhub/models"
)

const (
	TREE_CACHE_TTL        = 5 * time.Minute
	TREE_CACHE_KEY_PREFIX = "team_tree:"
)

// TreeService отвечает на вопрос "кто входит в двухуровневое окружение
// пользователя". Результат используется как множество разрешенных
// адресатов при первом контакте.
type TreeService interface {
	FetchTwoLevelTree(ctx context.Context, userID int64) (*models.TwoLevelTree, error)
}

type gormTreeService struct{}

func NewGormTreeService() TreeService {
	return &gormTreeService{}
}

func (s *gormTreeService) FetchTwoLevelTree(ctx context.Context, userID int64) (*models.TwoLevelTree, error) {
	// Сначала пробуем кеш - дерево меняется редко, а листинг дергает его часто
	cacheKey := fmt.Sprintf("%s%d", TREE_CACHE_KEY_PREFIX, userID)
	if RedisClient != nil {
		cached, err := RedisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var tree models.TwoLevelTree
			if err := json.Unmarshal([]byte(cached), &tree); err == nil {
				return &tree, nil
			}
		}
	}

	level1IDs, err := s.neighborIDs(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}
	level1Set := make(map[int64]bool, len(level1IDs)+1)
	level1Set[userID] = true
	for _, id := range level1IDs {
		level1Set[id] = true
	}

	level2Raw, err := s.neighborIDs(ctx, level1IDs)
	if err != nil {
		return nil, err
	}
	level2IDs := make([]int64, 0, len(level2Raw))
	for _, id := range level2Raw {
		if !level1Set[id] {
			level2IDs = append(level2IDs, id)
			level1Set[id] = true // дедупликация внутри второго уровня
		}
	}

	level1, err := s.participants(ctx, level1IDs)
	if err != nil {
		return nil, err
	}
	level2, err := s.participants(ctx, level2IDs)
	if err != nil {
		return nil, err
	}

	tree := &models.TwoLevelTree{Level1: level1, Level2: level2}

	if RedisClient != nil {
		if data, err := json.Marshal(tree); err == nil {
			if err := RedisClient.Set(ctx, cacheKey, data, TREE_CACHE_TTL).Err(); err != nil {
				log.Printf("Failed to cache team tree for user %d: %v", userID, err)
			}
		}
	}

	return tree, nil
}

// neighborIDs возвращает соседей по ребрам дерева в обе стороны:
// спонсоров и прямых рефералов для каждого из userIDs.
func (s *gormTreeService) neighborIDs(ctx context.Context, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var sponsors []int64
	err := db.GetReadOnlyDB(ctx).
		Model(&models.TeamMember{}).
		Where("member_id IN ?", userIDs).
		Pluck("sponsor_id", &sponsors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sponsors: %w", err)
	}

	var members []int64
	err = db.GetReadOnlyDB(ctx).
		Model(&models.TeamMember{}).
		Where("sponsor_id IN ?", userIDs).
		Pluck("member_id", &members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	seen := make(map[int64]bool, len(sponsors)+len(members))
	for _, id := range userIDs {
		seen[id] = true
	}
	ids := make([]int64, 0, len(sponsors)+len(members))
	for _, id := range append(sponsors, members...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *gormTreeService) participants(ctx context.Context, ids []int64) ([]models.Participant, error) {
	if len(ids) == 0 {
		return []models.Participant{}, nil
	}
	var users []models.User
	err := db.GetReadOnlyDB(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tree participants: %w", err)
	}
	participants := make([]models.Participant, 0, len(users))
	for i := range users {
		participants = append(participants, users[i].Snapshot())
	}
	return participants, nil
}

// InvalidateTreeCache сбрасывает кеш дерева после изменения ребер.
func InvalidateTreeCache(ctx context.Context, userIDs ...int64) {
	if RedisClient == nil {
		return
	}
	for _, id := range userIDs {
		key := fmt.Sprintf("%s%d", TREE_CACHE_KEY_PREFIX, id)
		if err := RedisClient.Del(ctx, key).Err(); err != nil {
			log.Printf("Failed to invalidate tree cache for user %d: %v", id, err)
		}
	}
}
