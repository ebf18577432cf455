package db

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateMessageIndexes создает составные индексы для таблицы сообщений.
// Листинг тредов фильтрует по участнику и сортирует по created_at,
// поэтому одиночных индексов по sender_id/recipient_id недостаточно.
func CreateMessageIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_messages_recipient_created_at",
			sql:  `CREATE INDEX IF NOT EXISTS idx_messages_recipient_created_at ON messages (recipient_id, created_at);`,
		},
		{
			name: "idx_messages_sender_created_at",
			sql:  `CREATE INDEX IF NOT EXISTS idx_messages_sender_created_at ON messages (sender_id, created_at);`,
		},
		// частичный индекс для подсчета непрочитанных
		{
			name: "idx_messages_recipient_unread",
			sql:  `CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages (recipient_id) WHERE read_at IS NULL;`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// CreateTeamMemberIndexes создает индекс уникальности ребра дерева.
func CreateTeamMemberIndexes(db *gorm.DB) error {
	sql := `CREATE UNIQUE INDEX IF NOT EXISTS idx_team_members_edge ON team_members (sponsor_id, member_id);`
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("failed to create index idx_team_members_edge: %w", err)
	}
	return nil
}
