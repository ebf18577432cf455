package models

import "time"

// TeamMember - ребро организационного дерева: SponsorID пригласил MemberID.
// Двухуровневое окружение пользователя строится обходом этих ребер
// в обе стороны (спонсор и прямые рефералы).
type TeamMember struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SponsorID int64     `gorm:"column:sponsor_id;index" json:"sponsor_id"`
	MemberID  int64     `gorm:"column:member_id;index" json:"member_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TeamMember) TableName() string {
	return "team_members"
}

// TwoLevelTree - окружение пользователя: уровень 1 (прямые связи)
// и уровень 2 (связи связей). Используется как множество разрешенных
// адресатов при первом контакте.
type TwoLevelTree struct {
	Level1 []Participant `json:"level1"`
	Level2 []Participant `json:"level2"`
}

// Contains проверяет, входит ли пользователь в окружение (любой уровень).
func (t *TwoLevelTree) Contains(userID int64) bool {
	for _, p := range t.Level1 {
		if p.ID == userID {
			return true
		}
	}
	for _, p := range t.Level2 {
		if p.ID == userID {
			return true
		}
	}
	return false
}
