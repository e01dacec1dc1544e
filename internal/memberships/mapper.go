package memberships

import (
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
)

type memberRow struct {
	models.GroupMembership
	DisplayName string `gorm:"column:display_name"`
	Email       string `gorm:"column:email"`
}

func memberFromRow(row memberRow) MemberDTO {
	return MemberDTO{
		MembershipID: row.ID,
		UserID:       row.UserID,
		DisplayName:  row.DisplayName,
		Email:        row.Email,
		Role:         row.Role,
		JoinedAt:     row.JoinedAt,
	}
}

func membersFromRows(rows []memberRow) []MemberDTO {
	out := make([]MemberDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, memberFromRow(row))
	}
	return out
}
