//go:build db
// +build db

package memberships

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("SKILLQUEST_DB_DSN")
	if dsn == "" {
		t.Skip("SKILLQUEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func createTestUser(t *testing.T, tx *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("sq_test_%s@example.com", uuid.NewString()),
		DisplayName:  "Test Member",
		PasswordHash: "hash",
		IsActive:     true,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestRepositoryMembershipFlow(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	owner := createTestUser(t, tx)
	member := createTestUser(t, tx)

	guild := &models.Guild{
		ID:         uuid.New(),
		Name:       "Repo Guild",
		Visibility: enums.GroupVisibilityPublic,
		MaxMembers: 10,
		CreatorID:  owner.ID,
	}
	if err := tx.Create(guild).Error; err != nil {
		t.Fatalf("create guild: %v", err)
	}

	ownerRow, err := repo.Create(ctx, enums.GroupTypeGuild, guild.ID, owner.ID, enums.GroupRoleOwner, nil)
	if err != nil {
		t.Fatalf("create owner membership: %v", err)
	}
	if ownerRow.Status != enums.MembershipStatusActive {
		t.Fatalf("expected active status, got %s", ownerRow.Status)
	}

	if _, err := repo.Create(ctx, enums.GroupTypeGuild, guild.ID, member.ID, enums.GroupRoleMember, &owner.ID); err != nil {
		t.Fatalf("create member membership: %v", err)
	}

	count, err := repo.CountActive(ctx, enums.GroupTypeGuild, guild.ID)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active members, got %d", count)
	}

	hasRole, err := repo.UserHasRole(ctx, enums.GroupTypeGuild, guild.ID, owner.ID, enums.GroupRoleOwner, enums.GroupRoleAdmin)
	if err != nil {
		t.Fatalf("user has role: %v", err)
	}
	if !hasRole {
		t.Fatal("owner should match owner/admin role filter")
	}

	hasRole, err = repo.UserHasRole(ctx, enums.GroupTypeGuild, guild.ID, member.ID, enums.GroupRoleOwner, enums.GroupRoleAdmin)
	if err != nil {
		t.Fatalf("user has role: %v", err)
	}
	if hasRole {
		t.Fatal("plain member should not match moderator filter")
	}

	roster, err := repo.ListGroupMembers(ctx, enums.GroupTypeGuild, guild.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 roster rows, got %d", len(roster))
	}

	membership, err := repo.GetActive(ctx, enums.GroupTypeGuild, guild.ID, member.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	affected, err := repo.Leave(ctx, membership.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	affected, err = repo.Leave(ctx, membership.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("second leave: %v", err)
	}
	if affected != 0 {
		t.Fatal("leaving twice should be a no-op")
	}

	gone, err := repo.GetActive(ctx, enums.GroupTypeGuild, guild.ID, member.ID)
	if err != nil {
		t.Fatalf("get active after leave: %v", err)
	}
	if gone != nil {
		t.Fatal("membership should no longer be active")
	}
}
