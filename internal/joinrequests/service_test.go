package joinrequests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
)

type fakeJoinRequestStore struct {
	rows      []*models.JoinRequest
	createErr error
}

func (f *fakeJoinRequestStore) WithTx(tx *gorm.DB) Store { return f }

func (f *fakeJoinRequestStore) Create(ctx context.Context, request *models.JoinRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	request.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, request)
	return nil
}

func (f *fakeJoinRequestStore) FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeJoinRequestStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeJoinRequestStore) FindPending(ctx context.Context, guildID, requesterID uuid.UUID) (*models.JoinRequest, error) {
	for _, row := range f.rows {
		if row.GuildID == guildID && row.RequesterID == requesterID && row.Status == enums.JoinRequestStatusPending {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeJoinRequestStore) ResolvePending(ctx context.Context, id uuid.UUID, status enums.JoinRequestStatus, respondedAt time.Time) (int64, error) {
	for _, row := range f.rows {
		if row.ID == id && row.Status == enums.JoinRequestStatusPending {
			row.Status = status
			row.RespondedAt = &respondedAt
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeJoinRequestStore) ListForRequester(ctx context.Context, requesterID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error) {
	var out []models.JoinRequest
	for _, row := range f.rows {
		if row.RequesterID != requesterID {
			continue
		}
		if pendingOnly && row.Status != enums.JoinRequestStatusPending {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeJoinRequestStore) ListForGuild(ctx context.Context, guildID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error) {
	var out []models.JoinRequest
	for _, row := range f.rows {
		if row.GuildID != guildID {
			continue
		}
		if pendingOnly && row.Status != enums.JoinRequestStatusPending {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

type fakeMembershipStore struct {
	rows []*models.GroupMembership
}

func (f *fakeMembershipStore) add(groupType enums.GroupType, groupID, userID uuid.UUID, role enums.GroupRole) *models.GroupMembership {
	row := &models.GroupMembership{
		ID:        uuid.New(),
		GroupType: groupType,
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		Status:    enums.MembershipStatusActive,
		JoinedAt:  time.Now().UTC(),
	}
	f.rows = append(f.rows, row)
	return row
}

func (f *fakeMembershipStore) WithTx(tx *gorm.DB) memberships.Store { return f }

func (f *fakeMembershipStore) GetActive(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	for _, row := range f.rows {
		if row.GroupType == groupType && row.GroupID == groupID && row.UserID == userID && row.Status == enums.MembershipStatusActive {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeMembershipStore) CountActive(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) (int64, error) {
	var count int64
	for _, row := range f.rows {
		if row.GroupType == groupType && row.GroupID == groupID && row.Status == enums.MembershipStatusActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeMembershipStore) CountActiveWithRole(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, role enums.GroupRole) (int64, error) {
	var count int64
	for _, row := range f.rows {
		if row.GroupType == groupType && row.GroupID == groupID && row.Role == role && row.Status == enums.MembershipStatusActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeMembershipStore) UserHasRole(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, roles ...enums.GroupRole) (bool, error) {
	membership, _ := f.GetActive(ctx, groupType, groupID, userID)
	if membership == nil {
		return false, nil
	}
	for _, role := range roles {
		if membership.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMembershipStore) Create(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, role enums.GroupRole, invitedBy *uuid.UUID) (*models.GroupMembership, error) {
	row := f.add(groupType, groupID, userID, role)
	row.InvitedByUserID = invitedBy
	return row, nil
}

func (f *fakeMembershipStore) UpdateRole(ctx context.Context, membershipID uuid.UUID, role enums.GroupRole) error {
	return nil
}

func (f *fakeMembershipStore) Leave(ctx context.Context, membershipID uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeMembershipStore) ListGroupMembers(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) ([]memberships.MemberDTO, error) {
	return nil, nil
}

func (f *fakeMembershipStore) ListActiveForUser(ctx context.Context, userID uuid.UUID, groupType enums.GroupType) ([]models.GroupMembership, error) {
	return nil, nil
}

type fakeGuildStore struct {
	guilds map[uuid.UUID]*models.Guild
}

func (f *fakeGuildStore) WithTx(tx *gorm.DB) guilds.Store { return f }

func (f *fakeGuildStore) Create(ctx context.Context, guild *models.Guild) error { return nil }

func (f *fakeGuildStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	return f.guilds[id], nil
}

func (f *fakeGuildStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	return f.guilds[id], nil
}

func (f *fakeGuildStore) Update(ctx context.Context, guild *models.Guild) error { return nil }

func (f *fakeGuildStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeGuildStore) AddMeritPoints(ctx context.Context, id uuid.UUID, delta int64) error {
	return nil
}

func (f *fakeGuildStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Guild, error) {
	return nil, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type engineFixture struct {
	svc       Service
	repo      *fakeJoinRequestStore
	members   *fakeMembershipStore
	guilds    *fakeGuildStore
	pub       *stubOutboxPublisher
	guildID   uuid.UUID
	owner     uuid.UUID
	requester uuid.UUID
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	fixture := &engineFixture{
		repo:      &fakeJoinRequestStore{},
		members:   &fakeMembershipStore{},
		guilds:    &fakeGuildStore{guilds: map[uuid.UUID]*models.Guild{}},
		pub:       &stubOutboxPublisher{},
		guildID:   uuid.New(),
		owner:     uuid.New(),
		requester: uuid.New(),
	}
	fixture.guilds.guilds[fixture.guildID] = &models.Guild{
		ID:         fixture.guildID,
		Name:       "gophers",
		Visibility: enums.GroupVisibilityPublic,
		MaxMembers: 3,
	}
	fixture.members.add(enums.GroupTypeGuild, fixture.guildID, fixture.owner, enums.GroupRoleOwner)

	svc, err := NewService(fixture.repo, fixture.members, fixture.guilds, stubTxRunner{}, fixture.pub)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *engineFixture) request(t *testing.T) *JoinRequestDTO {
	t.Helper()
	dto, err := f.svc.Request(context.Background(), RequestInput{
		GuildID:     f.guildID,
		RequesterID: f.requester,
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return dto
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestRequestCreatesPending(t *testing.T) {
	f := newFixture(t)

	dto := f.request(t)
	if dto.Status != enums.JoinRequestStatusPending {
		t.Fatalf("expected pending, got %s", dto.Status)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].EventType != enums.EventJoinRequestCreated {
		t.Fatalf("expected a join_request_created event, got %+v", f.pub.events)
	}
}

func TestRequestGuards(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Request(context.Background(), RequestInput{GuildID: uuid.New(), RequesterID: f.requester})
	expectCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Request(context.Background(), RequestInput{GuildID: f.guildID, RequesterID: f.owner})
	expectCode(t, err, pkgerrors.CodeConflict)

	f.request(t)
	_, err = f.svc.Request(context.Background(), RequestInput{GuildID: f.guildID, RequesterID: f.requester})
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestRequestAllowedForPrivateGuild(t *testing.T) {
	// Visibility gates discovery, not requests: asking to join a private
	// guild is how outsiders reach its moderators.
	f := newFixture(t)
	f.guilds.guilds[f.guildID].Visibility = enums.GroupVisibilityPrivate

	dto, err := f.svc.Request(context.Background(), RequestInput{GuildID: f.guildID, RequesterID: f.requester})
	if err != nil {
		t.Fatalf("request to private guild: %v", err)
	}
	if dto.Status != enums.JoinRequestStatusPending {
		t.Fatalf("expected pending, got %s", dto.Status)
	}
}

func TestRequestRaceLoserGetsConflict(t *testing.T) {
	// Two racing requests both pass the FindPending pre-check; the loser
	// hits the pending partial unique index on insert.
	f := newFixture(t)
	f.repo.createErr = errors.New(`duplicate key value violates unique constraint "ux_join_requests_pending"`)

	_, err := f.svc.Request(context.Background(), RequestInput{GuildID: f.guildID, RequesterID: f.requester})
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestApproveCreatesMembership(t *testing.T) {
	f := newFixture(t)
	request := f.request(t)
	f.pub.events = nil

	dto, err := f.svc.Approve(context.Background(), request.ID, f.owner)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if dto.Status != enums.JoinRequestStatusAccepted {
		t.Fatalf("expected accepted, got %s", dto.Status)
	}
	membership, _ := f.members.GetActive(context.Background(), enums.GroupTypeGuild, f.guildID, f.requester)
	if membership == nil || membership.Role != enums.GroupRoleMember {
		t.Fatalf("expected member-role membership, got %+v", membership)
	}
	if len(f.pub.events) != 2 {
		t.Fatalf("expected membership and decision events, got %d", len(f.pub.events))
	}
}

func TestApproveRequiresElevatedRole(t *testing.T) {
	f := newFixture(t)
	plain := uuid.New()
	f.members.add(enums.GroupTypeGuild, f.guildID, plain, enums.GroupRoleMember)
	request := f.request(t)

	_, err := f.svc.Approve(context.Background(), request.ID, plain)
	expectCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Approve(context.Background(), request.ID, uuid.New())
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestApproveEnforcesCap(t *testing.T) {
	f := newFixture(t)
	// Cap is 3, owner plus two members fills the guild.
	f.members.add(enums.GroupTypeGuild, f.guildID, uuid.New(), enums.GroupRoleMember)
	f.members.add(enums.GroupTypeGuild, f.guildID, uuid.New(), enums.GroupRoleMember)
	request := f.request(t)

	_, err := f.svc.Approve(context.Background(), request.ID, f.owner)
	expectCode(t, err, pkgerrors.CodeConflict)

	row, _ := f.repo.FindByID(context.Background(), request.ID)
	if row.Status != enums.JoinRequestStatusPending {
		t.Fatalf("expected request still pending after cap refusal, got %s", row.Status)
	}
}

func TestRejectLeavesMembershipUntouched(t *testing.T) {
	f := newFixture(t)
	request := f.request(t)

	dto, err := f.svc.Reject(context.Background(), request.ID, f.owner)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if dto.Status != enums.JoinRequestStatusRejected {
		t.Fatalf("expected rejected, got %s", dto.Status)
	}
	if membership, _ := f.members.GetActive(context.Background(), enums.GroupTypeGuild, f.guildID, f.requester); membership != nil {
		t.Fatal("expected no membership after reject")
	}

	_, err = f.svc.Approve(context.Background(), request.ID, f.owner)
	expectCode(t, err, pkgerrors.CodeGone)
}

func TestCancelIsRequesterOnly(t *testing.T) {
	f := newFixture(t)
	request := f.request(t)

	_, err := f.svc.Cancel(context.Background(), request.ID, f.owner)
	expectCode(t, err, pkgerrors.CodeForbidden)

	dto, err := f.svc.Cancel(context.Background(), request.ID, f.requester)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if dto.Status != enums.JoinRequestStatusCancelled {
		t.Fatalf("expected cancelled, got %s", dto.Status)
	}
	_, err = f.svc.Cancel(context.Background(), request.ID, f.requester)
	expectCode(t, err, pkgerrors.CodeGone)
}

func TestListMinePendingFilter(t *testing.T) {
	f := newFixture(t)
	first := f.request(t)
	if _, err := f.svc.Cancel(context.Background(), first.ID, f.requester); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.request(t)

	all, err := f.svc.ListMine(context.Background(), f.requester, false)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(all))
	}
	pending, err := f.svc.ListMine(context.Background(), f.requester, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != enums.JoinRequestStatusPending {
		t.Fatalf("expected one pending request, got %+v", pending)
	}
}

func TestGetByIDVisibility(t *testing.T) {
	f := newFixture(t)
	request := f.request(t)

	if _, err := f.svc.GetByID(context.Background(), request.ID, f.requester); err != nil {
		t.Fatalf("requester read: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), request.ID, f.owner); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	_, err := f.svc.GetByID(context.Background(), request.ID, uuid.New())
	expectCode(t, err, pkgerrors.CodeForbidden)
}
