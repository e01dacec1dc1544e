package parties

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
)

type fakePartyStore struct {
	parties map[uuid.UUID]*models.Party
	deleted []uuid.UUID
}

func newFakePartyStore(parties ...*models.Party) *fakePartyStore {
	store := &fakePartyStore{parties: make(map[uuid.UUID]*models.Party)}
	for _, p := range parties {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		store.parties[p.ID] = p
	}
	return store
}

func (f *fakePartyStore) WithTx(tx *gorm.DB) Store { return f }

func (f *fakePartyStore) Create(ctx context.Context, party *models.Party) error {
	if party.ID == uuid.Nil {
		party.ID = uuid.New()
	}
	f.parties[party.ID] = party
	return nil
}

func (f *fakePartyStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	return f.parties[id], nil
}

func (f *fakePartyStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	return f.parties[id], nil
}

func (f *fakePartyStore) Update(ctx context.Context, party *models.Party) error {
	f.parties[party.ID] = party
	return nil
}

func (f *fakePartyStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.parties, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePartyStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Party, error) {
	var out []models.Party
	for _, id := range ids {
		if p, ok := f.parties[id]; ok {
			out = append(out, *p)
		}
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
		if row.GroupType == groupType && row.GroupID == groupID && row.Status == enums.MembershipStatusActive && row.Role == role {
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
	for _, row := range f.rows {
		if row.ID == membershipID {
			row.Role = role
		}
	}
	return nil
}

func (f *fakeMembershipStore) Leave(ctx context.Context, membershipID uuid.UUID, at time.Time) (int64, error) {
	for _, row := range f.rows {
		if row.ID == membershipID && row.Status == enums.MembershipStatusActive {
			row.Status = enums.MembershipStatusLeft
			row.LeftAt = &at
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeMembershipStore) ListGroupMembers(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) ([]memberships.MemberDTO, error) {
	var out []memberships.MemberDTO
	for _, row := range f.rows {
		if row.GroupType == groupType && row.GroupID == groupID && row.Status == enums.MembershipStatusActive {
			out = append(out, memberships.MemberDTO{
				MembershipID: row.ID,
				UserID:       row.UserID,
				Role:         row.Role,
				JoinedAt:     row.JoinedAt,
			})
		}
	}
	return out, nil
}

func (f *fakeMembershipStore) ListActiveForUser(ctx context.Context, userID uuid.UUID, groupType enums.GroupType) ([]models.GroupMembership, error) {
	var out []models.GroupMembership
	for _, row := range f.rows {
		if row.GroupType == groupType && row.UserID == userID && row.Status == enums.MembershipStatusActive {
			out = append(out, *row)
		}
	}
	return out, nil
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

func newPartyService(t *testing.T, repo Store, members memberships.Store, pub *stubOutboxPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, members, stubTxRunner{}, pub)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}

func TestCreatePartyFoundsLeaderMembership(t *testing.T) {
	repo := newFakePartyStore()
	members := &fakeMembershipStore{}
	pub := &stubOutboxPublisher{}
	svc := newPartyService(t, repo, members, pub)

	creatorID := uuid.New()
	dto, err := svc.Create(context.Background(), creatorID, CreatePartyInput{Name: "Exam Sprint"})
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	if dto.MaxMembers != defaultMaxMembers {
		t.Fatalf("expected default max members, got %d", dto.MaxMembers)
	}
	if dto.Visibility != enums.GroupVisibilityPrivate {
		t.Fatalf("expected private default visibility, got %s", dto.Visibility)
	}

	membership, _ := members.GetActive(context.Background(), enums.GroupTypeParty, dto.ID, creatorID)
	if membership == nil || membership.Role != enums.GroupRoleLeader {
		t.Fatalf("expected creator to hold leader membership, got %+v", membership)
	}
	if len(pub.events) != 1 || pub.events[0].AggregateType != enums.AggregateParty {
		t.Fatalf("expected party membership event, got %+v", pub.events)
	}
}

func TestCreatePartyCapCeiling(t *testing.T) {
	svc := newPartyService(t, newFakePartyStore(), &fakeMembershipStore{}, &stubOutboxPublisher{})

	_, err := svc.Create(context.Background(), uuid.New(), CreatePartyInput{Name: "Big Party", MaxMembers: 20})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdatePartyLeaderOnly(t *testing.T) {
	party := &models.Party{ID: uuid.New(), Name: "Exam Sprint", Visibility: enums.GroupVisibilityPrivate, MaxMembers: 8}
	repo := newFakePartyStore(party)
	members := &fakeMembershipStore{}
	leader := uuid.New()
	member := uuid.New()
	members.add(enums.GroupTypeParty, party.ID, leader, enums.GroupRoleLeader)
	members.add(enums.GroupTypeParty, party.ID, member, enums.GroupRoleMember)
	svc := newPartyService(t, repo, members, &stubOutboxPublisher{})

	name := "Renamed"
	_, err := svc.Update(context.Background(), member, party.ID, UpdatePartyInput{Name: &name})
	expectCode(t, err, pkgerrors.CodeForbidden)

	dto, err := svc.Update(context.Background(), leader, party.ID, UpdatePartyInput{Name: &name})
	if err != nil {
		t.Fatalf("update party: %v", err)
	}
	if dto.Name != "Renamed" {
		t.Fatalf("expected renamed party, got %q", dto.Name)
	}
}

func TestLeavePartyProtectsLeader(t *testing.T) {
	party := &models.Party{ID: uuid.New(), Name: "Exam Sprint", MaxMembers: 8}
	repo := newFakePartyStore(party)
	members := &fakeMembershipStore{}
	leader := uuid.New()
	member := uuid.New()
	members.add(enums.GroupTypeParty, party.ID, leader, enums.GroupRoleLeader)
	members.add(enums.GroupTypeParty, party.ID, member, enums.GroupRoleMember)
	svc := newPartyService(t, repo, members, &stubOutboxPublisher{})

	err := svc.Leave(context.Background(), leader, party.ID)
	expectCode(t, err, pkgerrors.CodeStateConflict)

	if err := svc.Leave(context.Background(), member, party.ID); err != nil {
		t.Fatalf("member leave: %v", err)
	}
	if err := svc.Leave(context.Background(), leader, party.ID); err != nil {
		t.Fatalf("leader leave after emptying party: %v", err)
	}
}

func TestRemovePartyMemberLeaderOnly(t *testing.T) {
	party := &models.Party{ID: uuid.New(), Name: "Exam Sprint", MaxMembers: 8}
	repo := newFakePartyStore(party)
	members := &fakeMembershipStore{}
	leader := uuid.New()
	a := uuid.New()
	b := uuid.New()
	members.add(enums.GroupTypeParty, party.ID, leader, enums.GroupRoleLeader)
	members.add(enums.GroupTypeParty, party.ID, a, enums.GroupRoleMember)
	members.add(enums.GroupTypeParty, party.ID, b, enums.GroupRoleMember)
	svc := newPartyService(t, repo, members, &stubOutboxPublisher{})

	err := svc.RemoveMember(context.Background(), a, party.ID, b)
	expectCode(t, err, pkgerrors.CodeForbidden)

	if err := svc.RemoveMember(context.Background(), leader, party.ID, b); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	membership, _ := members.GetActive(context.Background(), enums.GroupTypeParty, party.ID, b)
	if membership != nil {
		t.Fatalf("expected membership ended, got %+v", membership)
	}
}

func TestDeletePartyNotFound(t *testing.T) {
	svc := newPartyService(t, newFakePartyStore(), &fakeMembershipStore{}, &stubOutboxPublisher{})
	err := svc.Delete(context.Background(), uuid.New(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}
