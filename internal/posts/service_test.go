package posts

import (
	"context"
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
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

type likeKey struct {
	postID uuid.UUID
	userID uuid.UUID
}

type fakePostStore struct {
	posts    []*models.Post
	comments []*models.Comment
	likes    map[likeKey]bool
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{likes: map[likeKey]bool{}}
}

func (f *fakePostStore) WithTx(tx *gorm.DB) Store { return f }

func (f *fakePostStore) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.CreatedAt = time.Now().UTC()
	f.posts = append(f.posts, post)
	return nil
}

func (f *fakePostStore) FindPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	for _, row := range f.posts {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakePostStore) FindPostByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return f.FindPostByID(ctx, id)
}

func (f *fakePostStore) UpdatePost(ctx context.Context, post *models.Post) error { return nil }

func (f *fakePostStore) SetFlags(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	post, _ := f.FindPostByID(ctx, id)
	if post == nil {
		return nil
	}
	if pinned, ok := fields["is_pinned"].(bool); ok {
		post.IsPinned = pinned
	}
	if locked, ok := fields["is_locked"].(bool); ok {
		post.IsLocked = locked
	}
	return nil
}

func (f *fakePostStore) MarkPostRemoved(ctx context.Context, id uuid.UUID) (int64, error) {
	post, _ := f.FindPostByID(ctx, id)
	if post == nil || post.Status != enums.PostStatusVisible {
		return 0, nil
	}
	post.Status = enums.PostStatusRemoved
	return 1, nil
}

func (f *fakePostStore) ListGuildPosts(ctx context.Context, guildID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Post, error) {
	var out []models.Post
	for _, row := range f.posts {
		if row.GuildID == guildID && row.Status == enums.PostStatusVisible {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePostStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = time.Now().UTC()
	f.comments = append(f.comments, comment)
	return nil
}

func (f *fakePostStore) FindCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	for _, row := range f.comments {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakePostStore) MarkCommentRemoved(ctx context.Context, id uuid.UUID) (int64, error) {
	comment, _ := f.FindCommentByID(ctx, id)
	if comment == nil || comment.Status != enums.PostStatusVisible {
		return 0, nil
	}
	comment.Status = enums.PostStatusRemoved
	return 1, nil
}

func (f *fakePostStore) ListComments(ctx context.Context, postID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Comment, error) {
	var out []models.Comment
	for _, row := range f.comments {
		if row.PostID == postID && row.Status == enums.PostStatusVisible {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePostStore) AddCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	post, _ := f.FindPostByID(ctx, postID)
	if post != nil {
		post.CommentCount += int64(delta)
	}
	return nil
}

func (f *fakePostStore) CreateLike(ctx context.Context, postID, userID uuid.UUID) (int64, error) {
	key := likeKey{postID: postID, userID: userID}
	if f.likes[key] {
		return 0, nil
	}
	f.likes[key] = true
	return 1, nil
}

func (f *fakePostStore) DeleteLike(ctx context.Context, postID, userID uuid.UUID) (int64, error) {
	key := likeKey{postID: postID, userID: userID}
	if !f.likes[key] {
		return 0, nil
	}
	delete(f.likes, key)
	return 1, nil
}

func (f *fakePostStore) AddLikeCount(ctx context.Context, postID uuid.UUID, delta int) error {
	post, _ := f.FindPostByID(ctx, postID)
	if post != nil {
		post.LikeCount += int64(delta)
	}
	return nil
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
	return int64(len(f.rows)), nil
}

func (f *fakeMembershipStore) CountActiveWithRole(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, role enums.GroupRole) (int64, error) {
	return 0, nil
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
	return f.add(groupType, groupID, userID, role), nil
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
	merit map[uuid.UUID]int64
}

func (f *fakeGuildStore) WithTx(tx *gorm.DB) guilds.Store { return f }

func (f *fakeGuildStore) Create(ctx context.Context, guild *models.Guild) error { return nil }

func (f *fakeGuildStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	return nil, nil
}

func (f *fakeGuildStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	return nil, nil
}

func (f *fakeGuildStore) Update(ctx context.Context, guild *models.Guild) error { return nil }

func (f *fakeGuildStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeGuildStore) AddMeritPoints(ctx context.Context, id uuid.UUID, delta int64) error {
	if f.merit == nil {
		f.merit = map[uuid.UUID]int64{}
	}
	f.merit[id] += delta
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
	svc     Service
	repo    *fakePostStore
	members *fakeMembershipStore
	guilds  *fakeGuildStore
	pub     *stubOutboxPublisher
	guildID uuid.UUID
	owner   uuid.UUID
	author  uuid.UUID
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	fixture := &engineFixture{
		repo:    newFakePostStore(),
		members: &fakeMembershipStore{},
		guilds:  &fakeGuildStore{},
		pub:     &stubOutboxPublisher{},
		guildID: uuid.New(),
		owner:   uuid.New(),
		author:  uuid.New(),
	}
	fixture.members.add(enums.GroupTypeGuild, fixture.guildID, fixture.owner, enums.GroupRoleOwner)
	fixture.members.add(enums.GroupTypeGuild, fixture.guildID, fixture.author, enums.GroupRoleMember)

	svc, err := NewService(fixture.repo, fixture.members, fixture.guilds, stubTxRunner{}, fixture.pub)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *engineFixture) createPost(t *testing.T) *PostDTO {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), CreatePostInput{
		GuildID:  f.guildID,
		AuthorID: f.author,
		Title:    "weekly standup notes",
		Content:  "we shipped the parser",
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
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

func TestCreatePostCreditsMerit(t *testing.T) {
	f := newFixture(t)
	f.createPost(t)
	if f.guilds.merit[f.guildID] != 10 {
		t.Fatalf("expected 10 merit points, got %d", f.guilds.merit[f.guildID])
	}
}

func TestCreatePostGuards(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreatePostInput{
		GuildID: f.guildID, AuthorID: uuid.New(), Title: "x", Content: "y",
	})
	expectCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Create(context.Background(), CreatePostInput{
		GuildID: f.guildID, AuthorID: f.author, Title: "  ", Content: "y",
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestAnnouncementRequiresElevatedRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreatePostInput{
		GuildID: f.guildID, AuthorID: f.author, Title: "news", Content: "body", IsAnnouncement: true,
	})
	expectCode(t, err, pkgerrors.CodeForbidden)

	if _, err := f.svc.Create(context.Background(), CreatePostInput{
		GuildID: f.guildID, AuthorID: f.owner, Title: "news", Content: "body", IsAnnouncement: true,
	}); err != nil {
		t.Fatalf("owner announcement: %v", err)
	}
}

func TestEditAuthorOnlyAndLockWins(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)
	title := "edited"

	_, err := f.svc.Edit(context.Background(), post.ID, f.owner, EditPostInput{Title: &title})
	expectCode(t, err, pkgerrors.CodeForbidden)

	if _, err := f.svc.Edit(context.Background(), post.ID, f.author, EditPostInput{Title: &title}); err != nil {
		t.Fatalf("author edit: %v", err)
	}

	// Locking denies even the author.
	if err := f.svc.SetLocked(context.Background(), post.ID, f.owner, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err = f.svc.Edit(context.Background(), post.ID, f.author, EditPostInput{Title: &title})
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestDeleteLockedPostForceOnly(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)
	if err := f.svc.SetLocked(context.Background(), post.ID, f.owner, true); err != nil {
		t.Fatalf("lock: %v", err)
	}

	err := f.svc.Delete(context.Background(), post.ID, f.author, false)
	expectCode(t, err, pkgerrors.CodeForbidden)

	// Force delete re-checks the moderator role in the engine.
	err = f.svc.Delete(context.Background(), post.ID, f.author, true)
	expectCode(t, err, pkgerrors.CodeForbidden)

	if err := f.svc.Delete(context.Background(), post.ID, f.owner, true); err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if f.guilds.merit[f.guildID] != 0 {
		t.Fatalf("expected merit refunded to 0, got %d", f.guilds.merit[f.guildID])
	}

	last := f.pub.events[len(f.pub.events)-1]
	if last.EventType != enums.EventPostModerated {
		t.Fatalf("expected post_moderated event, got %s", last.EventType)
	}
}

func TestDeleteRemovedPostNotFound(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)
	if err := f.svc.Delete(context.Background(), post.ID, f.author, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := f.svc.Delete(context.Background(), post.ID, f.author, false)
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestPinModeratorOnly(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)

	err := f.svc.SetPinned(context.Background(), post.ID, f.author, true)
	expectCode(t, err, pkgerrors.CodeForbidden)

	if err := f.svc.SetPinned(context.Background(), post.ID, f.owner, true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	row, _ := f.repo.FindPostByID(context.Background(), post.ID)
	if !row.IsPinned {
		t.Fatal("expected post pinned")
	}
}

func TestCommentsMoveDerivedCounter(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)

	comment, err := f.svc.AddComment(context.Background(), post.ID, f.owner, "nice work")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	row, _ := f.repo.FindPostByID(context.Background(), post.ID)
	if row.CommentCount != 1 {
		t.Fatalf("expected comment_count 1, got %d", row.CommentCount)
	}

	if err := f.svc.DeleteComment(context.Background(), comment.ID, f.owner, false); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	if row.CommentCount != 0 {
		t.Fatalf("expected comment_count 0, got %d", row.CommentCount)
	}
}

func TestCommentOnLockedPostForbidden(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)
	if err := f.svc.SetLocked(context.Background(), post.ID, f.owner, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err := f.svc.AddComment(context.Background(), post.ID, f.author, "too late")
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestDeleteCommentAuthorOrModerator(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)
	comment, err := f.svc.AddComment(context.Background(), post.ID, f.author, "first")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	stranger := uuid.New()
	f.members.add(enums.GroupTypeGuild, f.guildID, stranger, enums.GroupRoleMember)
	err = f.svc.DeleteComment(context.Background(), comment.ID, stranger, false)
	expectCode(t, err, pkgerrors.CodeForbidden)

	// A moderator removes someone else's comment with force.
	if err := f.svc.DeleteComment(context.Background(), comment.ID, f.owner, true); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
}

func TestLikeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t)

	for i := 0; i < 2; i++ {
		if err := f.svc.Like(context.Background(), post.ID, f.owner); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	row, _ := f.repo.FindPostByID(context.Background(), post.ID)
	if row.LikeCount != 1 {
		t.Fatalf("expected like_count 1, got %d", row.LikeCount)
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.Unlike(context.Background(), post.ID, f.owner); err != nil {
			t.Fatalf("unlike: %v", err)
		}
	}
	if row.LikeCount != 0 {
		t.Fatalf("expected like_count 0, got %d", row.LikeCount)
	}
}

func TestListForGuildRequiresMembership(t *testing.T) {
	f := newFixture(t)
	f.createPost(t)

	_, _, err := f.svc.ListForGuild(context.Background(), f.guildID, uuid.New(), pagination.Params{})
	expectCode(t, err, pkgerrors.CodeForbidden)

	rows, _, err := f.svc.ListForGuild(context.Background(), f.guildID, f.author, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 post, got %d", len(rows))
	}
}
