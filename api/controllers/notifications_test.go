package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/internal/notifications"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
)

type testNotificationsService struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	getLatestFn   func(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error)
	countUnreadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	markReadFn    func(ctx context.Context, recipientID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	deleteBatchFn func(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error
}

func (s *testNotificationsService) Create(ctx context.Context, input notifications.CreateInput) (*models.Notification, error) {
	return nil, nil
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *testNotificationsService) GetLatest(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	if s.getLatestFn != nil {
		return s.getLatestFn(ctx, recipientID, limit, unreadOnly)
	}
	return nil, nil
}

func (s *testNotificationsService) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.countUnreadFn != nil {
		return s.countUnreadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, recipientID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *testNotificationsService) DeleteBatch(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error {
	if s.deleteBatchFn != nil {
		return s.deleteBatchFn(ctx, recipientID, ids)
	}
	return nil
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, rid, nid uuid.UUID) error {
			called = true
			if rid != userID {
				t.Fatalf("unexpected recipient %s", rid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", userID, "")
	req = withRouteParams(req, map[string]string{"notificationId": notificationID.String()})
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusOK)
	if !called {
		t.Fatal("expected service called")
	}
}

func TestMarkNotificationReadRequiresAuth(t *testing.T) {
	svc := &testNotificationsService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
	req = withRouteParams(req, map[string]string{"notificationId": uuid.NewString()})
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestListNotificationsPassesQueryParams(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			if params.RecipientID != userID {
				t.Fatalf("unexpected recipient %s", params.RecipientID)
			}
			if params.Limit != 5 || !params.UnreadOnly || params.Cursor != "abc" {
				t.Fatalf("unexpected params %+v", params)
			}
			return &notifications.ListResult{Cursor: "next"}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true&cursor=abc", userID, "")
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusOK)
	var envelope struct {
		Data notifications.ListResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if envelope.Data.Cursor != "next" {
		t.Fatalf("expected cursor in response, got %+v", envelope.Data)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications?limit=0", userID, "")
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDeleteNotificationsBatchValidatesIDs(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		deleteBatchFn: func(ctx context.Context, rid uuid.UUID, ids []uuid.UUID) error {
			t.Fatal("service should not be called")
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/delete-batch", userID, `{"ids":[]}`)
	resp := httptest.NewRecorder()
	DeleteNotificationsBatch(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDeleteNotificationsBatchSuccess(t *testing.T) {
	userID := uuid.New()
	id := uuid.New()
	var got []uuid.UUID
	svc := &testNotificationsService{
		deleteBatchFn: func(ctx context.Context, rid uuid.UUID, ids []uuid.UUID) error {
			got = ids
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/delete-batch", userID, `{"ids":["`+id.String()+`"]}`)
	resp := httptest.NewRecorder()
	DeleteNotificationsBatch(svc, testLogger())(resp, req)

	expectStatus(t, resp, http.StatusOK)
	if len(got) != 1 || got[0] != id {
		t.Fatalf("expected ids forwarded, got %v", got)
	}
}
