package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntake struct {
	submitted  []domain.SubmitRequest
	submitErr  error
	readCalls  []uint64
	markErr    error
	listResult []domain.Notification
}

func (f *fakeIntake) Submit(_ context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	if f.submitErr != nil {
		return domain.SubmitResult{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return domain.SubmitResult{
		NotificationID: 12345,
		Channels: []domain.ChannelStatus{
			{Channel: domain.ChannelInApp, Status: "sent"},
			{Channel: domain.ChannelEmail, Status: "queued"},
		},
	}, nil
}

func (f *fakeIntake) MarkAsRead(_ context.Context, notificationID uint64, _ int64) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.readCalls = append(f.readCalls, notificationID)
	return nil
}

func (f *fakeIntake) ListByUser(_ context.Context, _ int64, _ bool, _, _ int) ([]domain.Notification, error) {
	return f.listResult, nil
}

func (f *fakeIntake) UnreadCount(_ context.Context, _ int64) (int64, error) {
	return int64(len(f.listResult)), nil
}

type fakePrefs struct {
	prefs   domain.Preferences
	patches []domain.PreferencesPatch
	err     error
}

func (f *fakePrefs) Resolve(_ context.Context, userID int64) (domain.Preferences, error) {
	if f.err != nil {
		return domain.Preferences{}, f.err
	}
	if f.prefs.UserID == 0 {
		return domain.DefaultPreferences(userID), nil
	}
	return f.prefs, nil
}

func (f *fakePrefs) Update(_ context.Context, _ int64, patch domain.PreferencesPatch) error {
	if f.err != nil {
		return f.err
	}
	f.patches = append(f.patches, patch)
	return nil
}

type fakeTrackerSvc struct {
	events map[string]domain.ProviderEvent
	err    error
}

func (f *fakeTrackerSvc) BeginAttempt(_ context.Context, _ domain.QueueJob) (domain.DeliveryRecord, error) {
	return domain.DeliveryRecord{}, nil
}

func (f *fakeTrackerSvc) MarkSent(_ context.Context, _ domain.DeliveryRecord, _ string) error {
	return nil
}

func (f *fakeTrackerSvc) MarkFailed(_ context.Context, _ domain.DeliveryRecord, _ error) error {
	return nil
}

func (f *fakeTrackerSvc) HandleProviderEvent(_ context.Context, providerMessageID string, event domain.ProviderEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events[providerMessageID] = event
	return nil
}

func (f *fakeTrackerSvc) AnnotateRead(_ context.Context, _ uint64) error    { return nil }
func (f *fakeTrackerSvc) AnnotateClicked(_ context.Context, _ uint64) error { return nil }

type webFixture struct {
	engine  *gin.Engine
	intake  *fakeIntake
	prefs   *fakePrefs
	tracker *fakeTrackerSvc
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &webFixture{
		intake:  &fakeIntake{},
		prefs:   &fakePrefs{},
		tracker: &fakeTrackerSvc{events: make(map[string]domain.ProviderEvent)},
	}
	server := NewServer(
		f.intake,
		f.prefs,
		f.tracker,
		nil, // health endpoint not exercised here
		metrics.NewWorkerMetrics(prometheus.NewRegistry()),
		func(context.Context) map[string]int64 { return map[string]int64{"notify:queue:retry": 2} },
	)
	f.engine = gin.New()
	server.RegisterRoutes(f.engine)
	return f
}

func (f *webFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestSubmitEndpoint(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)

	rec := f.do(t, http.MethodPost, "/api/notifications", `{
		"userId": 42,
		"type": "message",
		"title": "New message",
		"message": "hello",
		"priority": "high",
		"channelOptions": {"email": {"replyTo": "deals@pitchdesk.example"}}
	}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		NotificationID string `json:"notificationId"`
		Channels       []struct {
			Channel string `json:"channel"`
			Status  string `json:"status"`
		} `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "12345", resp.NotificationID)
	require.Len(t, resp.Channels, 2)
	assert.Equal(t, "in_app", resp.Channels[0].Channel)

	require.Len(t, f.intake.submitted, 1)
	assert.Equal(t, domain.PriorityHigh, f.intake.submitted[0].Priority)
	assert.Equal(t, map[string]string{"replyTo": "deals@pitchdesk.example"},
		f.intake.submitted[0].ChannelOptions[domain.ChannelEmail])
}

func TestSubmitDefaultsPriority(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)
	rec := f.do(t, http.MethodPost, "/api/notifications", `{
		"userId": 42,
		"type": "message",
		"title": "t",
		"message": "m"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.PriorityNormal, f.intake.submitted[0].Priority)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)
	rec := f.do(t, http.MethodPost, "/api/notifications", `{"userId": 42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.intake.submitted)
}

func TestSubmitMapsValidationError(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)
	f.intake.submitErr = errs.ErrInvalidParameter
	rec := f.do(t, http.MethodPost, "/api/notifications", `{
		"userId": 42, "type": "smoke_signal", "title": "t", "message": "m"
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadEndpoint(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)

	rec := f.do(t, http.MethodPost, "/api/notifications/777/read", `{"userId": 42}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{777}, f.intake.readCalls)

	rec = f.do(t, http.MethodPost, "/api/notifications/not-a-number/read", `{"userId": 42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.intake.markErr = errs.ErrNotificationNotFound
	rec = f.do(t, http.MethodPost, "/api/notifications/778/read", `{"userId": 42}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotificationsEndpoint(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)
	f.intake.listResult = []domain.Notification{
		{ID: 1, UserID: 42, Type: domain.TypeMessage, Title: "a", Message: "b", Priority: domain.PriorityNormal},
	}

	rec := f.do(t, http.MethodGet, "/api/users/42/notifications?unreadOnly=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Notifications []notificationResp `json:"notifications"`
		UnreadCount   int64              `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "1", resp.Notifications[0].ID)
	assert.EqualValues(t, 1, resp.UnreadCount)
}

func TestPreferencesRoundTrip(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)

	rec := f.do(t, http.MethodGet, "/api/users/42/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got preferencesResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Email)
	assert.False(t, got.SMS)

	rec = f.do(t, http.MethodPut, "/api/users/42/preferences", `{
		"sms": true,
		"quietHoursEnabled": true,
		"quietHoursStart": "22:00",
		"quietHoursEnd": "06:00"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.prefs.patches, 1)
	patch := f.prefs.patches[0]
	require.NotNil(t, patch.SMS)
	assert.True(t, *patch.SMS)
	assert.Nil(t, patch.Email, "absent fields stay nil")
	require.NotNil(t, patch.QuietHoursStart)
	assert.Equal(t, "22:00", *patch.QuietHoursStart)
}

func TestDeliveryWebhook(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)

	rec := f.do(t, http.MethodPost, "/api/webhooks/delivery", `{
		"providerMessageId": "prov-1", "event": "delivered"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ProviderEventDelivered, f.tracker.events["prov-1"])

	rec = f.do(t, http.MethodPost, "/api/webhooks/delivery", `{
		"providerMessageId": "prov-1", "event": "opened"
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown ids are acknowledged so the provider stops retrying.
	f.tracker.err = errs.ErrDeliveryRecordNotFound
	rec = f.do(t, http.MethodPost, "/api/webhooks/delivery", `{
		"providerMessageId": "prov-unknown", "event": "bounced"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	f := newWebFixture(t)
	rec := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 2, snap.QueueDepths["notify:queue:retry"])
}
