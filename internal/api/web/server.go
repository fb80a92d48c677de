// Package web exposes the HTTP surface: intake, preferences, read receipts,
// provider webhooks, and the operational endpoints.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/service/health"
	"github.com/pitchdesk/notify/internal/service/intake"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/pitchdesk/notify/internal/service/preference"
	"github.com/pitchdesk/notify/internal/service/tracker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DepthsFunc reports the current queue depths; the worker provides it.
type DepthsFunc func(ctx context.Context) map[string]int64

type Server struct {
	intake      intake.Service
	preferences preference.Service
	tracker     tracker.Service
	monitor     *health.Monitor
	metrics     *metrics.WorkerMetrics
	depths      DepthsFunc

	logger *elog.Component
}

func NewServer(
	intakeSvc intake.Service,
	prefSvc preference.Service,
	trackerSvc tracker.Service,
	monitor *health.Monitor,
	workerMetrics *metrics.WorkerMetrics,
	depths DepthsFunc,
) *Server {
	return &Server{
		intake:      intakeSvc,
		preferences: prefSvc,
		tracker:     trackerSvc,
		monitor:     monitor,
		metrics:     workerMetrics,
		depths:      depths,
		logger:      elog.DefaultLogger.With(elog.String("component", "web")),
	}
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.POST("/notifications", s.submit)
		api.POST("/notifications/:id/read", s.markRead)
		api.GET("/users/:id/notifications", s.listNotifications)
		api.GET("/users/:id/preferences", s.getPreferences)
		api.PUT("/users/:id/preferences", s.updatePreferences)
		api.POST("/webhooks/delivery", s.deliveryWebhook)
	}
	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/stats", s.stats)
}

type submitReq struct {
	UserID       int64             `json:"userId" binding:"required"`
	Type         string            `json:"type" binding:"required"`
	Title        string            `json:"title" binding:"required"`
	Message      string            `json:"message" binding:"required"`
	Priority     string            `json:"priority"`
	RelatedPitch int64             `json:"relatedPitchId"`
	RelatedUser  int64             `json:"relatedUserId"`
	ActionURL    string            `json:"actionUrl"`
	ExpiresAt    *time.Time        `json:"expiresAt"`
	Metadata     map[string]string `json:"metadata"`
	Channels     *channelOverride  `json:"channels"`
	// Opaque per-channel send options, keyed by channel name.
	ChannelOptions map[string]map[string]string `json:"channelOptions"`
}

type channelOverride struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

type channelStatusResp struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

func (s *Server) submit(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority := domain.Priority(req.Priority)
	if req.Priority == "" {
		priority = domain.PriorityNormal
	}
	sr := domain.SubmitRequest{
		UserID:       req.UserID,
		Type:         domain.NotificationType(req.Type),
		Title:        req.Title,
		Message:      req.Message,
		Priority:     priority,
		RelatedPitch: req.RelatedPitch,
		RelatedUser:  req.RelatedUser,
		ActionURL:    req.ActionURL,
		Metadata:     req.Metadata,
	}
	if req.ExpiresAt != nil {
		sr.ExpiresAt = *req.ExpiresAt
	}
	if req.Channels != nil {
		sr.Channels = &domain.ChannelOverride{
			Email: req.Channels.Email,
			Push:  req.Channels.Push,
			SMS:   req.Channels.SMS,
		}
	}
	if len(req.ChannelOptions) > 0 {
		sr.ChannelOptions = make(map[domain.Channel]map[string]string, len(req.ChannelOptions))
		for ch, opts := range req.ChannelOptions {
			sr.ChannelOptions[domain.Channel(ch)] = opts
		}
	}

	result, err := s.intake.Submit(c.Request.Context(), sr)
	if err != nil {
		s.renderError(c, err)
		return
	}
	channels := make([]channelStatusResp, 0, len(result.Channels))
	for _, cs := range result.Channels {
		channels = append(channels, channelStatusResp{
			Channel: string(cs.Channel),
			Status:  cs.Status,
		})
	}
	c.JSON(http.StatusCreated, gin.H{
		"notificationId": strconv.FormatUint(result.NotificationID, 10),
		"channels":       channels,
	})
}

type markReadReq struct {
	UserID int64 `json:"userId" binding:"required"`
}

func (s *Server) markRead(c *gin.Context) {
	notificationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.intake.MarkAsRead(c.Request.Context(), notificationID, req.UserID); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listNotifications(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	unreadOnly := c.Query("unreadOnly") == "true"
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	list, err := s.intake.ListByUser(c.Request.Context(), userID, unreadOnly, offset, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	unread, err := s.intake.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": toNotificationResponses(list),
		"unreadCount":   unread,
	})
}

type notificationResp struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Priority     string            `json:"priority"`
	RelatedPitch int64             `json:"relatedPitchId,omitempty"`
	RelatedUser  int64             `json:"relatedUserId,omitempty"`
	ActionURL    string            `json:"actionUrl,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Read         bool              `json:"read"`
	ReadAt       *time.Time        `json:"readAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func toNotificationResponses(list []domain.Notification) []notificationResp {
	out := make([]notificationResp, 0, len(list))
	for _, n := range list {
		resp := notificationResp{
			ID:           strconv.FormatUint(n.ID, 10),
			Type:         string(n.Type),
			Title:        n.Title,
			Message:      n.Message,
			Priority:     string(n.Priority),
			RelatedPitch: n.RelatedPitch,
			RelatedUser:  n.RelatedUser,
			ActionURL:    n.ActionURL,
			Metadata:     n.Metadata,
			Read:         n.Read,
			CreatedAt:    n.CreatedAt,
		}
		if !n.ReadAt.IsZero() {
			readAt := n.ReadAt
			resp.ReadAt = &readAt
		}
		out = append(out, resp)
	}
	return out
}

type preferencesResp struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
	InApp bool `json:"inApp"`

	NDA         bool `json:"nda"`
	Investment  bool `json:"investment"`
	Message     bool `json:"message"`
	PitchUpdate bool `json:"pitchUpdate"`
	System      bool `json:"system"`
	Marketing   bool `json:"marketing"`

	QuietHoursEnabled bool   `json:"quietHoursEnabled"`
	QuietHoursStart   string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd     string `json:"quietHoursEnd,omitempty"`
	Timezone          string `json:"timezone"`

	Digest string `json:"digest"`
}

func (s *Server) getPreferences(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	prefs, err := s.preferences.Resolve(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPreferencesResponse(prefs))
}

func toPreferencesResponse(p domain.Preferences) preferencesResp {
	return preferencesResp{
		Email:             p.Email,
		Push:              p.Push,
		SMS:               p.SMS,
		InApp:             p.InApp,
		NDA:               p.NDA,
		Investment:        p.Investment,
		Message:           p.Message,
		PitchUpdate:       p.PitchUpdate,
		System:            p.System,
		Marketing:         p.Marketing,
		QuietHoursEnabled: p.QuietHoursEnabled,
		QuietHoursStart:   p.QuietHoursStart,
		QuietHoursEnd:     p.QuietHoursEnd,
		Timezone:          p.Timezone,
		Digest:            string(p.Digest),
	}
}

type preferencesPatchReq struct {
	Email *bool `json:"email"`
	Push  *bool `json:"push"`
	SMS   *bool `json:"sms"`
	InApp *bool `json:"inApp"`

	NDA         *bool `json:"nda"`
	Investment  *bool `json:"investment"`
	Message     *bool `json:"message"`
	PitchUpdate *bool `json:"pitchUpdate"`
	System      *bool `json:"system"`
	Marketing   *bool `json:"marketing"`

	QuietHoursEnabled *bool   `json:"quietHoursEnabled"`
	QuietHoursStart   *string `json:"quietHoursStart"`
	QuietHoursEnd     *string `json:"quietHoursEnd"`
	Timezone          *string `json:"timezone"`

	Digest *string `json:"digest"`
}

func (s *Server) updatePreferences(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req preferencesPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := domain.PreferencesPatch{
		Email:             req.Email,
		Push:              req.Push,
		SMS:               req.SMS,
		InApp:             req.InApp,
		NDA:               req.NDA,
		Investment:        req.Investment,
		Message:           req.Message,
		PitchUpdate:       req.PitchUpdate,
		System:            req.System,
		Marketing:         req.Marketing,
		QuietHoursEnabled: req.QuietHoursEnabled,
		QuietHoursStart:   req.QuietHoursStart,
		QuietHoursEnd:     req.QuietHoursEnd,
		Timezone:          req.Timezone,
	}
	if req.Digest != nil {
		digest := domain.DigestFrequency(*req.Digest)
		patch.Digest = &digest
	}
	if err := s.preferences.Update(c.Request.Context(), userID, patch); err != nil {
		s.renderError(c, err)
		return
	}
	prefs, err := s.preferences.Resolve(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPreferencesResponse(prefs))
}

type deliveryWebhookReq struct {
	ProviderMessageID string `json:"providerMessageId" binding:"required"`
	Event             string `json:"event" binding:"required"`
}

func (s *Server) deliveryWebhook(c *gin.Context) {
	var req deliveryWebhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event := domain.ProviderEvent(req.Event)
	if !event.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
		return
	}
	err := s.tracker.HandleProviderEvent(c.Request.Context(), req.ProviderMessageID, event)
	if err != nil {
		// Unknown message ids get a 200 so providers do not retry forever.
		if errors.Is(err, errs.ErrDeliveryRecordNotFound) {
			s.logger.Warn("callback for unknown message",
				elog.String("providerMessageId", req.ProviderMessageID),
				elog.String("event", req.Event))
			c.Status(http.StatusOK)
			return
		}
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) health(c *gin.Context) {
	status := s.monitor.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) stats(c *gin.Context) {
	depths := s.depths(c.Request.Context())
	c.JSON(http.StatusOK, s.metrics.Snapshot(depths))
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotificationNotFound),
		errors.Is(err, errs.ErrPreferencesNotFound),
		errors.Is(err, errs.ErrDeliveryRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", elog.FieldErr(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
