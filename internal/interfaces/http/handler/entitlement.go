package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appentitlement "github.com/talentsift/backend/internal/application/entitlement"
	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/shared"
)

// EntitlementHandler serves entitlement snapshots and the SSE update stream
type EntitlementHandler struct {
	BaseHandler
	entitlements *appentitlement.Service
	bus          shared.EventSubscriber
	logger       *zap.Logger
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(entitlements *appentitlement.Service, bus shared.EventSubscriber, logger *zap.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		bus:          bus,
		logger:       logger,
	}
}

// Me returns the authenticated tenant's current entitlement snapshot
func (h *EntitlementHandler) Me(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	snapshot, err := h.entitlements.Get(c.Request.Context(), tenant)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// streamSubscriber forwards one tenant's entitlement events onto a channel.
// The channel is buffered; a slow consumer drops events rather than blocking
// the bus, the client re-syncs from the next one.
type streamSubscriber struct {
	tenantID uuid.UUID
	events   chan shared.DomainEvent
}

func newStreamSubscriber(tenantID uuid.UUID) *streamSubscriber {
	return &streamSubscriber{
		tenantID: tenantID,
		events:   make(chan shared.DomainEvent, 16),
	}
}

func (s *streamSubscriber) Handle(_ context.Context, event shared.DomainEvent) error {
	if event.TenantID() != s.tenantID {
		return nil
	}
	select {
	case s.events <- event:
	default:
	}
	return nil
}

func (s *streamSubscriber) EventTypes() []string {
	return []string{
		entitlement.EventTypeSubscriptionActivated,
		entitlement.EventTypeSubscriptionCancelled,
		entitlement.EventTypeUsageRecorded,
	}
}

// Stream pushes entitlement snapshots to the client over SSE whenever the
// tenant's entitlement changes. An initial snapshot is sent on connect.
func (h *EntitlementHandler) Stream(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.InternalError(c, "Streaming not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// The server's WriteTimeout would sever a long-lived stream; lift the
	// deadline for this connection only. Not every ResponseWriter supports
	// it, a client behind one reconnects when the deadline fires.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("write deadline not adjustable for stream", zap.Error(err))
	}

	sub := newStreamSubscriber(tenant)
	h.bus.Subscribe(sub)
	defer h.bus.Unsubscribe(sub)

	h.logger.Debug("entitlement stream opened", zap.String("tenant_id", tenant.String()))

	if err := h.writeSnapshotEvent(c, flusher, tenant); err != nil {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("entitlement stream closed", zap.String("tenant_id", tenant.String()))
			return
		case event := <-sub.events:
			h.logger.Debug("pushing entitlement update",
				zap.String("tenant_id", tenant.String()),
				zap.String("event_type", event.EventType()))
			if err := h.writeSnapshotEvent(c, flusher, tenant); err != nil {
				return
			}
		}
	}
}

func (h *EntitlementHandler) writeSnapshotEvent(c *gin.Context, flusher http.Flusher, tenant uuid.UUID) error {
	snapshot, err := h.entitlements.Get(c.Request.Context(), tenant)
	if err != nil {
		h.logger.Warn("failed to load entitlement snapshot for stream",
			zap.String("tenant_id", tenant.String()),
			zap.Error(err))
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: entitlement\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// RegisterRoutes registers entitlement routes
func (h *EntitlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	entitlements := rg.Group("/entitlements")
	{
		entitlements.GET("/me", h.Me)
		entitlements.GET("/stream", h.Stream)
	}
}
