package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/talentsift/backend/internal/application/billing"
	"github.com/talentsift/backend/internal/domain/shared"
)

// maxWebhookBodySize caps webhook payload reads. Stripe events are a few KiB;
// anything larger is not a legitimate delivery.
const maxWebhookBodySize = 64 * 1024

// stripeSignatureHeader carries the webhook signature
const stripeSignatureHeader = "Stripe-Signature"

// BillingHandler handles billing session and webhook HTTP requests
type BillingHandler struct {
	BaseHandler
	billing *appbilling.BillingService
	webhook *appbilling.WebhookService
	logger  *zap.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billing *appbilling.BillingService, webhook *appbilling.WebhookService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billing,
		webhook: webhook,
		logger:  logger,
	}
}

// PortalSessionRequest optionally names the tenant; defaults to the
// authenticated one
type PortalSessionRequest struct {
	TenantID string `json:"tenantId"`
}

// SessionResponse carries the hosted session URL the client redirects to
type SessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	URL       string `json:"url"`
}

// CreateCheckoutSession starts a subscription checkout for the authenticated
// tenant. The tenant id rides along as the checkout's client reference and
// comes back on the completion webhook.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	session, err := h.billing.CreateCheckoutSession(c.Request.Context(), tenant)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SessionResponse{SessionID: session.SessionID, URL: session.URL})
}

// CreatePortalSession opens a billing-portal session for a tenant that has
// completed a checkout before. 404 when no billing customer is linked.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	// The body may name a tenant explicitly; JWT tenant is the fallback
	var req PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.TenantID != "" {
		parsed, err := uuid.Parse(req.TenantID)
		if err != nil {
			h.BadRequest(c, "Invalid tenant id")
			return
		}
		tenant = parsed
	}

	session, err := h.billing.CreatePortalSession(c.Request.Context(), tenant)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SessionResponse{URL: session.URL})
}

// Webhook ingests provider events. Contract with the provider: 400 with a
// plain-text reason when the signature does not verify, empty 200 for
// everything else. Handler-level processing failures are still acknowledged
// with 200; re-delivery would be deduplicated anyway and a non-2xx would earn
// a retry storm.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		c.String(http.StatusBadRequest, "could not read request body")
		return
	}

	result, err := h.webhook.ProcessWebhook(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSignature) {
			c.String(http.StatusBadRequest, "webhook signature verification failed")
			return
		}
		// Already logged with full context by the service
		c.Status(http.StatusOK)
		return
	}

	h.logger.Debug("webhook acknowledged",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.Bool("processed", result.Processed))
	c.Status(http.StatusOK)
}

// RegisterRoutes registers billing routes
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	billing := rg.Group("/billing")
	{
		billing.POST("/create-checkout-session", h.CreateCheckoutSession)
		billing.POST("/create-portal-session", h.CreatePortalSession)
		billing.POST("/webhook", h.Webhook)
	}
}
