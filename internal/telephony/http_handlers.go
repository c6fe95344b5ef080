package telephony

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"inbound-genie/internal/billing"
	"inbound-genie/internal/calls"
	"inbound-genie/pkg/logger"

	"github.com/gin-gonic/gin"
)

const headerWebhookSecret = "X-Webhook-Secret"

type CallStore interface {
	UpsertCall(ctx context.Context, c calls.Call) (calls.Call, error)
}

type CallBiller interface {
	BillCall(ctx context.Context, c calls.Call) (billing.Outcome, error)
}

// CallEndedHandler stores the call record and bills it right away.
// A billing failure does not fail the webhook: the call is stored, and
// reconciliation bills it later.
type CallEndedHandler struct {
	Calls  CallStore
	Biller CallBiller

	// Secret must match the X-Webhook-Secret header. Empty disables the check (local only).
	Secret string

	Now func() time.Time
}

func (h CallEndedHandler) HandleCallEnded(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Calls == nil || h.Biller == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(headerWebhookSecret)), []byte(h.Secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	p, err := ParseCallEnded(c.Request)
	if err != nil {
		log.Warn("call webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := logger.With(c.Request.Context(), log.With("account_id", p.AccountID, "call_id", p.CallID))
	stored, err := h.Calls.UpsertCall(ctx, p.ToCall(h.Now()))
	if err != nil {
		if errors.Is(err, calls.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call"})
			return
		}
		log.Error("call upsert failed", "call_id", p.CallID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}

	outcome, err := h.Biller.BillCall(ctx, stored)
	if err != nil {
		log.Warn("call billing deferred to reconciliation", "call_id", stored.CallID, "err", err)
		c.JSON(http.StatusAccepted, gin.H{"call_id": stored.CallID, "status": stored.Status, "billing": "deferred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"call_id": stored.CallID, "status": stored.Status, "billing": outcome.String()})
}
