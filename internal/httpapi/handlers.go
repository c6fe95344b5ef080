package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inbound-genie/internal/audit"
	"inbound-genie/internal/auth"
	"inbound-genie/internal/billing"
	"inbound-genie/internal/calls"
	"inbound-genie/internal/credits"
	"inbound-genie/internal/reporting"
	"inbound-genie/internal/wallet"
	"inbound-genie/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Ledger     Ledger
	Calls      CallLookup
	Reconciler Reconciler
	Reports    Reports
	Audit      AuditLog

	Now func() time.Time
}

type Ledger interface {
	GetAccount(ctx context.Context, accountID string) (wallet.Account, error)
	ListUsage(ctx context.Context, q wallet.UsageQuery) ([]wallet.UsageLog, error)
	TopUp(ctx context.Context, accountID string, req wallet.TopUpRequest) (wallet.TopUp, wallet.Account, error)
	GrantTrial(ctx context.Context, accountID string) (wallet.Account, bool, error)
	HasUsageLogForCall(ctx context.Context, callID string) (bool, error)
}

type CallLookup interface {
	GetCall(ctx context.Context, callID string) (calls.Call, error)
}

type Reconciler interface {
	ReconcileUnbilledCalls(ctx context.Context, accountID string) (billing.Result, error)
}

type Reports interface {
	UsageSummary(ctx context.Context, req reporting.UsageSummaryRequest) (reporting.UsageSummary, error)
}

type AuditLog interface {
	LogTopUp(ctx context.Context, accountID string, actor audit.Actor, amount, source, reason, idempotencyKey string) error
	LogTrialGranted(ctx context.Context, accountID string, actor audit.Actor, expiresAt time.Time) error
	LogReconciliation(ctx context.Context, accountID string, actor audit.Actor, processed, errs, skipped int) error
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Credits ---

type creditsResponse struct {
	AccountID     string             `json:"account_id"`
	Balance       decimal.Decimal    `json:"balance"`
	Status        credits.Status     `json:"status"`
	Tier          credits.Tier       `json:"tier"`
	Message       string             `json:"message"`
	PaymentStatus string             `json:"payment_status,omitempty"`
	Trial         credits.TrialState `json:"trial"`
}

// GetCredits returns the caller's balance with its status bucket and trial state.
func (h Handlers) GetCredits(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}
	acct, err := h.Ledger.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		abortWalletErr(c, err, "balance lookup failed")
		return
	}
	c.JSON(http.StatusOK, accountView(acct, h.now()))
}

func accountView(acct wallet.Account, now time.Time) creditsResponse {
	state := credits.StatusFor(acct.Balance)
	return creditsResponse{
		AccountID:     acct.ID,
		Balance:       acct.Balance,
		Status:        state.Status,
		Tier:          state.Tier,
		Message:       state.Message,
		PaymentStatus: acct.PaymentStatus,
		Trial:         credits.TrialStateFor(acct.TrialExpiresAt, acct.PaymentStatus, now),
	}
}

// ListUsage returns the caller's usage logs, newest first.
// Query: limit, from, to (RFC3339).
func (h Handlers) ListUsage(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	q := wallet.UsageQuery{AccountID: accountID}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = n
	}
	var err error
	if q.From, err = optionalTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	if q.To, err = optionalTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	logs, err := h.Ledger.ListUsage(c.Request.Context(), q)
	if err != nil {
		abortWalletErr(c, err, "usage lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": logs})
}

// UsageSummary aggregates the caller's calls and usage in [from, to).
// Without a range it covers the last 30 days.
func (h Handlers) UsageSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	now := h.now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if from, err := optionalTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	} else if !from.IsZero() {
		rng.From = from
	}
	if to, err := optionalTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	} else if !to.IsZero() {
		rng.To = to
	}

	sum, err := h.Reports.UsageSummary(c.Request.Context(), reporting.UsageSummaryRequest{AccountID: accountID, Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("usage summary failed", "account_id", accountID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

type callResponse struct {
	calls.Call
	Billable bool             `json:"billable"`
	Billed   bool             `json:"billed"`
	Credits  *decimal.Decimal `json:"credits,omitempty"`
}

// GetCall returns one of the caller's calls and whether it has been billed.
// Calls of other accounts are reported as not found.
func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil || h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	ctx := c.Request.Context()
	call, err := h.Calls.GetCall(ctx, callID)
	if err != nil || call.AccountID != accountID {
		if err == nil || errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}

	billed, err := h.Ledger.HasUsageLogForCall(ctx, callID)
	if err != nil {
		abortWalletErr(c, err, "usage lookup failed")
		return
	}
	resp := callResponse{Call: call, Billable: calls.IsBillable(call), Billed: billed}
	if resp.Billable {
		if amt, err := credits.ForDuration(*call.DurationSeconds); err == nil {
			resp.Credits = &amt
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ReconcileOwn lets a dashboard user trigger reconciliation of their own account.
func (h Handlers) ReconcileOwn(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}
	h.reconcile(c, accountID)
}

// --- Admin ---

type topUpRequest struct {
	Amount         decimal.Decimal    `json:"amount"`
	Source         wallet.TopUpSource `json:"source"`
	Reason         string             `json:"reason"`
	IdempotencyKey string             `json:"idempotency_key"`
}

// AdminTopUp credits an account. RBAC: admin or service.
func (h Handlers) AdminTopUp(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	accountID := c.Param("account_id")
	if accountID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_id required"})
		return
	}

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Source == "" {
		req.Source = wallet.TopUpSourceAdmin
	}

	t, acct, err := h.Ledger.TopUp(c.Request.Context(), accountID, wallet.TopUpRequest{
		Amount:         req.Amount,
		Source:         req.Source,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		abortWalletErr(c, err, "top-up failed")
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogTopUp(c.Request.Context(), accountID, actorFrom(c), t.Amount.String(), string(t.Source), t.Reason, t.IdempotencyKey); err != nil {
			logger.FromGin(c).Warn("audit top-up failed", "account_id", accountID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"topup": t, "account": accountView(acct, h.now())})
}

// AdminGrantTrial starts the free trial of an account, creating it if needed.
// A repeated grant returns 200 with granted=false.
func (h Handlers) AdminGrantTrial(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	accountID := c.Param("account_id")
	if accountID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_id required"})
		return
	}

	acct, granted, err := h.Ledger.GrantTrial(c.Request.Context(), accountID)
	if err != nil {
		abortWalletErr(c, err, "trial grant failed")
		return
	}
	if granted && h.Audit != nil && acct.TrialExpiresAt != nil {
		if err := h.Audit.LogTrialGranted(c.Request.Context(), accountID, actorFrom(c), *acct.TrialExpiresAt); err != nil {
			logger.FromGin(c).Warn("audit trial grant failed", "account_id", accountID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted, "account": accountView(acct, h.now())})
}

// AdminReconcile reconciles any account. RBAC: admin or service.
func (h Handlers) AdminReconcile(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_id required"})
		return
	}
	h.reconcile(c, accountID)
}

func (h Handlers) reconcile(c *gin.Context, accountID string) {
	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation not configured"})
		return
	}
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	res, err := h.Reconciler.ReconcileUnbilledCalls(ctx, accountID)
	if err != nil {
		if errors.Is(err, billing.ErrReconcileInProgress) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "reconciliation already running"})
			return
		}
		logger.FromGin(c).Error("reconciliation failed", "account_id", accountID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogReconciliation(c.Request.Context(), accountID, actorFrom(c), res.Processed, res.Errors, res.Skipped); err != nil {
			logger.FromGin(c).Warn("audit reconciliation failed", "account_id", accountID, "err", err)
		}
	}
	c.JSON(http.StatusOK, res)
}

// --- helpers ---

func callerAccount(c *gin.Context) (string, bool) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil || accountID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account required"})
		return "", false
	}
	return accountID, true
}

func actorFrom(c *gin.Context) audit.Actor {
	id, _ := auth.FromContext(c.Request.Context())
	return audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}
}

func abortWalletErr(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, wallet.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, wallet.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
	default:
		logger.FromGin(c).Error(msg, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func optionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
