package reporting

import (
	"context"
	"errors"
	"time"

	"inbound-genie/internal/calls"
	"inbound-genie/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CallSource lists call records of one account created in [from, to).
type CallSource interface {
	ListCallsInRange(ctx context.Context, accountID string, from, to time.Time) ([]calls.Call, error)
}

// UsageSource totals usage logs; usage logs are the immutable billing record.
type UsageSource interface {
	SumUsage(ctx context.Context, accountID string, from, to time.Time) (wallet.UsageTotals, error)
}

type Service struct {
	calls CallSource
	usage UsageSource
}

func NewService(callsSrc CallSource, usage UsageSource) *Service {
	return &Service{calls: callsSrc, usage: usage}
}

func (s *Service) UsageSummary(ctx context.Context, req UsageSummaryRequest) (UsageSummary, error) {
	if req.AccountID == "" {
		return UsageSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return UsageSummary{}, ErrInvalidRequest
	}
	if s.calls == nil || s.usage == nil {
		return UsageSummary{}, errors.New("reporting: sources not configured")
	}

	rows, err := s.calls.ListCallsInRange(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return UsageSummary{}, err
	}
	totals, err := s.usage.SumUsage(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return UsageSummary{}, err
	}

	out := UsageSummary{AccountID: req.AccountID, Range: req.Range}
	for _, c := range rows {
		out.TotalCalls++
		if c.DurationSeconds != nil {
			out.TotalDurationSeconds += *c.DurationSeconds
		}
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if calls.IsBillable(c) {
			out.BillableCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNotConnected:
			out.NotConnectedCalls++
		case calls.CallStatusNightTimeDontCall:
			out.NightTimeCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusPending:
			out.PendingCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	out.BilledCalls = totals.BilledCalls
	out.CreditsUsed = totals.CreditsUsed
	return out, nil
}
