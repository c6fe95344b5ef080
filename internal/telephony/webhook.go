package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inbound-genie/internal/calls"
)

var ErrInvalidPayload = errors.New("telephony: invalid payload")

const maxPayloadBytes = 64 << 10

// CallEndedPayload is what the voice vendor posts when a call changes state.
// Only the fields billing and the call history need are decoded.
type CallEndedPayload struct {
	CallID          string     `json:"call_id"`
	AccountID       string     `json:"account_id"`
	AgentID         string     `json:"agent_id"`
	Status          string     `json:"status"`
	DurationSeconds *int       `json:"duration_seconds"`
	From            string     `json:"from"`
	To              string     `json:"to"`
	RecordingURL    string     `json:"recording_url"`
	EndedAt         *time.Time `json:"ended_at"`
}

func ParseCallEnded(r *http.Request) (CallEndedPayload, error) {
	var p CallEndedPayload
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes))
	if err := dec.Decode(&p); err != nil {
		return CallEndedPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.CallID = strings.TrimSpace(p.CallID)
	p.AccountID = strings.TrimSpace(p.AccountID)
	p.From = strings.TrimSpace(p.From)
	p.To = strings.TrimSpace(p.To)

	if p.CallID == "" || p.AccountID == "" {
		return CallEndedPayload{}, fmt.Errorf("%w: call_id and account_id are required", ErrInvalidPayload)
	}
	if _, ok := NormalizeStatus(p.Status); !ok {
		return CallEndedPayload{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, p.Status)
	}
	if p.DurationSeconds != nil && *p.DurationSeconds < 0 {
		return CallEndedPayload{}, fmt.Errorf("%w: negative duration", ErrInvalidPayload)
	}
	return p, nil
}

// statusAliases maps vendor spellings onto call statuses.
var statusAliases = map[string]calls.CallStatus{
	"queued":    calls.CallStatusPending,
	"initiated": calls.CallStatusPending,
	"ringing":   calls.CallStatusPending,
	"ongoing":   calls.CallStatusInProgress,
	"ended":     calls.CallStatusCompleted,
	"no_answer": calls.CallStatusNotConnected,
	"busy":      calls.CallStatusNotConnected,
	"canceled":  calls.CallStatusNotConnected,
	"voicemail": calls.CallStatusNotConnected,
	"error":     calls.CallStatusFailed,
}

// NormalizeStatus accepts either our status names or the vendor's
// ("not-connected", "In Progress", "no-answer").
func NormalizeStatus(raw string) (calls.CallStatus, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if st := calls.CallStatus(s); st.Valid() {
		return st, true
	}
	st, ok := statusAliases[s]
	return st, ok
}

// ToCall converts the payload to a call record. ParseCallEnded has
// already validated the status.
func (p CallEndedPayload) ToCall(receivedAt time.Time) calls.Call {
	status, _ := NormalizeStatus(p.Status)
	ts := receivedAt.UTC()
	if p.EndedAt != nil && !p.EndedAt.IsZero() {
		ts = p.EndedAt.UTC()
	}
	return calls.Call{
		CallID:          p.CallID,
		AccountID:       p.AccountID,
		AgentID:         p.AgentID,
		From:            p.From,
		To:              p.To,
		Status:          status,
		DurationSeconds: p.DurationSeconds,
		RecordingURL:    p.RecordingURL,
		CreatedAt:       ts,
		UpdatedAt:       receivedAt.UTC(),
	}
}
