// Package notifier delivers queued status-change events to the external
// event service.
package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction of a status transition, included so consumers can tell
// recoveries from degradations without knowing the severity order.
const (
	DirectionDegraded = "degraded"
	DirectionImproved = "improved"
)

// StatusMessage is the notification payload for one stream status
// transition. Serialized into the outbox verbatim, so schema changes
// only affect rows written after the change.
type StatusMessage struct {
	MessageID      string  `json:"message_id"`
	RefDes         string  `json:"ref_des"`
	Stream         string  `json:"stream"`
	Method         string  `json:"method"`
	PreviousStatus string  `json:"previous_status"`
	StreamStatus   string  `json:"stream_status"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	FiveMinRate    float64 `json:"five_min_rate"`
	OneDayRate     float64 `json:"one_day_rate"`
	RollupStatus   string  `json:"rollup_status"`
	RollupReason   string  `json:"rollup_reason"`
	Direction      string  `json:"direction"`
	// CreatedMillis is the transition time in epoch milliseconds.
	CreatedMillis int64 `json:"created_millis"`
}

// NewStatusMessage builds a message for one transition, stamping a
// message id used only for logging and traceability.
func NewStatusMessage(refdes, stream, method, previous, current string, elapsed, fiveMin, oneDay float64, at time.Time) *StatusMessage {
	return &StatusMessage{
		MessageID:      uuid.NewString(),
		RefDes:         refdes,
		Stream:         stream,
		Method:         method,
		PreviousStatus: previous,
		StreamStatus:   current,
		ElapsedSeconds: elapsed,
		FiveMinRate:    fiveMin,
		OneDayRate:     oneDay,
		CreatedMillis:  at.UnixMilli(),
	}
}

// EventBody is the JSON document POSTed to the event service, matching
// its asset-status event schema.
type EventBody struct {
	EventClass     string  `json:"@class"`
	AssetUID       string  `json:"assetUid"`
	EventType      string  `json:"eventType"`
	EventName      string  `json:"eventName"`
	Status         string  `json:"status"`
	Severity       int     `json:"severity"`
	Reason         string  `json:"reason"`
	EventStartTime int64   `json:"eventStartTime"`
	Notes          string  `json:"notes"`
	Location       *string `json:"location"`
}

// EventBody maps the message onto the event service's wire schema. The
// event reports the instrument rollup status; per-stream detail rides
// in the notes.
func (m *StatusMessage) EventBody() *EventBody {
	notes := fmt.Sprintf("%s/%s went %s to %s (%.3f Hz over 5m, %.3f Hz over 1d, silent %.0fs) [%s]",
		m.Stream, m.Method, m.PreviousStatus, m.StreamStatus,
		m.FiveMinRate, m.OneDayRate, m.ElapsedSeconds, m.MessageID)
	return &EventBody{
		EventClass:     ".AssetStatusEvent",
		AssetUID:       m.RefDes,
		EventType:      "ASSET_STATUS",
		EventName:      m.Stream,
		Status:         m.RollupStatus,
		Reason:         m.RollupReason,
		EventStartTime: m.CreatedMillis,
		Notes:          notes,
	}
}

// Encode serializes the message for the outbox.
func (m *StatusMessage) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode status message: %w", err)
	}
	return string(data), nil
}

// DecodeMessage parses an outbox payload back into a StatusMessage.
func DecodeMessage(payload string) (*StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("failed to decode status message: %w", err)
	}
	return &m, nil
}
