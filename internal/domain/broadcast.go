package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the terminal state of one channel within a broadcast.
type DeliveryStatus string

const (
	DeliveryStatusDelivered     DeliveryStatus = "delivered"
	DeliveryStatusNotConfigured DeliveryStatus = "skipped-not-configured"
	DeliveryStatusFailed        DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusNotConfigured, DeliveryStatusFailed:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryOutcome is the per-channel result of a broadcast.
type DeliveryOutcome struct {
	ChannelID         string
	Status            DeliveryStatus
	Error             string
	StatusCode        int
	ProviderRequestID string
	// HandoffURL is set for deep-link channels; the caller opens it.
	HandoffURL        string
	Duration          time.Duration
}

// BroadcastResult aggregates the settled outcomes of one broadcast call.
type BroadcastResult struct {
	ID        string
	Outcomes  []DeliveryOutcome
	Attempted int
}

func (r *BroadcastResult) count(status DeliveryStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r *BroadcastResult) Delivered() int { return r.count(DeliveryStatusDelivered) }
func (r *BroadcastResult) Failed() int { return r.count(DeliveryStatusFailed) }
func (r *BroadcastResult) Skipped() int { return r.count(DeliveryStatusNotConfigured) }

// Summary renders the "shared to N of M platforms" line shown to users.
func (r *BroadcastResult) Summary() string {
	attempted := 0
	if r != nil {
		attempted = r.Attempted
	}
	noun := "platforms"
	if attempted == 1 {
		noun = "platform"
	}
	return fmt.Sprintf("shared to %d of %d %s", r.Delivered(), attempted, noun)
}

// HistoryCapacity is the maximum number of records the history log retains.
const HistoryCapacity = 50

// HistoryRecord is an append-only entry describing a completed broadcast.
// ID identifies the record itself; BroadcastID is whatever the caller or the
// queue named the broadcast and may repeat.
type HistoryRecord struct {
	ID          string    `json:"id"`
	BroadcastID string    `json:"broadcastId"`
	Channel     string    `json:"channel"`
	Message     string    `json:"message"`
	Author      string    `json:"author"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}
