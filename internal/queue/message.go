package queue

import (
	"fmt"
	"strings"
)

// BroadcastMessage is the broker payload for an asynchronous broadcast.
type BroadcastMessage struct {
	BroadcastID   string   `json:"broadcastId"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Message       string   `json:"message"`
	Tag           string   `json:"tag,omitempty"`
	Author        string   `json:"author,omitempty"`
	ChannelIDs    []string `json:"channelIds,omitempty"`
}

func (m BroadcastMessage) Validate() error {
	if strings.TrimSpace(m.BroadcastID) == "" {
		return fmt.Errorf("broadcastId is required")
	}
	if strings.TrimSpace(m.Message) == "" {
		return fmt.Errorf("message is required")
	}
	for _, id := range m.ChannelIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("channelIds must not contain blank ids")
		}
	}
	return nil
}
