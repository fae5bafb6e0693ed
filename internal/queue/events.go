package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the ledger stream
const (
	// EventLeaderboardSync asks a worker to copy a user's score from
	// Postgres into the leaderboard after a failed synchronous update.
	EventLeaderboardSync = "leaderboard.sync"

	// EventCascadeRetry asks a worker to finish an incomplete catalog delete.
	EventCascadeRetry = "cascade.retry"
)

// Stream names
const (
	StreamLedger = "stream:ledger"
)

// Consumer group name for ledger workers
const (
	ConsumerGroupLedger = "ledger_workers"
)

// Cascade entities carried by EventCascadeRetry.
const (
	EntityBadge       = "badge"
	EntityAchievement = "achievement"
)

// LedgerEvent is the single envelope for every message on the ledger stream.
type LedgerEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// leaderboard.sync
	UserID int64 `json:"user_id,omitempty"`

	// cascade.retry
	Entity   string `json:"entity,omitempty"`
	EntityID int64  `json:"entity_id,omitempty"`
	Attempt  int    `json:"attempt,omitempty"`
}

// NewLeaderboardSyncEvent builds the follow-up for a leaderboard write that
// failed after the score was committed.
func NewLeaderboardSyncEvent(userID int64) LedgerEvent {
	return LedgerEvent{
		Type:      EventLeaderboardSync,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
	}
}

// NewCascadeRetryEvent builds a retry for a catalog delete whose holder
// cleanup did not finish. attempt counts from 1.
func NewCascadeRetryEvent(entity string, id int64, attempt int) LedgerEvent {
	return LedgerEvent{
		Type:      EventCascadeRetry,
		Timestamp: time.Now().Unix(),
		Entity:    entity,
		EntityID:  id,
		Attempt:   attempt,
	}
}

// ToMap serializes the event into a "data" field for XADD.
func (e LedgerEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseLedgerEvent parses an event from Redis stream message values.
func ParseLedgerEvent(values map[string]interface{}) (LedgerEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return LedgerEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event LedgerEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return LedgerEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
