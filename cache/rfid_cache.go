package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hoerbox/db"
	"hoerbox/model"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// rfidEventKey is the Redis key holding the most recent RFID event. Only the
// latest event matters: the status endpoint is a polling design that reports
// at most one event per poll interval.
const rfidEventKey = "rfid:latest_event"

// Events are transient liveness signals; if nothing refreshes the key the
// status endpoint falls back to "waiting".
const rfidEventTTL = 24 * time.Hour

// storedEvent is the JSON document kept in Redis.
type storedEvent struct {
	EventID   string               `json:"event_id"`
	Event     string               `json:"event"`
	Data      *model.RFIDEventData `json:"data,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// StoreRFIDEvent publishes a presence event as the latest one. The timestamp
// is RFC3339 UTC; pollers use it as the de-duplication token.
func StoreRFIDEvent(ctx context.Context, event string, data *model.RFIDEventData) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	doc := storedEvent{
		EventID:   uuid.NewString(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal RFID event: %w", err)
	}

	if err := db.RedisClient.Set(ctx, rfidEventKey, docJSON, rfidEventTTL).Err(); err != nil {
		return fmt.Errorf("failed to store RFID event: %w", err)
	}
	return nil
}

// LatestRFIDStatus returns the status document for the polling endpoint.
// When no event has ever been published it reports the waiting state.
func LatestRFIDStatus(ctx context.Context) (*model.RFIDStatus, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	docJSON, err := db.RedisClient.Get(ctx, rfidEventKey).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.RFIDStatus{
				Status:  model.RFIDStatusWaiting,
				Message: "No RFID activity yet",
			}, nil
		}
		return nil, fmt.Errorf("failed to get RFID event: %w", err)
	}

	var doc storedEvent
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RFID event: %w", err)
	}

	return &model.RFIDStatus{
		Status:    model.RFIDStatusActive,
		Event:     doc.Event,
		Data:      doc.Data,
		Timestamp: doc.Timestamp,
	}, nil
}
