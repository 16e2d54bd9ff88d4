// Package jobs schedules the periodic housekeeping through asynq when Redis is
// enabled, and through in-process tickers otherwise.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypePhotoSweep    = "photo:sweep"
	TaskTypeSessionExpire = "session:expire"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// PhotoSweepPayload removes staged photos older than OlderThan.
type PhotoSweepPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// SessionExpirePayload resets sessions idle for longer than IdleTTL.
type SessionExpirePayload struct {
	IdleTTL time.Duration `json:"idle_ttl"`
}

// NewPhotoSweepTask builds a sweep task. Failed sweeps are not retried; the next run covers them.
func NewPhotoSweepTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(PhotoSweepPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypePhotoSweep, payload, asynq.Queue(QueueLow), asynq.MaxRetry(0)), nil
}

// NewSessionExpireTask builds a session expiry task.
func NewSessionExpireTask(idleTTL time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(SessionExpirePayload{IdleTTL: idleTTL})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSessionExpire, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// DecodePayload unmarshals a task payload into v.
func DecodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("%s: decode payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
