package domain

import (
	"fmt"
	"time"
)

// JobPayload carries the already-rendered content a dispatcher needs, so the
// worker never reads the notification row back on the hot path.
type JobPayload struct {
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	ActionURL string            `json:"actionUrl,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	// Options are caller-supplied send options for this job's channel,
	// passed through to the provider untouched.
	Options map[string]string `json:"options,omitempty"`
}

// QueueJob is one pending channel delivery attempt. Jobs live only in the
// queue store as JSON; a retry is a new logical instance with an incremented
// attempt count and a later ScheduledAt, never an in-place mutation.
type QueueJob struct {
	ID             string     `json:"id"`
	NotificationID uint64     `json:"notificationId"`
	UserID         int64      `json:"userId"`
	Channel        Channel    `json:"channel"`
	Priority       Priority   `json:"priority"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	Attempts       int32      `json:"attempts"`
	MaxAttempts    int32      `json:"maxAttempts"`
	Payload        JobPayload `json:"payload"`
}

// Due reports whether the job is ready to process at the given instant.
func (j *QueueJob) Due(now time.Time) bool {
	return !j.ScheduledAt.After(now)
}

// QueueName returns the list the job belongs to when it is not parked on the
// shared retry list.
func (j *QueueJob) QueueName() string {
	return QueueName(j.Priority, j.Channel)
}

// QueueName builds the (priority, channel) list name.
func QueueName(p Priority, c Channel) string {
	return fmt.Sprintf("notify:queue:%s:%s", p, c)
}

// RetryQueueName is the shared list holding backoff-delayed jobs until the
// mover redistributes them.
const RetryQueueName = "notify:queue:retry"

// AllQueueNames enumerates every (priority, channel) list, most urgent
// first, excluding the retry list.
func AllQueueNames() []string {
	prios := Priorities()
	chans := ExternalChannels()
	names := make([]string, 0, len(prios)*len(chans))
	for _, p := range prios {
		for _, c := range chans {
			names = append(names, QueueName(p, c))
		}
	}
	return names
}
