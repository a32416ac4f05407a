package model

import (
	"encoding/json"
	"time"
)

// EventRecord is a published event as persisted by the relay's history store.
type EventRecord struct {
	ID         string          `json:"id"`
	Room       string          `json:"room"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Alert is the payload carried by "alerts:*" events on the dashboard feed.
type Alert struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Source   string    `json:"source,omitempty"`
	RaisedAt time.Time `json:"raisedAt"`
}

// MetricSample is the payload of a metrics stream update.
type MetricSample struct {
	Series string  `json:"series"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
}

// RunStatus is the lifecycle status of a tracked task execution.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusErrored   RunStatus = "errored"
)

// TaskProgress is the payload of task progress events.
type TaskProgress struct {
	TaskID   string `json:"taskId"`
	Progress int    `json:"progress"`
	Stage    string `json:"stage,omitempty"`
}

// TaskError is the payload of task error events.
type TaskError struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}
