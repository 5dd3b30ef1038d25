package model

import "time"

type LogType string

const (
	LogUser   LogType = "user"
	LogModel  LogType = "model"
	LogSystem LogType = "system"
	LogTool   LogType = "tool"
)

// LogEntry is a single line of the call log shown to the host.
type LogEntry struct {
	Type      LogType   `json:"type" firestore:"type"`
	Text      string    `json:"text" firestore:"text"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// CallLog is the persisted record of one session.
type CallLog struct {
	SessionID    SessionID   `json:"session_id" firestore:"session_id"`
	Profile      string      `json:"profile" firestore:"profile"`
	StartedAt    time.Time   `json:"started_at" firestore:"started_at"`
	EndedAt      time.Time   `json:"ended_at" firestore:"ended_at"`
	EndReason    string      `json:"end_reason" firestore:"end_reason"`
	Entries      []*LogEntry `json:"entries" firestore:"entries"`
	BookingCount int         `json:"booking_count" firestore:"booking_count"`
}
