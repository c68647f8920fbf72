// Package publish fans decoded tracks out to MQTT and WebSocket clients.
package publish

import (
	"adsbtrack/internal/notify"
	"adsbtrack/internal/track"
)

// Message types
const (
	TypeSnapshot     = "snapshot"
	TypeAircraft     = "aircraft"
	TypeExpired      = "expired"
	TypeNotification = "notification"
)

// Message is the JSON envelope sent to WebSocket clients
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher receives track updates. Aircraft passed in must be snapshots
// the publisher may keep.
type Publisher interface {
	PublishAircraft(a *track.Aircraft)
	PublishExpired(e track.Expired)
	PublishNotification(n notify.Notification)
}

// Multi fans out to several publishers
type Multi []Publisher

// PublishAircraft implements Publisher
func (m Multi) PublishAircraft(a *track.Aircraft) {
	for _, p := range m {
		p.PublishAircraft(a)
	}
}

// PublishExpired implements Publisher
func (m Multi) PublishExpired(e track.Expired) {
	for _, p := range m {
		p.PublishExpired(e)
	}
}

// PublishNotification implements Publisher
func (m Multi) PublishNotification(n notify.Notification) {
	for _, p := range m {
		p.PublishNotification(n)
	}
}
