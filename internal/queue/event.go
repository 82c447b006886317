// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

// PushQueueName is the durable queue carrying notification pushes.
const PushQueueName = "notifications.push"

// PushNotificationEvent is published after a notification is created.  It
// carries everything a push gateway needs without reading the store.
type PushNotificationEvent struct {
	NotificationID string `json:"notification_id"`
	AcademyID      string `json:"academy_id,omitempty"`
	AcademyName    string `json:"academy_name,omitempty"`
	TargetEmail    string `json:"target_email"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	Description    string `json:"description"`
	Date           string `json:"date,omitempty"`
	CreatedAt      string `json:"created_at"`
}
