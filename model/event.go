package model

import "time"

const (
	EventPostCreated  = "post.created"
	EventPostUpdated  = "post.updated"
	EventTopicCreated = "topic.created"
)

// Event is the payload published for downstream indexing.
type Event struct {
	Event string    `json:"event"`
	ID    int64     `json:"id"`
	At    time.Time `json:"at"`
}
