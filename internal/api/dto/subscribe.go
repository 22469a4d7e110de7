package dto

import "time"

// Event kinds carried over the persistent channel.
const (
	EventSubscribe  = "subscribe"
	EventSubscribed = "subscribed"
	EventNewTracker = "new_tracker"
)

// ChannelMessage is the envelope for every message on the subscribe socket.
// Only the fields relevant to the event kind are set.
type ChannelMessage struct {
	Event        string    `json:"event"`
	UserID       string    `json:"user_id,omitempty"`
	Message      string    `json:"message,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Method       string    `json:"method,omitempty"`
	IsNew        bool      `json:"is_new,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}
