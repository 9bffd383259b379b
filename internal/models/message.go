package models

import (
	"net/http"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
)

// AgentMessage is the envelope the application posts to the background agent.
type AgentMessage struct {
	Type     constants.MessageType `json:"type"`
	Title    string                `json:"title,omitempty"`
	Settings *ReminderConfig       `json:"settings,omitempty"`
}

// Notification is what a display backend renders.
type Notification struct {
	Title string
	Body  string
	Tag   string
}

// CachedResponse is one stored entry of a cache snapshot.
type CachedResponse struct {
	Key      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}
