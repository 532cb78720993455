package messages

import "time"

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TrackChanged is published after every successful mutation so that other
// API replicas can drop their cached copy of the track.
type TrackChanged struct {
	TrackID int64     `json:"track_id"`
	Action  string    `json:"action"`
	At      time.Time `json:"at"`
}
