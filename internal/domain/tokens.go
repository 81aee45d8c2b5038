package domain

import "time"

// ParticipantToken grants one participant access to a stage.
type ParticipantToken struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participantId"`
	Duration      int32  `json:"duration"`
}

// ChatToken grants one user access to a chat room.
type ChatToken struct {
	Token                 string     `json:"token"`
	SessionExpirationTime *time.Time `json:"sessionExpirationTime,omitempty"`
	TokenExpirationTime   *time.Time `json:"tokenExpirationTime,omitempty"`
}

// ResourceSummary is one externally managed resource as reported by a
// provider listing. TagCreatedAt is the creation timestamp tag stamped on the
// resource at creation, used by the sweeper's orphan grace period.
type ResourceSummary struct {
	Arn          string
	Active       bool
	TagCreatedAt string
}
