package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConditionFailed reports that a store-level conditional write's
// precondition did not hold.
var ErrConditionFailed = errors.New("condition failed")

// StageType selects which mutable axis a stage carries: VIDEO stages have a
// mode, AUDIO stages have seats.
type StageType string

const (
	StageTypeVideo StageType = "VIDEO"
	StageTypeAudio StageType = "AUDIO"
)

// ParseStageType normalizes and validates a stage type string.
func ParseStageType(s string) (StageType, error) {
	switch t := StageType(strings.ToUpper(s)); t {
	case StageTypeVideo, StageTypeAudio:
		return t, nil
	default:
		return "", fmt.Errorf("domain: unknown stage type %q", s)
	}
}

// StageMode is the current program running on a VIDEO stage.
type StageMode string

const (
	StageModeNone      StageMode = "NONE"
	StageModePK        StageMode = "PK"
	StageModeGuestSpot StageMode = "GUEST_SPOT"
)

// ParseStageMode normalizes and validates a stage mode string.
func ParseStageMode(s string) (StageMode, error) {
	switch m := StageMode(strings.ToUpper(s)); m {
	case StageModeNone, StageModePK, StageModeGuestSpot:
		return m, nil
	default:
		return "", fmt.Errorf("domain: unknown stage mode %q", s)
	}
}

// SimpleName returns the human-readable mode name used in chat notices.
func (m StageMode) SimpleName() string {
	switch m {
	case StageModePK:
		return "PK"
	case StageModeGuestSpot:
		return "Guest Spot"
	case StageModeNone:
		return ""
	default:
		return ""
	}
}

// StageStatus reflects whether the stage currently has an active session.
type StageStatus string

const (
	StageStatusIdle   StageStatus = "IDLE"
	StageStatusActive StageStatus = "ACTIVE"
)

const (
	// AudioRoomSize is the fixed number of seats on an AUDIO stage.
	AudioRoomSize = 12

	// ParticipantTokenDuration is the stage token lifetime (14 days, the max).
	ParticipantTokenDuration = 20160 * time.Minute

	// ChatTokenSessionDuration is the chat token session lifetime (3 hours, the max).
	ChatTokenSessionDuration = 180 * time.Minute

	// IdleTimeUntilStale is how long a stage may stay IDLE before the sweeper
	// evicts it.
	IdleTimeUntilStale = time.Hour

	// OrphanGracePeriod protects freshly created external resources from the
	// sweeper while their record write may still be in flight.
	OrphanGracePeriod = time.Minute
)

// AllowedFilterAttributes are the stage record fields a caller may filter the
// listing by.
var AllowedFilterAttributes = []string{"mode", "status", "type"}

// SummaryAttributes is the projection returned by the listing operation.
var SummaryAttributes = []string{
	"createdAt",
	"hostAttributes",
	"hostId",
	"mode",
	"seats",
	"stageArn",
	"status",
	"type",
}

// StageRecord is the persisted aggregate describing one live host session.
// The stage and chat room ARNs are assigned at creation and never reassigned.
type StageRecord struct {
	HostID              string            `dynamodbav:"hostId" json:"hostId"`
	HostAttributes      map[string]string `dynamodbav:"hostAttributes" json:"hostAttributes,omitempty"`
	CreatedAt           string            `dynamodbav:"createdAt" json:"createdAt,omitempty"`
	CreatedFor          string            `dynamodbav:"createdFor,omitempty" json:"createdFor,omitempty"`
	StageArn            string            `dynamodbav:"stageArn" json:"stageArn,omitempty"`
	ChatRoomArn         string            `dynamodbav:"chatRoomArn" json:"chatRoomArn,omitempty"`
	Type                StageType         `dynamodbav:"type" json:"type,omitempty"`
	Mode                StageMode         `dynamodbav:"mode" json:"mode,omitempty"`
	Status              StageStatus       `dynamodbav:"status" json:"status,omitempty"`
	LastStatusUpdatedAt string            `dynamodbav:"lastStatusUpdatedAt" json:"lastStatusUpdatedAt,omitempty"`
	Seats               []string          `dynamodbav:"seats,omitempty" json:"seats,omitempty"`
}

// VotesRecord describes one open PK-mode voting session. The chat room ARN is
// denormalized so the tally publisher never joins against the stage record.
type VotesRecord struct {
	HostID      string         `dynamodbav:"hostId" json:"hostId"`
	Tally       map[string]int `dynamodbav:"tally" json:"tally"`
	ChatRoomArn string         `dynamodbav:"chatRoomArn" json:"chatRoomArn"`
	StartedAt   string         `dynamodbav:"startedAt" json:"startedAt"`
}

// NormalizeSeats trims or pads a seat list to exactly AudioRoomSize entries.
func NormalizeSeats(seats []string) []string {
	next := make([]string, AudioRoomSize)
	copy(next, seats)
	return next
}

// ElapsedSince returns the elapsed time since an RFC3339 timestamp, or zero
// if the timestamp is empty or malformed.
func ElapsedSince(ts string) time.Duration {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return time.Since(t)
}

// Now returns the current UTC time formatted the way records store it.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
