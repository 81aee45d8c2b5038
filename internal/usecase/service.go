package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"live-stages/internal/domain"
)

// Chat event names broadcast to a session's room.
const (
	EventJoin      = "stage:JOIN"
	EventMode      = "stage:MODE"
	EventSeats     = "stage:SEATS"
	EventVoteStart = "stage:VOTE_START"
	EventVote      = "stage:VOTE"
	EventVoteEnd   = "stage:VOTE_END"
)

// StageStore is the stages-table access consumed by the service.
type StageStore interface {
	GetStage(ctx context.Context, hostID string) (*domain.StageRecord, error)
	PutStage(ctx context.Context, rec domain.StageRecord) error
	DeleteStage(ctx context.Context, hostID string) error
	ScanStages(ctx context.Context, projection []string, filters map[string]string) ([]domain.StageRecord, error)
	UpdateStageMode(ctx context.Context, hostID string, mode domain.StageMode) error
	UpdateStageSeats(ctx context.Context, hostID string, seats []string) error
	UpdateStageStatus(ctx context.Context, hostID string, status domain.StageStatus, updatedAt string) error
}

// VotesStore is the votes-table access consumed by the service.
type VotesStore interface {
	CreateVotes(ctx context.Context, rec domain.VotesRecord) error
	GetVotes(ctx context.Context, hostID string, projection []string) (*domain.VotesRecord, error)
	DeleteVotes(ctx context.Context, hostID string) error
	AddVote(ctx context.Context, hostID, candidateID string) (map[string]int, error)
}

// StageProvider is the conferencing provider consumed by the service.
type StageProvider interface {
	CreateStage(ctx context.Context, scope, hostID string, hostAttributes map[string]string) (string, domain.ParticipantToken, error)
	CreateParticipantToken(ctx context.Context, stageArn, userID string, attributes map[string]string) (domain.ParticipantToken, error)
	DeleteStage(ctx context.Context, stageArn string) error
	DisconnectParticipant(ctx context.Context, stageArn, participantID, reason string) error
	StageSummaries(ctx context.Context, scope string) []domain.ResourceSummary
}

// ChatProvider is the chat provider consumed by the service.
type ChatProvider interface {
	CreateRoom(ctx context.Context, scope, hostID string) (string, error)
	CreateChatToken(ctx context.Context, roomArn, userID string, attributes map[string]string) (domain.ChatToken, error)
	SendEvent(ctx context.Context, roomArn, eventName string, attributes map[string]string) error
	DisconnectUser(ctx context.Context, roomArn, userID, reason string) error
	DeleteRoom(ctx context.Context, roomArn string) error
	RoomSummaries(ctx context.Context, scope string) []domain.ResourceSummary
}

// Config tunes the sweeper thresholds. Zero values fall back to the domain
// defaults.
type Config struct {
	IdleTimeUntilStale time.Duration
	OrphanGracePeriod  time.Duration
}

// Service implements the session lifecycle, mode/seats coordination, voting
// and reconciliation operations. Invocations share no mutable state;
// correctness for a single record relies on the store's single-key
// conditional writes.
type Service struct {
	stages   StageStore
	votes    VotesStore
	realtime StageProvider
	chat     ChatProvider
	logger   *slog.Logger

	idleTimeUntilStale time.Duration
	orphanGracePeriod  time.Duration
}

// NewService creates the session service.
func NewService(stages StageStore, votes VotesStore, realtime StageProvider, chat ChatProvider, logger *slog.Logger, cfg Config) (*Service, error) {
	if stages == nil {
		return nil, errors.New("usecase: stage store must not be nil")
	}
	if votes == nil {
		return nil, errors.New("usecase: votes store must not be nil")
	}
	if realtime == nil {
		return nil, errors.New("usecase: stage provider must not be nil")
	}
	if chat == nil {
		return nil, errors.New("usecase: chat provider must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeUntilStale <= 0 {
		cfg.IdleTimeUntilStale = domain.IdleTimeUntilStale
	}
	if cfg.OrphanGracePeriod <= 0 {
		cfg.OrphanGracePeriod = domain.OrphanGracePeriod
	}
	return &Service{
		stages:             stages,
		votes:              votes,
		realtime:           realtime,
		chat:               chat,
		logger:             logger,
		idleTimeUntilStale: cfg.IdleTimeUntilStale,
		orphanGracePeriod:  cfg.OrphanGracePeriod,
	}, nil
}

// userOrFallback names the user in broadcast messages, falling back to a
// generic label when no user id accompanies the update.
func userOrFallback(userID string) string {
	if userID == "" {
		return "User"
	}
	return userID
}
