package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"live-stages/internal/domain"
)

// CastVote increments the tally for a candidate by one. The conditional
// write is the sole admission check: it fails when no voting session is open
// for the host or when the candidate is not one of its fixed tally keys, and
// no other state is touched.
func (s *Service) CastVote(ctx context.Context, hostID, candidateID string) error {
	tally, err := s.votes.AddVote(ctx, hostID, candidateID)
	if err != nil {
		if errors.Is(err, domain.ErrConditionFailed) {
			return newError(ErrorConflict,
				fmt.Sprintf("the provided hostId (%s) and/or vote (%s) is not associated with an active voting session", hostID, candidateID),
				err)
		}
		return newError(ErrorInternal, "cast_vote", err)
	}
	s.logger.Info("vote tally updated", "hostId", hostID, "tally", tally)
	return nil
}

// VotesChangeType identifies a votes-table change-stream event.
type VotesChangeType string

const (
	VotesInserted VotesChangeType = "INSERT"
	VotesModified VotesChangeType = "MODIFY"
	VotesRemoved  VotesChangeType = "REMOVE"
)

// VotesChange is one votes-table change-stream event.
type VotesChange struct {
	Type VotesChangeType
	New  *domain.VotesRecord
	Old  *domain.VotesRecord
}

// PublishTally broadcasts the tally state carried by a votes-table change to
// the session's chat room. On removal, a best-effort lookup of the owning
// stage record decides only what gets logged; the VOTE_END broadcast is sent
// regardless of the lookup's outcome or failure. An unrecognized change type
// is a programming-contract violation and surfaces as an error.
func (s *Service) PublishTally(ctx context.Context, change VotesChange) error {
	switch change.Type {
	case VotesInserted:
		return s.sendVoteEvent(ctx, change.New, EventVoteStart)
	case VotesModified:
		return s.sendVoteEvent(ctx, change.New, EventVote)
	case VotesRemoved:
		if change.Old == nil {
			return errors.New("usecase: votes removal without an old image")
		}
		rec, err := s.stages.GetStage(ctx, change.Old.HostID)
		switch {
		case err != nil:
			s.logger.Warn("stage record lookup failed; VOTE_END delivery is not guaranteed",
				"hostId", change.Old.HostID, "err", err)
		case rec == nil:
			s.logger.Warn("stage record already gone; VOTE_END delivery is not guaranteed",
				"hostId", change.Old.HostID)
		}
		return s.sendVoteEvent(ctx, change.Old, EventVoteEnd)
	default:
		return fmt.Errorf("usecase: unrecognized votes change type %q", change.Type)
	}
}

func (s *Service) sendVoteEvent(ctx context.Context, rec *domain.VotesRecord, eventName string) error {
	if rec == nil {
		return fmt.Errorf("usecase: %s without a votes image", eventName)
	}
	attrs := make(map[string]string, len(rec.Tally))
	for candidateID, count := range rec.Tally {
		attrs[candidateID] = strconv.Itoa(count)
	}
	if err := s.chat.SendEvent(ctx, rec.ChatRoomArn, eventName, attrs); err != nil {
		return newError(ErrorProvider, "vote_broadcast", err)
	}
	return nil
}
