package usecase

import (
	"context"
	"encoding/json"

	"live-stages/internal/domain"
)

type JoinInput struct {
	HostID     string
	UserID     string
	Attributes map[string]string
}

// VotingSession is the tally snapshot attached to a join response while a
// PK-mode voting session is open.
type VotingSession struct {
	Tally     map[string]int `json:"tally"`
	StartedAt string         `json:"startedAt"`
}

type JoinOutput struct {
	ParticipantToken    domain.ParticipantToken
	HostAttributes      map[string]string
	ActiveVotingSession *VotingSession
}

// Join issues a participant token for an existing session and announces the
// arrival in the chat room. The token is requested before the broadcast, so a
// broadcast failure fails the call even though the provider has already
// issued the token.
func (s *Service) Join(ctx context.Context, in JoinInput) (JoinOutput, error) {
	rec, err := s.stages.GetStage(ctx, in.HostID)
	if err != nil {
		return JoinOutput{}, newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return JoinOutput{}, newError(ErrorNotFound, "no host exists with the ID "+in.HostID, nil)
	}

	out := JoinOutput{HostAttributes: rec.HostAttributes}

	if rec.Type == domain.StageTypeVideo && rec.Mode == domain.StageModePK {
		votes, err := s.votes.GetVotes(ctx, in.HostID, []string{"tally", "startedAt"})
		if err != nil {
			return JoinOutput{}, newError(ErrorInternal, "votes_record_read", err)
		}
		if votes != nil {
			out.ActiveVotingSession = &VotingSession{Tally: votes.Tally, StartedAt: votes.StartedAt}
		}
	}

	token, err := s.realtime.CreateParticipantToken(ctx, rec.StageArn, in.UserID, in.Attributes)
	if err != nil {
		return JoinOutput{}, newError(ErrorProvider, "participant_token", err)
	}
	out.ParticipantToken = token

	attrs := in.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	serialized, err := json.Marshal(attrs)
	if err != nil {
		return JoinOutput{}, newError(ErrorInternal, "attributes_encode", err)
	}
	if err := s.chat.SendEvent(ctx, rec.ChatRoomArn, EventJoin, map[string]string{
		"userId":         in.UserID,
		"userAttributes": string(serialized),
		"message":        in.UserID + " joined",
	}); err != nil {
		return JoinOutput{}, newError(ErrorProvider, "join_broadcast", err)
	}

	return out, nil
}

// ChatToken issues a chat token with send capability for an existing
// session's room.
func (s *Service) ChatToken(ctx context.Context, hostID, userID string, attributes map[string]string) (domain.ChatToken, error) {
	rec, err := s.stages.GetStage(ctx, hostID)
	if err != nil {
		return domain.ChatToken{}, newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return domain.ChatToken{}, newError(ErrorNotFound, "no host exists with the ID "+hostID, nil)
	}

	token, err := s.chat.CreateChatToken(ctx, rec.ChatRoomArn, userID, attributes)
	if err != nil {
		return domain.ChatToken{}, newError(ErrorProvider, "chat_token", err)
	}
	return token, nil
}
