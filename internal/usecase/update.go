package usecase

import (
	"context"
	"encoding/json"
	"slices"

	"golang.org/x/sync/errgroup"

	"live-stages/internal/domain"
)

type UpdateModeInput struct {
	HostID string
	Mode   string
	// UserID identifies the participant brought on stage when entering PK or
	// GUEST_SPOT mode.
	UserID string
}

// UpdateMode applies a mode transition on a VIDEO stage. The chat broadcast,
// the mode persist and the votes side-effect run concurrently with no
// rollback against each other. No transition graph is enforced beyond "must
// be a recognized mode and must differ from the current one".
func (s *Service) UpdateMode(ctx context.Context, in UpdateModeInput) error {
	nextMode, err := domain.ParseStageMode(in.Mode)
	if err != nil {
		return newError(ErrorValidation, "unknown_stage_mode", err)
	}

	rec, err := s.stages.GetStage(ctx, in.HostID)
	if err != nil {
		return newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return newError(ErrorNotFound, "no host exists with the ID "+in.HostID, nil)
	}
	if rec.Type != domain.StageTypeVideo {
		return newError(ErrorInvalidUpdate, "cannot update the mode for a(n) "+string(rec.Type)+" stage type", nil)
	}
	if nextMode == rec.Mode {
		return nil
	}

	eventAttrs := map[string]string{"mode": string(nextMode)}
	if nextMode == domain.StageModeNone {
		eventAttrs["notice"] = in.HostID + " stopped " + rec.Mode.SimpleName() + " mode"
	} else {
		eventAttrs["notice"] = in.HostID + " started " + nextMode.SimpleName() + " mode"
		eventAttrs["message"] = userOrFallback(in.UserID) + " is on stage"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.chat.SendEvent(gctx, rec.ChatRoomArn, EventMode, eventAttrs) })
	g.Go(func() error { return s.stages.UpdateStageMode(gctx, in.HostID, nextMode) })
	g.Go(func() error {
		if nextMode == domain.StageModePK && in.UserID != "" {
			return s.votes.CreateVotes(gctx, domain.VotesRecord{
				HostID:      in.HostID,
				Tally:       map[string]int{in.HostID: 0, in.UserID: 0},
				ChatRoomArn: rec.ChatRoomArn,
				StartedAt:   domain.Now(),
			})
		}
		return s.votes.DeleteVotes(gctx, in.HostID)
	})
	if err := g.Wait(); err != nil {
		return newError(ErrorInternal, "mode_update", err)
	}
	return nil
}

type UpdateSeatsInput struct {
	HostID string
	Seats  []string
	// UserID identifies the participant brought on stage when the seat list
	// gains a new occupant.
	UserID string
}

// UpdateSeats applies a seat change on an AUDIO stage. The incoming list is
// normalized to exactly the fixed room size before comparison; the broadcast
// and the persist run concurrently.
func (s *Service) UpdateSeats(ctx context.Context, in UpdateSeatsInput) error {
	rec, err := s.stages.GetStage(ctx, in.HostID)
	if err != nil {
		return newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return newError(ErrorNotFound, "no host exists with the ID "+in.HostID, nil)
	}
	if rec.Type != domain.StageTypeAudio {
		return newError(ErrorInvalidUpdate, "cannot update the seats for a(n) "+string(rec.Type)+" stage type", nil)
	}

	nextSeats := domain.NormalizeSeats(in.Seats)
	if slices.Equal(nextSeats, rec.Seats) {
		return nil
	}

	serialized, err := json.Marshal(nextSeats)
	if err != nil {
		return newError(ErrorInternal, "seats_encode", err)
	}
	eventAttrs := map[string]string{"seats": string(serialized)}

	// The first seat value not present in the previous list is a new
	// occupant; empty slots never count as one.
	for _, seat := range nextSeats {
		if !slices.Contains(rec.Seats, seat) {
			if seat != "" {
				eventAttrs["message"] = userOrFallback(in.UserID) + " is on stage"
			}
			break
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.chat.SendEvent(gctx, rec.ChatRoomArn, EventSeats, eventAttrs) })
	g.Go(func() error { return s.stages.UpdateStageSeats(gctx, in.HostID, nextSeats) })
	if err := g.Wait(); err != nil {
		return newError(ErrorInternal, "seats_update", err)
	}
	return nil
}
