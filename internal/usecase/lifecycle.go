package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"live-stages/internal/domain"
)

type CreateInput struct {
	HostID         string
	Type           string
	HostAttributes map[string]string
	Scope          string
}

type CreateOutput struct {
	HostParticipantToken domain.ParticipantToken
	// Created reports whether new resources were provisioned, as opposed to
	// an idempotent re-entry against an existing session.
	Created bool
}

// Create provisions the {record, stage, chat room} triad for a host, or
// re-issues a host token when the session already exists. The stage and room
// are created concurrently; if either side fails the other is left in place
// for the sweeper to reap via its creation tags. No compensating rollback
// runs here.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateOutput, error) {
	stageType, err := domain.ParseStageType(in.Type)
	if err != nil {
		return CreateOutput{}, newError(ErrorValidation, "unknown_stage_type", err)
	}

	rec, err := s.stages.GetStage(ctx, in.HostID)
	if err != nil {
		return CreateOutput{}, newError(ErrorInternal, "stage_record_read", err)
	}

	// Idempotent re-entry: return a fresh host token for the existing stage.
	if rec != nil {
		token, err := s.realtime.CreateParticipantToken(ctx, rec.StageArn, in.HostID, in.HostAttributes)
		if err != nil {
			return CreateOutput{}, newError(ErrorProvider, "host_token", err)
		}
		return CreateOutput{HostParticipantToken: token}, nil
	}

	var (
		wg        sync.WaitGroup
		stageArn  string
		hostToken domain.ParticipantToken
		stageErr  error
		roomArn   string
		roomErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stageArn, hostToken, stageErr = s.realtime.CreateStage(ctx, in.Scope, in.HostID, in.HostAttributes)
	}()
	go func() {
		defer wg.Done()
		roomArn, roomErr = s.chat.CreateRoom(ctx, in.Scope, in.HostID)
	}()
	wg.Wait()

	if stageErr != nil || roomErr != nil {
		var failed []string
		if stageErr != nil {
			failed = append(failed, "stage")
		}
		if roomErr != nil {
			failed = append(failed, "room")
		}
		s.logger.Error("resource creation failed",
			"hostId", in.HostID, "failed", failed, "err", errors.Join(stageErr, roomErr))
		return CreateOutput{}, newError(ErrorResourceCreation,
			"failed to create: "+strings.Join(failed, ", "), errors.Join(stageErr, roomErr))
	}

	now := domain.Now()
	record := domain.StageRecord{
		HostID:              in.HostID,
		HostAttributes:      in.HostAttributes,
		CreatedAt:           now,
		CreatedFor:          in.Scope,
		StageArn:            stageArn,
		ChatRoomArn:         roomArn,
		Type:                stageType,
		Mode:                domain.StageModeNone,
		Status:              domain.StageStatusIdle,
		LastStatusUpdatedAt: now,
	}
	if stageType == domain.StageTypeAudio {
		seats := make([]string, domain.AudioRoomSize)
		seats[0] = hostToken.ParticipantID
		record.Seats = seats
	}

	if err := s.stages.PutStage(ctx, record); err != nil {
		return CreateOutput{}, newError(ErrorInternal, "stage_record_write", err)
	}

	s.logger.Info("session created", "hostId", in.HostID, "type", stageType)
	return CreateOutput{HostParticipantToken: hostToken, Created: true}, nil
}

// Delete tears down a session. The stage and votes records are removed before
// either external resource so no client can be served routing information
// pointing at resources about to disappear.
func (s *Service) Delete(ctx context.Context, hostID string) error {
	rec, err := s.stages.GetStage(ctx, hostID)
	if err != nil {
		return newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return newError(ErrorNotFound, "no host exists with the ID "+hostID, nil)
	}

	if err := s.deleteSession(ctx, hostID, rec.StageArn, rec.ChatRoomArn); err != nil {
		return err
	}
	s.logger.Info("session deleted", "hostId", hostID)
	return nil
}

// deleteSession is the shared teardown path used by Delete and the sweeper's
// stale eviction: records first, then both resources concurrently.
func (s *Service) deleteSession(ctx context.Context, hostID, stageArn, chatRoomArn string) error {
	if err := s.stages.DeleteStage(ctx, hostID); err != nil {
		return newError(ErrorInternal, "stage_record_delete", err)
	}
	if err := s.votes.DeleteVotes(ctx, hostID); err != nil {
		return newError(ErrorInternal, "votes_record_delete", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.realtime.DeleteStage(gctx, stageArn) })
	g.Go(func() error { return s.chat.DeleteRoom(gctx, chatRoomArn) })
	if err := g.Wait(); err != nil {
		return newError(ErrorProvider, "resource_delete", err)
	}
	return nil
}

// Disconnect removes a participant from both the stage and the chat room
// concurrently. Individual disconnect failures are merged into one error.
func (s *Service) Disconnect(ctx context.Context, hostID, userID, participantID string) error {
	rec, err := s.stages.GetStage(ctx, hostID)
	if err != nil {
		return newError(ErrorInternal, "stage_record_read", err)
	}
	if rec == nil {
		return newError(ErrorNotFound, "no host exists with the ID "+hostID, nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.chat.DisconnectUser(gctx, rec.ChatRoomArn, userID, "") })
	g.Go(func() error { return s.realtime.DisconnectParticipant(gctx, rec.StageArn, participantID, "") })
	if err := g.Wait(); err != nil {
		return newError(ErrorProvider, "disconnect", err)
	}
	return nil
}
