package usecase

import (
	"context"
	"sync"

	"live-stages/internal/domain"
)

// sweepProjection is the record subset the sweeper needs.
var sweepProjection = []string{
	"hostId",
	"status",
	"stageArn",
	"chatRoomArn",
	"createdAt",
	"lastStatusUpdatedAt",
}

// Sweep runs one reconciliation pass for the given creation scope: it deletes
// external resources no record references (orphans past the creation grace
// period), corrects each record's status from the stage listing's liveness,
// and evicts sessions that stayed IDLE past the staleness threshold. Every
// per-item operation is independent; failures are logged and never abort the
// pass.
func (s *Service) Sweep(ctx context.Context, scope string) error {
	var (
		wg             sync.WaitGroup
		records        []domain.StageRecord
		scanErr        error
		stageSummaries []domain.ResourceSummary
		roomSummaries  []domain.ResourceSummary
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		records, scanErr = s.stages.ScanStages(ctx, sweepProjection, nil)
	}()
	go func() {
		defer wg.Done()
		stageSummaries = s.realtime.StageSummaries(ctx, scope)
	}()
	go func() {
		defer wg.Done()
		roomSummaries = s.chat.RoomSummaries(ctx, scope)
	}()
	wg.Wait()

	if scanErr != nil {
		return newError(ErrorInternal, "stage_records_scan", scanErr)
	}

	stageArns := make(map[string]bool, len(records))
	roomArns := make(map[string]bool, len(records))
	summaryByArn := make(map[string]domain.ResourceSummary, len(stageSummaries))
	for _, rec := range records {
		stageArns[rec.StageArn] = true
		roomArns[rec.ChatRoomArn] = true
	}
	for _, summary := range stageSummaries {
		summaryByArn[summary.Arn] = summary
	}

	// Unreferenced stages past the grace period would otherwise accumulate
	// toward provider limits.
	for _, summary := range stageSummaries {
		if stageArns[summary.Arn] || !s.pastOrphanGrace(summary) {
			continue
		}
		if err := s.realtime.DeleteStage(ctx, summary.Arn); err != nil {
			s.logger.Warn("orphaned stage delete failed", "arn", summary.Arn, "err", err)
		}
	}
	for _, summary := range roomSummaries {
		if roomArns[summary.Arn] || !s.pastOrphanGrace(summary) {
			continue
		}
		if err := s.chat.DeleteRoom(ctx, summary.Arn); err != nil {
			s.logger.Warn("orphaned room delete failed", "arn", summary.Arn, "err", err)
		}
	}

	for _, rec := range records {
		summary, listed := summaryByArn[rec.StageArn]
		isActive := listed && summary.Active

		currentStatus := domain.StageStatusIdle
		if isActive {
			currentStatus = domain.StageStatusActive
		}

		// A status flip refreshes lastStatusUpdatedAt, so the record is not
		// eviction-checked within the same pass.
		if rec.Status != currentStatus {
			if err := s.stages.UpdateStageStatus(ctx, rec.HostID, currentStatus, domain.Now()); err != nil {
				s.logger.Warn("status update failed", "hostId", rec.HostID, "err", err)
			}
			continue
		}

		if !isActive && domain.ElapsedSince(rec.LastStatusUpdatedAt) > s.idleTimeUntilStale {
			s.logger.Info("evicting stale session", "hostId", rec.HostID, "lastStatusUpdatedAt", rec.LastStatusUpdatedAt)
			if err := s.deleteSession(ctx, rec.HostID, rec.StageArn, rec.ChatRoomArn); err != nil {
				s.logger.Warn("stale session eviction failed", "hostId", rec.HostID, "err", err)
			}
		}
	}
	return nil
}

// pastOrphanGrace reports whether a resource's creation tag is old enough to
// rule out racing an in-flight create. Untagged resources are never reaped.
func (s *Service) pastOrphanGrace(summary domain.ResourceSummary) bool {
	if summary.TagCreatedAt == "" {
		return false
	}
	return domain.ElapsedSince(summary.TagCreatedAt) > s.orphanGracePeriod
}
