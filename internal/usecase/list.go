package usecase

import (
	"context"
	"slices"
	"sort"

	"live-stages/internal/domain"
)

// List returns summary projections of all stage records, optionally filtered
// by mode, status or type, sorted by creation time. Any other filter key is
// rejected.
func (s *Service) List(ctx context.Context, filters map[string]string) ([]domain.StageRecord, error) {
	for key := range filters {
		if !slices.Contains(domain.AllowedFilterAttributes, key) {
			return nil, newError(ErrorValidation, "restricted filter key provided: "+key, nil)
		}
	}

	records, err := s.stages.ScanStages(ctx, domain.SummaryAttributes, filters)
	if err != nil {
		return nil, newError(ErrorInternal, "stage_records_scan", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})
	return records, nil
}
