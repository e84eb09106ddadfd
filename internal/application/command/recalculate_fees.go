package command

import (
	"context"
	"fmt"
	"time"

	"github.com/center-hub/center-hub/internal/domain/finance"
	"github.com/center-hub/center-hub/internal/domain/shared"
)

// RecalculateFeesResult contains the outcome of a batch fee resync.
type RecalculateFeesResult struct {
	Checked  int           `json:"checked"`
	Changed  int           `json:"changed"`
	Duration time.Duration `json:"duration"`
}

// RecalculateFees resyncs MonthlyFee of every student against the current
// catalog. The collection is written only when at least one fee moved.
func (s *Service) RecalculateFees(ctx context.Context) (*RecalculateFeesResult, error) {
	start := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.students.List(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	result := &RecalculateFeesResult{Checked: len(list)}
	for i := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, changed := finance.Recalculate(&list[i], catalog); changed {
			result.Changed++
		}
	}

	if result.Changed > 0 {
		if err := s.saveStudents(ctx, list, false); err != nil {
			return nil, err
		}
		s.audit.LogAction(ctx, "Пересчёт оплаты", fmt.Sprintf("изменено %d из %d", result.Changed, result.Checked), "")
	}
	result.Duration = s.clock.Now().Sub(start)

	s.publish(shared.NewFeesRecalculatedEvent(result.Checked, result.Changed))
	s.logger.Info("monthly fees recalculated",
		"checked", result.Checked,
		"changed", result.Changed,
		"duration", result.Duration,
	)

	return result, nil
}
