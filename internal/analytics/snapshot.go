package analytics

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Snapshot computes the dashboard for the window and stores its counters.
func (s *Service) Snapshot(ctx context.Context, w Window) (*models.ComplianceSnapshot, error) {
	d, err := s.Dashboard(ctx, w)
	if err != nil {
		return nil, err
	}
	snap := &models.ComplianceSnapshot{
		TakenAt:            d.GeneratedAt,
		WindowDays:         d.WindowDays,
		InUse:              d.InUse,
		Charging:           d.Charging,
		Parked:             d.Parked,
		TotalCycles:        d.TotalCycles,
		CompletedCycles:    d.CompletedCycles,
		ChargedCycles:      d.ChargedCycles,
		ParkedCycles:       d.ParkedCycles,
		Takeovers:          d.Takeovers,
		EarlyPickups:       d.EarlyPickups,
		UnnecessaryCharges: d.UnnecessaryCharges,
		CriticalIgnored:    d.CriticalIgnored,
		ComplianceRate:     d.Compliance.Rate,
		ComplianceSample:   d.Compliance.Evaluated,
	}
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return nil, fmt.Errorf("analytics: save snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots returns the most recent snapshots, newest first.
func (s *Service) Snapshots(ctx context.Context, limit int) ([]models.ComplianceSnapshot, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	var snaps []models.ComplianceSnapshot
	if err := s.db.WithContext(ctx).Order("taken_at DESC, id DESC").Limit(limit).Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("analytics: list snapshots: %w", err)
	}
	return snaps, nil
}

// ScheduleSnapshots returns a cron scheduler, not yet started, that stores a
// snapshot of the window on every tick of schedule.
func (s *Service) ScheduleSnapshots(schedule string, w Window) (*cron.Cron, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("analytics: snapshot schedule %q: %w", schedule, err)
	}
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() {
		snap, err := s.Snapshot(context.Background(), w)
		if err != nil {
			s.log.WithError(err).Error("compliance snapshot failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"snapshot_id":     snap.ID,
			"window_days":     snap.WindowDays,
			"compliance_rate": snap.ComplianceRate,
		}).Info("compliance snapshot stored")
	}))
	return c, nil
}
