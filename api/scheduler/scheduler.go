package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/mailer"
	"github.com/linesmerrill/civil-defense-api/models"
)

const auditTimeout = 5 * time.Minute

// DuplicateFinder reports registration numbers held by more than one occurrence
type DuplicateFinder interface {
	DuplicateRANumbers(ctx context.Context, year int) ([]models.DuplicateRANumber, error)
}

// Scheduler runs the periodic registration number audit
type Scheduler struct {
	cron       *cron.Cron
	Finder     DuplicateFinder
	Mailer     mailer.Mailer
	Recipients []string
	Clock      func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(finder DuplicateFinder, m mailer.Mailer, recipients []string) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Finder:     finder,
		Mailer:     m,
		Recipients: recipients,
		Clock:      time.Now,
	}
}

// Start registers the audit job on the given cron schedule and starts the scheduler
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if _, err := s.AuditRANumbers(ctx); err != nil {
			zap.S().Errorw("registration number audit failed", "error", err)
		}
	})
	if err != nil {
		zap.S().Errorw("failed to register registration number audit job", "schedule", schedule, "error", err)
		return err
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "auditSchedule", schedule)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// AuditRANumbers looks for registration numbers of the current year that
// were handed out twice and mails the list when there is any
func (s *Scheduler) AuditRANumbers(ctx context.Context) ([]models.DuplicateRANumber, error) {
	year := s.Clock().Year()
	duplicates, err := s.Finder.DuplicateRANumbers(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(duplicates) == 0 {
		zap.S().Infow("registration number audit found no duplicates", "year", year)
		return duplicates, nil
	}

	for _, d := range duplicates {
		zap.S().Warnw("duplicate registration number", "raNumber", d.RANumber, "occurrenceIds", d.OccurrenceIDs)
	}
	if err := mailer.DuplicateReport(ctx, s.Mailer, s.Recipients, year, duplicates); err != nil {
		zap.S().Errorw("failed to mail registration number audit", "error", err)
	}
	return duplicates, nil
}
