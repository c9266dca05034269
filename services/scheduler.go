package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github/itish2003/healthagent/models"
)

// ReportGenerator produces one user's report for a day.
type ReportGenerator interface {
	GenerateDaily(ctx context.Context, userID, day string) (*models.ReportResponse, error)
}

// Scheduler triggers the nightly report for every configured user.
type Scheduler struct {
	cron  *cron.Cron
	gen   ReportGenerator
	users []string
	spec  string
	loc   *time.Location
	ctx   context.Context
}

func NewScheduler(gen ReportGenerator, loc *time.Location, hour, minute int, users []string) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		gen:   gen,
		users: users,
		loc:   loc,
		spec:  fmt.Sprintf("%d %d * * *", minute, hour),
	}
}

// Spec returns the cron expression the job runs on.
func (s *Scheduler) Spec() string { return s.spec }

// Start registers the daily_report job and starts the cron loop. Jobs run
// with ctx, so cancelling it aborts a report in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunNightly(s.ctx) }); err != nil {
		return fmt.Errorf("schedule daily_report %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.Printf("SCHEDULER: daily_report scheduled at %q (%s), next run %s",
		s.spec, s.cron.Location(), s.Next().Format(time.RFC3339))
	return nil
}

// Next returns the first run strictly after now.
func (s *Scheduler) Next() time.Time {
	return s.NextAfter(time.Now())
}

// NextAfter returns the first run strictly after t, in the scheduler's zone.
func (s *Scheduler) NextAfter(t time.Time) time.Time {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t.In(s.loc))
}

// RunNightly generates today's report for each user. A failure for one user
// is logged and does not stop the others.
func (s *Scheduler) RunNightly(ctx context.Context) {
	for _, user := range s.users {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.gen.GenerateDaily(ctx, user, "")
		if err != nil {
			log.Printf("SCHEDULER ERROR: Nightly report failed for %s: %v", user, err)
			continue
		}
		log.Printf("SCHEDULER: Nightly report for %s written to %s", user, resp.ReportPath)
	}
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("SCHEDULER: stopped")
}
